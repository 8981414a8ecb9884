package mediator

import (
	"context"

	"github.com/codeready-toolchain/covenant/pkg/events"
	"github.com/codeready-toolchain/covenant/pkg/models"
	"github.com/codeready-toolchain/covenant/pkg/provider"
	"github.com/codeready-toolchain/covenant/pkg/router"
)

// Store is the narrow Covenant Store surface an Actor needs. Satisfied by
// *store.CovenantStore; kept as an interface so tests can supply a fake
// without a database.
type Store interface {
	SaveCovenant(ctx context.Context, c *models.Covenant) error
	GetCovenant(ctx context.Context, id string) (*models.Covenant, error)
	AppendMessage(ctx context.Context, userID string, msg models.Message) error
	ListMessagesByUser(ctx context.Context, userID string, limit int) ([]models.Message, error)
	PerformanceCounters(ctx context.Context, userID string) (*models.PerformanceCounters, error)
}

// Router is the narrow Smart Router surface an Actor needs. Satisfied by
// *router.Router.
type Router interface {
	Classify(prompt string) router.Classification
	Route(ctx context.Context, prompt string, constraints models.Constraints, params provider.Params) (provider.Result, router.Classification, error)
}

// Publisher is the narrow Event Bus publishing surface an Actor needs.
// Satisfied by *events.EventPublisher.
type Publisher interface {
	PublishCovenantStatus(ctx context.Context, payload events.CovenantStatusPayload) error
}

// MetricsSink is the narrow metrics surface an Actor needs. Satisfied by
// *metrics.Registry.
type MetricsSink interface {
	ObserveCovenantTransition(state string)
}

type noopMetricsSink struct{}

func (noopMetricsSink) ObserveCovenantTransition(string) {}

// MediatorContext is what a Mediator forwards to an Orchestrator on
// delegation: just enough of the user's state for sub-agent prompts,
// without handing over write access to the message log.
type MediatorContext struct {
	UserID       string
	LastMessages []models.Message
	Performance  *models.PerformanceCounters
}

// CallbackResult is what an Orchestrator hands back to the Mediator that
// delegated to it, win or lose.
type CallbackResult struct {
	CovenantID string
	State      models.CovenantState // CovenantCompleted or CovenantFailed
	Results    *models.Results
	Reason     string // set when State == CovenantFailed
}

// CallbackHandle is the one-way reference a Mediator hands an Orchestrator
// at delegation time, so neither actor needs to own a reference to the
// other's registry.
type CallbackHandle interface {
	HandleCallback(ctx context.Context, result CallbackResult) error
}

// OrchestratorDispatcher creates or addresses the Orchestrator actor for a
// covenant. Delegate returns as soon as the Orchestrator has accepted the
// work — planning and execution continue asynchronously and report back
// through the CallbackHandle. The pkg/orchestrator Dispatcher persists no
// task record at acceptance; sub-agent task rows are saved as each task
// finishes.
type OrchestratorDispatcher interface {
	Delegate(ctx context.Context, covenant *models.Covenant, mctx MediatorContext, callback CallbackHandle) error
	// Status reports whether the orchestration for covenantID is still
	// running. Used only by the Mediator's UI-liveness monitor — never a
	// correctness signal.
	Status(ctx context.Context, covenantID string) (running bool, err error)
}
