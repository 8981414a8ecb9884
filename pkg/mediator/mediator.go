// Package mediator implements the Mediator actor: one long-lived,
// logically single-threaded entity per user that ingests intents, scores
// their complexity, builds covenants, and either resolves them directly
// against the Smart Router (fast path) or delegates them to an
// Orchestrator actor and later gates the quality of what comes back.
package mediator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/covenant/pkg/config"
	"github.com/codeready-toolchain/covenant/pkg/events"
	"github.com/codeready-toolchain/covenant/pkg/models"
	"github.com/codeready-toolchain/covenant/pkg/provider"
	"github.com/codeready-toolchain/covenant/pkg/router"
)

// providerHardDeadlineMS is the ceiling every provider call is bound by,
// regardless of what a covenant's constraints or the fast path's derived
// budget would otherwise allow.
const providerHardDeadlineMS = 30000

// minAllowedLatencyMS is the floor below which max_latency_ms cannot leave
// enough room for a single provider call to ever complete.
const minAllowedLatencyMS = 3000

// Actor is the Mediator actor for one user. All public methods are
// implicitly scoped to Actor.userID.
type Actor struct {
	userID     string
	store      Store
	router     Router
	publisher  Publisher
	metrics    MetricsSink
	dispatcher OrchestratorDispatcher
	defaults   config.Defaults
	now        func() time.Time

	mu     sync.Mutex
	head   *models.Covenant
	guards map[string]chan struct{} // covenant id -> delegation guard cancel channel
}

// Option configures optional Actor behavior.
type Option func(*Actor)

// WithMetricsSink overrides the default no-op metrics sink.
func WithMetricsSink(sink MetricsSink) Option {
	return func(a *Actor) { a.metrics = sink }
}

// New builds a Mediator actor for userID.
func New(userID string, store Store, rt Router, publisher Publisher, dispatcher OrchestratorDispatcher, defaults config.Defaults, opts ...Option) *Actor {
	a := &Actor{
		userID:     userID,
		store:      store,
		router:     rt,
		publisher:  publisher,
		dispatcher: dispatcher,
		defaults:   defaults,
		metrics:    noopMetricsSink{},
		now:        time.Now,
		guards:     make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OpenStreamSnapshot returns a copy of the currently known covenant head,
// as used by Status. The stream endpoints do not send it to a client on
// attach; a client recovers missed events through the catchup message.
// Returns nil if this actor has no head yet.
func (a *Actor) OpenStreamSnapshot() *models.Covenant {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.head == nil {
		return nil
	}
	head := *a.head
	return &head
}

// SubmitIntent creates a covenant in draft, appends the user's message,
// classifies the intent, and transitions the covenant to active before
// returning. The fast path or delegation that follows runs in the
// background, decoupled from ctx, so a client disconnect never cancels it.
func (a *Actor) SubmitIntent(ctx context.Context, text string, constraints models.Constraints) (*models.Covenant, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "intent", Reason: "must not be empty"}
	}
	if constraints.MaxLatencyMS > 0 && constraints.MaxLatencyMS < minAllowedLatencyMS {
		return nil, &ValidationError{Field: "max_latency_ms", Reason: fmt.Sprintf("must be >= %dms", minAllowedLatencyMS)}
	}
	if err := constraints.Validate(); err != nil {
		return nil, &ValidationError{Field: "constraints", Reason: err.Error()}
	}

	covenant := &models.Covenant{
		ID:          uuid.NewString(),
		UserID:      a.userID,
		Intent:      text,
		Constraints: constraints,
		State:       models.CovenantDraft,
	}

	a.mu.Lock()
	if err := a.store.SaveCovenant(ctx, covenant); err != nil {
		a.mu.Unlock()
		return nil, fmt.Errorf("mediator: persist draft covenant: %w", err)
	}
	a.setHeadLocked(covenant)
	a.mu.Unlock()
	a.broadcastState(ctx, covenant, "", 0)

	userMsg := models.Message{ID: uuid.NewString(), CovenantID: covenant.ID, Role: models.RoleUser, Content: text, Timestamp: a.now()}
	if err := a.store.AppendMessage(ctx, a.userID, userMsg); err != nil {
		return nil, fmt.Errorf("mediator: persist user message: %w", err)
	}

	classification := a.router.Classify(text)
	delegate := classification.Complexity != router.ComplexitySimple || classification.Score > 0.4

	a.mu.Lock()
	covenant.AppendDecision(fmt.Sprintf("classify: complexity=%s score=%.2f factors=%v decision=%s",
		classification.Complexity, classification.Score, classification.Factors, decisionLabel(delegate)))
	if err := covenant.Transition(models.CovenantActive); err != nil {
		a.mu.Unlock()
		return nil, fmt.Errorf("mediator: transition to active: %w", err)
	}
	if err := a.store.SaveCovenant(ctx, covenant); err != nil {
		a.mu.Unlock()
		return nil, fmt.Errorf("mediator: persist active covenant: %w", err)
	}
	a.setHeadLocked(covenant)
	a.mu.Unlock()
	a.metrics.ObserveCovenantTransition(string(models.CovenantActive))
	a.broadcastState(ctx, covenant, "", 0)

	snapshot := *covenant
	if delegate {
		go a.delegate(context.Background(), &snapshot)
	} else {
		go a.fastPath(context.Background(), &snapshot, classification)
	}

	return covenant, nil
}

func decisionLabel(delegate bool) string {
	if delegate {
		return "delegate"
	}
	return "fast_path"
}

// fastPathBudget derives the max-token and max-latency budget for a direct
// Smart Router call from the classifier's score.
func (a *Actor) fastPathBudget(score float64) (maxTokens, maxLatencyMS int) {
	switch {
	case score > 0.7:
		return a.defaults.TokensComplex, 30000
	case score > 0.4:
		return a.defaults.TokensModerate, 15000
	default:
		return a.defaults.TokensSimple, 10000
	}
}

func (a *Actor) fastPath(ctx context.Context, covenant *models.Covenant, classification router.Classification) {
	maxTokens, derivedLatencyMS := a.fastPathBudget(classification.Score)
	deadlineMS := minInt(derivedLatencyMS, covenant.Constraints.MaxLatencyMS)
	deadlineMS = minInt(deadlineMS, providerHardDeadlineMS)

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(deadlineMS)*time.Millisecond)
	defer cancel()

	result, _, err := a.router.Route(callCtx, covenant.Intent, covenant.Constraints, provider.Params{MaxTokens: maxTokens})
	if err != nil {
		a.failCovenant(ctx, covenant.ID, "all_providers_failed", err)
		return
	}

	assistantMsg := models.Message{ID: uuid.NewString(), CovenantID: covenant.ID, Role: models.RoleAssistant, Content: result.Content, Timestamp: a.now()}
	if err := a.store.AppendMessage(ctx, a.userID, assistantMsg); err != nil {
		a.failCovenant(ctx, covenant.ID, "internal", err)
		return
	}

	a.mu.Lock()
	current, err := a.reloadLocked(ctx, covenant.ID)
	if err != nil {
		a.mu.Unlock()
		return
	}
	current.Results = &models.Results{Content: result.Content, LatencyMS: result.LatencyMS}
	if err := current.Transition(models.CovenantCompleted); err != nil {
		a.mu.Unlock()
		return
	}
	if err := a.store.SaveCovenant(ctx, current); err != nil {
		a.mu.Unlock()
		return
	}
	a.setHeadLocked(current)
	a.mu.Unlock()

	a.metrics.ObserveCovenantTransition(string(models.CovenantCompleted))
	a.broadcastState(ctx, current, "", 0)
}

// delegate transitions the covenant to delegated, hands it to the
// Orchestrator dispatcher, and starts the bounded liveness monitor plus
// the orchestrator_timeout guard.
func (a *Actor) delegate(ctx context.Context, covenant *models.Covenant) {
	a.mu.Lock()
	if err := covenant.Transition(models.CovenantDelegated); err != nil {
		a.mu.Unlock()
		return
	}
	if err := a.store.SaveCovenant(ctx, covenant); err != nil {
		a.mu.Unlock()
		return
	}
	a.setHeadLocked(covenant)
	a.mu.Unlock()
	a.metrics.ObserveCovenantTransition(string(models.CovenantDelegated))
	a.broadcastState(ctx, covenant, "", 0)

	mctx := a.buildMediatorContext(ctx)

	if a.dispatcher == nil {
		a.failCovenant(ctx, covenant.ID, "internal", errors.New("no orchestrator dispatcher configured"))
		return
	}
	if err := a.dispatcher.Delegate(ctx, covenant, mctx, a); err != nil {
		a.failCovenant(ctx, covenant.ID, "internal", err)
		return
	}

	cancelCh := make(chan struct{})
	a.mu.Lock()
	a.guards[covenant.ID] = cancelCh
	a.mu.Unlock()

	timeout := time.Duration(covenant.Constraints.MaxLatencyMS*a.defaults.OrchestratorTimeoutMultiplier) * time.Millisecond
	go a.runDelegationGuard(covenant.ID, timeout, cancelCh)
	go a.runMonitor(covenant.ID, cancelCh)
}

func (a *Actor) buildMediatorContext(ctx context.Context) MediatorContext {
	lastN, err := a.store.ListMessagesByUser(ctx, a.userID, a.defaults.ContextWindowMessages)
	if err != nil {
		lastN = nil
	}
	perf, _ := a.store.PerformanceCounters(ctx, a.userID)
	return MediatorContext{UserID: a.userID, LastMessages: lastN, Performance: perf}
}

// runDelegationGuard fires an orchestrator_timeout failure if the
// delegated covenant has not reached a terminal state within timeout.
func (a *Actor) runDelegationGuard(covenantID string, timeout time.Duration, cancelCh chan struct{}) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-cancelCh:
	case <-timer.C:
		a.failCovenant(context.Background(), covenantID, "orchestrator_timeout", errors.New("orchestrator callback did not arrive in time"))
	}
}

// runMonitor polls the dispatcher's status purely for UI liveness. It is
// never a correctness mechanism — completion is authoritative via the
// callback — so a failed poll is logged and skipped, not escalated.
func (a *Actor) runMonitor(covenantID string, cancelCh chan struct{}) {
	interval := time.Duration(a.defaults.MediatorPollIntervalMS) * time.Millisecond
	for attempt := 0; attempt < a.defaults.MediatorPollMaxAttempts; attempt++ {
		select {
		case <-cancelCh:
			return
		case <-time.After(interval):
		}
		running, err := a.dispatcher.Status(context.Background(), covenantID)
		if err != nil || !running {
			return
		}
	}
}

// HandleCallback implements CallbackHandle. It is invoked by an
// Orchestrator actor (directly or via its own callback retry) once a
// delegated covenant's orchestration run reaches a terminal state.
func (a *Actor) HandleCallback(ctx context.Context, result CallbackResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancelGuardLocked(result.CovenantID)

	covenant, err := a.reloadLocked(ctx, result.CovenantID)
	if err != nil {
		return err
	}
	if covenant.State != models.CovenantDelegated {
		// Already resolved (e.g. the orchestrator_timeout guard fired
		// first). The callback arrived too late to matter.
		return nil
	}

	if result.State == models.CovenantFailed {
		reason := result.Reason
		if reason == "" {
			reason = "internal"
		}
		return a.transitionFailedLocked(ctx, covenant, reason, nil)
	}

	quality := 0.5
	if result.Results != nil {
		quality = result.Results.Quality
	}
	quality = clamp01(quality)

	covenant.Results = result.Results
	if quality >= a.defaults.QualityGateThreshold {
		if result.Results != nil && result.Results.Content != "" {
			assistantMsg := models.Message{ID: uuid.NewString(), CovenantID: covenant.ID, Role: models.RoleAssistant, Content: result.Results.Content, Timestamp: a.now()}
			if err := a.store.AppendMessage(ctx, a.userID, assistantMsg); err != nil {
				return fmt.Errorf("mediator: persist assistant message: %w", err)
			}
		}
		if err := covenant.Transition(models.CovenantCompleted); err != nil {
			return fmt.Errorf("mediator: transition to completed: %w", err)
		}
		if err := a.store.SaveCovenant(ctx, covenant); err != nil {
			return fmt.Errorf("mediator: persist completed covenant: %w", err)
		}
		a.setHeadLocked(covenant)
		a.metrics.ObserveCovenantTransition(string(models.CovenantCompleted))
		a.broadcastState(ctx, covenant, "", 0)
		return nil
	}

	covenant.RejectionReason = "quality_below_threshold"
	if err := covenant.Transition(models.CovenantRejected); err != nil {
		return fmt.Errorf("mediator: transition to rejected: %w", err)
	}
	if err := a.store.SaveCovenant(ctx, covenant); err != nil {
		return fmt.Errorf("mediator: persist rejected covenant: %w", err)
	}
	a.setHeadLocked(covenant)
	a.metrics.ObserveCovenantTransition(string(models.CovenantRejected))
	a.broadcastState(ctx, covenant, "quality_below_threshold", quality)
	return nil
}

// Status returns a read-only snapshot of the current covenant head plus
// rolling performance counters.
func (a *Actor) Status(ctx context.Context) (*models.Covenant, *models.PerformanceCounters, error) {
	perf, err := a.store.PerformanceCounters(ctx, a.userID)
	if err != nil {
		return nil, nil, fmt.Errorf("mediator: performance counters: %w", err)
	}
	return a.OpenStreamSnapshot(), perf, nil
}

func (a *Actor) failCovenant(ctx context.Context, covenantID, reason string, cause error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancelGuardLocked(covenantID)

	covenant, err := a.reloadLocked(ctx, covenantID)
	if err != nil {
		return
	}
	if covenant.State.IsTerminal() {
		return
	}
	_ = a.transitionFailedLocked(ctx, covenant, reason, cause)
}

// transitionFailedLocked must be called with a.mu held.
func (a *Actor) transitionFailedLocked(ctx context.Context, covenant *models.Covenant, reason string, cause error) error {
	if cause != nil {
		covenant.AppendDecision(fmt.Sprintf("failed: reason=%s cause=%v", reason, cause))
	} else {
		covenant.AppendDecision(fmt.Sprintf("failed: reason=%s", reason))
	}
	if err := covenant.Transition(models.CovenantFailed); err != nil {
		return err
	}
	if err := a.store.SaveCovenant(ctx, covenant); err != nil {
		return fmt.Errorf("mediator: persist failed covenant: %w", err)
	}
	a.setHeadLocked(covenant)
	a.metrics.ObserveCovenantTransition(string(models.CovenantFailed))
	a.broadcastState(ctx, covenant, reason, 0)
	return nil
}

func (a *Actor) cancelGuardLocked(covenantID string) {
	if ch, ok := a.guards[covenantID]; ok {
		close(ch)
		delete(a.guards, covenantID)
	}
}

// reloadLocked must be called with a.mu held.
func (a *Actor) reloadLocked(ctx context.Context, covenantID string) (*models.Covenant, error) {
	covenant, err := a.store.GetCovenant(ctx, covenantID)
	if err != nil {
		return nil, fmt.Errorf("mediator: reload covenant %s: %w", covenantID, err)
	}
	return covenant, nil
}

// setHeadLocked must be called with a.mu held.
func (a *Actor) setHeadLocked(covenant *models.Covenant) {
	head := *covenant
	a.head = &head
}

func (a *Actor) broadcastState(ctx context.Context, covenant *models.Covenant, reason string, quality float64) {
	if a.publisher == nil {
		return
	}
	payload := events.CovenantStatusPayload{
		Type:       events.EventTypeCovenantStatus,
		CovenantID: covenant.ID,
		UserID:     covenant.UserID,
		State:      string(covenant.State),
		Reason:     reason,
		Quality:    quality,
		Timestamp:  a.now().Format(time.RFC3339Nano),
	}
	if covenant.Results != nil {
		payload.Content = covenant.Results.Content
		payload.CostUSD = covenant.Results.CostUSD
		payload.LatencyMS = covenant.Results.LatencyMS
	}
	if err := a.publisher.PublishCovenantStatus(ctx, payload); err != nil {
		// Best-effort: a dropped broadcast does not roll back the
		// already-persisted state transition. A reconnecting client
		// recovers via its catchup query.
		_ = err
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
