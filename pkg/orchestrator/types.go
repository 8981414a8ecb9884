package orchestrator

import (
	"context"

	"github.com/codeready-toolchain/covenant/pkg/events"
	"github.com/codeready-toolchain/covenant/pkg/models"
)

// Store is the narrow Covenant Store surface an Orchestrator needs to
// persist the sub-agent tasks it drives. Satisfied by *store.CovenantStore.
type Store interface {
	SaveSubAgentTask(ctx context.Context, t *models.SubAgentTask) error
}

// Publisher is the narrow Event Bus publishing surface an Orchestrator
// needs. Satisfied by *events.EventPublisher.
type Publisher interface {
	PublishSubAgentStatus(ctx context.Context, payload events.SubAgentStatusPayload) error
	PublishOrchestrationProgress(ctx context.Context, payload events.OrchestrationProgressPayload) error
}

// SubAgentRunner runs one sub-agent task to completion. Satisfied by
// *subagent.Executor.
type SubAgentRunner interface {
	Run(ctx context.Context, task *models.SubAgentTask) error
}

// ModelLister is the narrow Model Registry surface the planner needs to
// assign a model to each role. Satisfied by *registry.ModelRegistry.
type ModelLister interface {
	ByTier(tier models.Tier) []models.ModelDescriptor
}
