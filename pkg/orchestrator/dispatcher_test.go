package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/covenant/pkg/config"
	"github.com/codeready-toolchain/covenant/pkg/events"
	"github.com/codeready-toolchain/covenant/pkg/mediator"
	"github.com/codeready-toolchain/covenant/pkg/models"
)

type fakeStore struct {
	mu    sync.Mutex
	saved []*models.SubAgentTask
}

func (s *fakeStore) SaveSubAgentTask(_ context.Context, t *models.SubAgentTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.saved = append(s.saved, &cp)
	return nil
}

type fakePublisher struct{}

func (fakePublisher) PublishSubAgentStatus(context.Context, events.SubAgentStatusPayload) error { return nil }
func (fakePublisher) PublishOrchestrationProgress(context.Context, events.OrchestrationProgressPayload) error {
	return nil
}

type fakeLister struct{ empty bool }

func (l *fakeLister) ByTier(tier models.Tier) []models.ModelDescriptor {
	if l.empty {
		return nil
	}
	return []models.ModelDescriptor{{ID: "model-" + string(tier), Tier: tier}}
}

type fakeRunner struct {
	mu       sync.Mutex
	ran      []models.SubAgentRole
	failRole models.SubAgentRole
}

func (r *fakeRunner) Run(_ context.Context, t *models.SubAgentTask) error {
	r.mu.Lock()
	r.ran = append(r.ran, t.Role)
	r.mu.Unlock()

	if err := t.Transition(models.SubAgentRunning); err != nil {
		return err
	}

	if r.failRole != "" && t.Role == r.failRole {
		t.Output = &models.SubAgentOutput{Error: "boom"}
		return t.Transition(models.SubAgentFailed)
	}

	var result string
	switch t.Role {
	case models.RoleColorRed:
		result = "RED"
	case models.RoleColorOrange:
		result = "ORANGE"
	case models.RoleColorYellow:
		result = "YELLOW"
	case models.RoleColorGreen:
		result = "GREEN"
	case models.RoleColorBlue:
		result = "BLUE"
	case models.RoleColorIndigo:
		result = "INDIGO"
	case models.RoleColorViolet:
		result = "VIOLET"
	case models.RoleAggregator:
		result = t.ParentContext
	case models.RoleEvaluator:
		result = "0.8 strong result"
	case models.RoleCoordinator:
		result = "final answer"
	default:
		result = "ok"
	}
	t.Output = &models.SubAgentOutput{Result: result}
	return t.Transition(models.SubAgentCompleted)
}

type fakeCallback struct {
	done chan mediator.CallbackResult
}

func newFakeCallback() *fakeCallback {
	return &fakeCallback{done: make(chan mediator.CallbackResult, 1)}
}

func (c *fakeCallback) HandleCallback(_ context.Context, result mediator.CallbackResult) error {
	c.done <- result
	return nil
}

func testDefaults() config.Defaults {
	return config.Defaults{
		TokensSimple:                  2048,
		TokensModerate:                4096,
		TokensComplex:                 8192,
		ParallelExecutorCap:           5,
		OrchestratorTimeoutMultiplier: 2,
		RainbowPacingMinMS:            1,
		RainbowPacingMaxMS:            2,
		ContextWindowMessages:         5,
		QualityGateThreshold:          0.6,
	}
}

func waitCallback(t *testing.T, c *fakeCallback) mediator.CallbackResult {
	t.Helper()
	select {
	case result := <-c.done:
		return result
	case <-time.After(2 * time.Second):
		t.Fatal("callback never arrived")
		return mediator.CallbackResult{}
	}
}

func TestDelegate_RainbowPatternProducesOrderedColors(t *testing.T) {
	d := NewDispatcher(&fakeStore{}, fakePublisher{}, &fakeRunner{}, &fakeLister{}, testDefaults())
	cb := newFakeCallback()

	covenant := &models.Covenant{
		ID:          "cov-rainbow",
		Intent:      "Delegate a covenant that spawns sub-agents returning colors of the rainbow in gradient order starting with red.",
		Constraints: models.Constraints{MaxCostUSD: 1, MaxLatencyMS: 10000, RequiredQuality: models.QualityBalanced},
	}

	require.NoError(t, d.Delegate(context.Background(), covenant, mediator.MediatorContext{UserID: "user-1"}, cb))

	result := waitCallback(t, cb)
	require.Equal(t, models.CovenantCompleted, result.State)
	require.NotNil(t, result.Results)

	order := []string{"RED", "ORANGE", "YELLOW", "GREEN", "BLUE", "INDIGO", "VIOLET"}
	last := -1
	for _, color := range order {
		idx := strings.Index(result.Results.Content, color)
		require.Greaterf(t, idx, last, "expected %s to appear after the previous color", color)
		last = idx
	}
}

func TestDelegate_GenericPlanAggregatesQualityFromEvaluator(t *testing.T) {
	d := NewDispatcher(&fakeStore{}, fakePublisher{}, &fakeRunner{}, &fakeLister{}, testDefaults())
	cb := newFakeCallback()

	covenant := &models.Covenant{
		ID:          "cov-generic",
		Intent:      "Analyze in great detail the trade-offs of cloud versus on-prem infrastructure and then explain your reasoning.",
		Constraints: models.Constraints{MaxCostUSD: 1, MaxLatencyMS: 10000, RequiredQuality: models.QualityBalanced},
	}

	require.NoError(t, d.Delegate(context.Background(), covenant, mediator.MediatorContext{UserID: "user-1"}, cb))

	result := waitCallback(t, cb)
	require.Equal(t, models.CovenantCompleted, result.State)
	require.Equal(t, "final answer", result.Results.Content)
	require.Equal(t, 0.8, result.Results.Quality)
	require.Greater(t, result.Results.SubAgentCount, 0)
}

func TestDelegate_AllExecutorsFailYieldsNoExecutorResult(t *testing.T) {
	runner := &fakeRunner{failRole: models.RoleExecutor}
	d := NewDispatcher(&fakeStore{}, fakePublisher{}, runner, &fakeLister{}, testDefaults())
	cb := newFakeCallback()

	covenant := &models.Covenant{
		ID:          "cov-fail",
		Intent:      "Analyze in great detail the trade-offs of cloud versus on-prem infrastructure and then explain your reasoning.",
		Constraints: models.Constraints{MaxCostUSD: 1, MaxLatencyMS: 10000, RequiredQuality: models.QualityBalanced},
	}

	require.NoError(t, d.Delegate(context.Background(), covenant, mediator.MediatorContext{UserID: "user-1"}, cb))

	result := waitCallback(t, cb)
	require.Equal(t, models.CovenantFailed, result.State)
	require.Equal(t, "no_executor_result", result.Reason)
}

func TestDelegate_NoModelAvailableYieldsPlanError(t *testing.T) {
	d := NewDispatcher(&fakeStore{}, fakePublisher{}, &fakeRunner{}, &fakeLister{empty: true}, testDefaults())
	cb := newFakeCallback()

	covenant := &models.Covenant{
		ID:          "cov-noplan",
		Intent:      "hello",
		Constraints: models.Constraints{MaxCostUSD: 1, MaxLatencyMS: 10000, RequiredQuality: models.QualityFast},
	}

	require.NoError(t, d.Delegate(context.Background(), covenant, mediator.MediatorContext{UserID: "user-1"}, cb))

	result := waitCallback(t, cb)
	require.Equal(t, models.CovenantFailed, result.State)
	require.Equal(t, "plan_error", result.Reason)
}

func TestStatus_ReportsRunningUntilComplete(t *testing.T) {
	d := NewDispatcher(&fakeStore{}, fakePublisher{}, &fakeRunner{}, &fakeLister{}, testDefaults())
	cb := newFakeCallback()

	covenant := &models.Covenant{
		ID:          "cov-status",
		Intent:      "hello",
		Constraints: models.Constraints{MaxCostUSD: 1, MaxLatencyMS: 10000, RequiredQuality: models.QualityFast},
	}

	require.NoError(t, d.Delegate(context.Background(), covenant, mediator.MediatorContext{UserID: "user-1"}, cb))
	waitCallback(t, cb)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		running, err := d.Status(context.Background(), covenant.ID)
		require.NoError(t, err)
		if !running {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("dispatcher never cleared running state")
}
