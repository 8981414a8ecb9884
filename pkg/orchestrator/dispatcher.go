// Package orchestrator implements the Orchestrator Actor: one actor per
// delegated covenant that plans a sub-agent run (pattern-detected rainbow
// swarm or the generic five-role pipeline), drives it to completion, and
// calls back into the delegating Mediator.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codeready-toolchain/covenant/pkg/config"
	"github.com/codeready-toolchain/covenant/pkg/events"
	"github.com/codeready-toolchain/covenant/pkg/mediator"
	"github.com/codeready-toolchain/covenant/pkg/models"
	"github.com/codeready-toolchain/covenant/pkg/router"
)

// providerCallHardDeadlineMS is the ceiling every individual sub-agent
// provider call is bound by, independent of the overall orchestration
// budget, mirroring the fast path's own per-call cap in pkg/mediator.
const providerCallHardDeadlineMS = 30000

// Dispatcher implements mediator.OrchestratorDispatcher. One Dispatcher
// serves every covenant a process delegates to; each Delegate call spawns
// an independent background run tracked by covenant id.
type Dispatcher struct {
	store     Store
	publisher Publisher
	runner    SubAgentRunner
	models    ModelLister
	defaults  config.Defaults
	now       func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

// NewDispatcher builds a Dispatcher over the given collaborators.
func NewDispatcher(store Store, publisher Publisher, runner SubAgentRunner, lister ModelLister, defaults config.Defaults) *Dispatcher {
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		runner:    runner,
		models:    lister,
		defaults:  defaults,
		now:       time.Now,
		running:   make(map[string]bool),
	}
}

// Delegate accepts a covenant for orchestration, persists nothing itself
// (the caller's covenant row already reflects the delegated transition),
// and returns immediately; the run proceeds in the background.
func (d *Dispatcher) Delegate(_ context.Context, covenant *models.Covenant, mctx mediator.MediatorContext, callback mediator.CallbackHandle) error {
	cov := *covenant

	d.mu.Lock()
	d.running[cov.ID] = true
	d.mu.Unlock()

	go d.run(context.Background(), &cov, mctx, callback)
	return nil
}

// Status reports whether covenantID's run is still in flight. Used only by
// the Mediator's UI-liveness monitor; never a correctness signal.
func (d *Dispatcher) Status(_ context.Context, covenantID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running[covenantID], nil
}

func (d *Dispatcher) finish(covenantID string) {
	d.mu.Lock()
	delete(d.running, covenantID)
	d.mu.Unlock()
}

// run drives one orchestration end to end: plan, execute, aggregate,
// callback. Always calls back exactly once, win or lose.
func (d *Dispatcher) run(ctx context.Context, covenant *models.Covenant, mctx mediator.MediatorContext, callback mediator.CallbackHandle) {
	defer d.finish(covenant.ID)

	budget := time.Duration(covenant.Constraints.MaxLatencyMS) * time.Millisecond * time.Duration(d.defaults.OrchestratorTimeoutMultiplier)
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	d.progress(ctx, covenant.ID, "planning")
	p, err := d.buildPlan(covenant, mctx)
	if err != nil {
		d.callback(ctx, callback, covenant.ID, nil, "plan_error")
		return
	}

	callDeadline := time.Duration(minInt(covenant.Constraints.MaxLatencyMS, providerCallHardDeadlineMS)) * time.Millisecond

	d.progress(ctx, covenant.ID, "executing")
	outputs, err := d.executePlan(runCtx, p, callDeadline)
	if err != nil {
		d.callback(ctx, callback, covenant.ID, nil, "overall_timeout")
		return
	}

	if p.executorStage >= 0 && !anySucceeded(p.stages[p.executorStage].tasks) {
		d.callback(ctx, callback, covenant.ID, nil, "no_executor_result")
		return
	}

	d.progress(ctx, covenant.ID, "aggregating")
	results := aggregate(outputs)
	d.callback(ctx, callback, covenant.ID, results, "")
}

// buildPlan detects the rainbow pattern and otherwise builds the generic
// five-role pipeline, failing only when the model registry cannot supply a
// usable model for one of the plan's tasks.
func (d *Dispatcher) buildPlan(covenant *models.Covenant, mctx mediator.MediatorContext) (plan, error) {
	classification := router.Classify(covenant.Intent)
	maxTokens := covenant.Constraints.MaxTokens
	if maxTokens == 0 {
		maxTokens = d.defaults.TokensModerate
	}

	var p plan
	if isRainbowIntent(covenant.Intent) {
		pacing := time.Duration(d.defaults.RainbowPacingMinMS) * time.Millisecond
		p = buildRainbowPlan(covenant, mctx, d.models, maxTokens, pacing)
	} else {
		k := executorFanout(classification.Score, d.defaults.ParallelExecutorCap)
		p = buildGenericPlan(covenant, mctx, d.models, k, maxTokens)
	}

	for _, stage := range p.stages {
		for _, t := range stage.tasks {
			if t.ModelID == "" {
				return plan{}, fmt.Errorf("orchestrator: no model available for role %s", t.Role)
			}
		}
	}
	return p, nil
}

// executePlan runs every stage of p in order, threading each stage's
// completed outputs into the next stage's parent context. Returns an error
// only when the overall orchestration budget is exhausted mid-run.
func (d *Dispatcher) executePlan(ctx context.Context, p plan, callDeadline time.Duration) ([]*models.SubAgentTask, error) {
	var all []*models.SubAgentTask
	var previous string

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		for _, t := range stage.tasks {
			if previous != "" {
				t.ParentContext = t.ParentContext + "\nprevious_results:\n" + previous
			}
		}

		if stage.pacing > 0 {
			d.runSequential(ctx, stage.tasks, stage.pacing, callDeadline)
		} else {
			d.runParallel(ctx, stage.tasks, callDeadline)
		}

		all = append(all, stage.tasks...)
		previous = renderOutputs(stage.tasks)
	}

	return all, nil
}

// runSequential executes tasks one at a time with at least pacing between
// each task's start, for the rainbow pattern's gradient build-up.
func (d *Dispatcher) runSequential(ctx context.Context, tasks []*models.SubAgentTask, pacing, callDeadline time.Duration) {
	for i, t := range tasks {
		if i > 0 {
			timer := time.NewTimer(pacing)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}
		d.runOne(ctx, t, callDeadline)
	}
}

// runParallel fans out tasks across goroutines and awaits all of them,
// mirroring the wait-group fan-out idiom used elsewhere in this codebase
// for bounded parallel work. A single task's failure never aborts its
// siblings.
func (d *Dispatcher) runParallel(ctx context.Context, tasks []*models.SubAgentTask, callDeadline time.Duration) {
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for _, t := range tasks {
		t := t
		go func() {
			defer wg.Done()
			d.runOne(ctx, t, callDeadline)
		}()
	}
	wg.Wait()
}

// runOne executes a single sub-agent task under its own hard deadline,
// independent of the overall orchestration budget, persisting and
// broadcasting its terminal state.
func (d *Dispatcher) runOne(ctx context.Context, t *models.SubAgentTask, callDeadline time.Duration) {
	callCtx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	if err := d.runner.Run(callCtx, t); err != nil {
		t.Output = &models.SubAgentOutput{Error: err.Error()}
	}

	if err := d.store.SaveSubAgentTask(ctx, t); err != nil {
		// Persistence failure doesn't change the task's in-memory outcome;
		// aggregation still proceeds from what's in t.
		_ = err
	}

	payload := events.SubAgentStatusPayload{
		Type:       events.EventTypeSubAgentStatus,
		CovenantID: t.CovenantID,
		TaskID:     t.ID,
		Role:       string(t.Role),
		Status:     string(t.Status),
		Timestamp:  d.now().UTC().Format(time.RFC3339Nano),
	}
	if t.Output != nil {
		payload.Result = t.Output.Result
		payload.Error = t.Output.Error
	}
	_ = d.publisher.PublishSubAgentStatus(ctx, payload)
}

// progress broadcasts an orchestration-level phase change (planning,
// executing, aggregating) as a transient, taskless progress event.
func (d *Dispatcher) progress(ctx context.Context, covenantID, phase string) {
	_ = d.publisher.PublishOrchestrationProgress(ctx, events.OrchestrationProgressPayload{
		Type:       events.EventTypeOrchestrationProgress,
		CovenantID: covenantID,
		Progress:   phase,
		Timestamp:  d.now().UTC().Format(time.RFC3339Nano),
	})
}

// callback invokes the Mediator's callback handle with retry-once-then-
// give-up semantics, matching the fail-soft rule that a second failed
// callback is abandoned to the Mediator's own orchestrator_timeout guard.
func (d *Dispatcher) callback(ctx context.Context, handle mediator.CallbackHandle, covenantID string, results *models.Results, reason string) {
	state := models.CovenantCompleted
	if reason != "" {
		state = models.CovenantFailed
	}
	payload := mediator.CallbackResult{CovenantID: covenantID, State: state, Results: results, Reason: reason}

	if err := handle.HandleCallback(ctx, payload); err != nil {
		time.Sleep(100 * time.Millisecond)
		_ = handle.HandleCallback(ctx, payload)
	}
}

// anySucceeded reports whether at least one task in tasks reached
// completed with a non-error output.
func anySucceeded(tasks []*models.SubAgentTask) bool {
	for _, t := range tasks {
		if t.Status == models.SubAgentCompleted && t.Output != nil && t.Output.Error == "" {
			return true
		}
	}
	return false
}

// renderOutputs serializes a completed stage's task outputs, in stage
// order, as the previous_results context forwarded to the next stage.
func renderOutputs(tasks []*models.SubAgentTask) string {
	var b strings.Builder
	for _, t := range tasks {
		if t.Output == nil {
			continue
		}
		if t.Output.Error != "" {
			fmt.Fprintf(&b, "[%s] error: %s\n", t.Role, t.Output.Error)
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", t.Role, t.Output.Result)
	}
	return b.String()
}

// qualityPattern extracts a leading 0..1 decimal from an evaluator's
// response text.
var qualityPattern = regexp.MustCompile(`\b([01](?:\.\d+)?)\b`)

// parseQuality extracts the evaluator's numeric score, defaulting to 0.5
// (the fail-soft default) when none is found or the evaluator failed.
func parseQuality(evaluatorTasks []*models.SubAgentTask) float64 {
	for _, t := range evaluatorTasks {
		if t.Role != models.RoleEvaluator || t.Output == nil || t.Output.Error != "" {
			continue
		}
		m := qualityPattern.FindStringSubmatch(t.Output.Result)
		if m == nil {
			continue
		}
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return clamp01(v)
		}
	}
	return 0.5
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

// aggregate composes the final Results from a completed plan's tasks.
// Coordinator (or aggregator, for the rainbow pattern) output is
// authoritative for content; quality comes from the evaluator, defaulting
// per the fail-soft rule; latency and sub_agent_count are summed over the
// run, and CostUSD is left at zero.
func aggregate(all []*models.SubAgentTask) *models.Results {
	results := &models.Results{Quality: 0.5}

	var content string
	var evaluatorTasks []*models.SubAgentTask
	for _, t := range all {
		results.SubAgentCount++
		if t.Output != nil {
			results.LatencyMS += t.Output.LatencyMS
		}
		switch t.Role {
		case models.RoleCoordinator, models.RoleAggregator:
			if t.Output != nil && t.Output.Error == "" {
				content = t.Output.Result
			}
		case models.RoleEvaluator:
			evaluatorTasks = append(evaluatorTasks, t)
		}
	}

	if len(evaluatorTasks) > 0 {
		results.Quality = parseQuality(evaluatorTasks)
	}
	results.Content = content
	return results
}
