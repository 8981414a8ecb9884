package orchestrator

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/covenant/pkg/mediator"
	"github.com/codeready-toolchain/covenant/pkg/models"
)

// rainbowPattern detects the rainbow color-swarm pattern in a covenant's
// intent, ahead of generic planning.
var rainbowPattern = regexp.MustCompile(`(?i)rainbow|colors?|gradient|roygbiv|sub-?agent.*color`)

func isRainbowIntent(intent string) bool {
	return rainbowPattern.MatchString(intent)
}

var rainbowColors = []struct {
	role models.SubAgentRole
	name string
}{
	{models.RoleColorRed, "Red"},
	{models.RoleColorOrange, "Orange"},
	{models.RoleColorYellow, "Yellow"},
	{models.RoleColorGreen, "Green"},
	{models.RoleColorBlue, "Blue"},
	{models.RoleColorIndigo, "Indigo"},
	{models.RoleColorViolet, "Violet"},
}

// executorFanout computes k, the number of parallel executors in a generic
// plan: min(cap, ceil(score*5)), floored at 1.
func executorFanout(score float64, cap int) int {
	k := int(math.Ceil(score * 5))
	if k < 1 {
		k = 1
	}
	if cap > 0 && k > cap {
		k = cap
	}
	return k
}

// planStage is one wave of an orchestration run. Tasks in a stage with
// pacing == 0 run concurrently; a positive pacing runs them sequentially
// with at least that gap between each task's start, for the rainbow
// pattern's gradient build-up.
type planStage struct {
	tasks  []*models.SubAgentTask
	pacing time.Duration
}

// plan is the ordered set of sub-agent stages an orchestration run
// executes. Stages execute in order.
type plan struct {
	stages        []planStage
	executorStage int // index into stages of the role-executor wave, -1 if none
}

func newSubAgentTask(covenantID string, role models.SubAgentRole, prompt, modelID string, temperature float64, maxTokens int, parentContext string) *models.SubAgentTask {
	return &models.SubAgentTask{
		ID:            uuid.NewString(),
		CovenantID:    covenantID,
		Role:          role,
		InputPrompt:   prompt,
		ModelID:       modelID,
		Temperature:   temperature,
		MaxTokens:     maxTokens,
		ParentContext: parentContext,
		Status:        models.SubAgentPending,
	}
}

// buildRainbowPlan emits one spawner, seven color sub-agents in fixed
// ROYGBIV order, and one aggregator. Color sub-agents form their own
// sequential stage so the dispatcher can pace them >= 150ms apart.
func buildRainbowPlan(covenant *models.Covenant, mctx mediator.MediatorContext, lister ModelLister, maxTokens int, pacing time.Duration) plan {
	baseContext := sharedParentContext(covenant, mctx)
	modelID := pickModel(lister, models.TierPrimary, "")

	spawner := newSubAgentTask(covenant.ID, models.RoleSpawner,
		"Introduce the rainbow sub-agent chain that follows: "+covenant.Intent, modelID, 0.7, maxTokens, baseContext)

	colorTasks := make([]*models.SubAgentTask, 0, len(rainbowColors))
	for _, c := range rainbowColors {
		prompt := fmt.Sprintf("State the color %s in uppercase, then one short sentence about it.", c.name)
		colorTasks = append(colorTasks, newSubAgentTask(covenant.ID, c.role, prompt, modelID, 0.7, maxTokens, baseContext))
	}

	aggregator := newSubAgentTask(covenant.ID, models.RoleAggregator,
		"Concatenate the preceding color sub-agent outputs in the order Red, Orange, Yellow, Green, Blue, Indigo, Violet, verifying order is preserved.",
		modelID, 0.3, maxTokens, baseContext)

	return plan{
		stages: []planStage{
			{tasks: []*models.SubAgentTask{spawner}},
			{tasks: colorTasks, pacing: pacing},
			{tasks: []*models.SubAgentTask{aggregator}},
		},
		executorStage: -1,
	}
}

// buildGenericPlan emits the classifier -> router -> executor[k] ->
// evaluator -> coordinator pipeline.
func buildGenericPlan(covenant *models.Covenant, mctx mediator.MediatorContext, lister ModelLister, k int, maxTokens int) plan {
	baseContext := sharedParentContext(covenant, mctx)

	evaluatorTier := models.TierPrimary
	coordinatorTier := models.TierPrimary
	if covenant.Constraints.RequiredQuality == models.QualityQuality {
		evaluatorTier = models.TierFlagship
		coordinatorTier = models.TierFlagship
	}

	classifier := newSubAgentTask(covenant.ID, models.RoleClassifier, covenant.Intent,
		pickModel(lister, models.TierPrimary, ""), 0.3, maxTokens, baseContext)

	routerTask := newSubAgentTask(covenant.ID, models.RoleRouter, covenant.Intent,
		pickModel(lister, models.TierPrimary, ""), 0.3, maxTokens, baseContext)

	executors := make([]*models.SubAgentTask, 0, k)
	for i := 0; i < k; i++ {
		branchContext := fmt.Sprintf("%s\nbranch_index: %d of %d", baseContext, i+1, k)
		executors = append(executors, newSubAgentTask(covenant.ID, models.RoleExecutor, covenant.Intent,
			pickModel(lister, models.TierPrimary, ""), 0.7, maxTokens, branchContext))
	}

	evaluatorPrompt := "Evaluate the preceding executor outputs against the user's intent below. Respond with a quality score between 0 and 1 as the very first token, then a brief justification.\n\nUser intent: " + covenant.Intent
	evaluator := newSubAgentTask(covenant.ID, models.RoleEvaluator, evaluatorPrompt,
		pickModel(lister, evaluatorTier, models.TierPrimary), 0.3, maxTokens, baseContext)

	coordinatorPrompt := "Produce one coherent final answer to the user's intent below, incorporating the preceding executor outputs and evaluator judgment.\n\nUser intent: " + covenant.Intent
	coordinator := newSubAgentTask(covenant.ID, models.RoleCoordinator, coordinatorPrompt,
		pickModel(lister, coordinatorTier, models.TierPrimary), 0.7, maxTokens, baseContext)

	return plan{
		stages: []planStage{
			{tasks: []*models.SubAgentTask{classifier}},
			{tasks: []*models.SubAgentTask{routerTask}},
			{tasks: executors},
			{tasks: []*models.SubAgentTask{evaluator}},
			{tasks: []*models.SubAgentTask{coordinator}},
		},
		executorStage: 2,
	}
}

// sharedParentContext serializes the context every sub-agent in a run
// receives at plan-construction time: the covenant's intent, its
// constraints, and the mediator's last-N messages. Sibling outputs aren't
// known yet here — the dispatcher appends previous_results per stage once
// those outputs exist.
func sharedParentContext(covenant *models.Covenant, mctx mediator.MediatorContext) string {
	out := fmt.Sprintf("intent: %s\nmax_cost_usd: %.4f\nmax_latency_ms: %d\nrequired_quality: %s",
		covenant.Intent, covenant.Constraints.MaxCostUSD, covenant.Constraints.MaxLatencyMS, covenant.Constraints.RequiredQuality)
	for _, m := range mctx.LastMessages {
		out += fmt.Sprintf("\n%s: %s", m.Role, m.Content)
	}
	return out
}

// pickModel chooses the first candidate in tier, falling back to
// fallbackTier and then to whatever the registry has, so a thin test
// catalog never blocks planning.
func pickModel(lister ModelLister, tier models.Tier, fallbackTier models.Tier) string {
	if candidates := lister.ByTier(tier); len(candidates) > 0 {
		return candidates[0].ID
	}
	if fallbackTier != "" {
		if candidates := lister.ByTier(fallbackTier); len(candidates) > 0 {
			return candidates[0].ID
		}
	}
	for _, t := range []models.Tier{models.TierPrimary, models.TierFlagship, models.TierEdge} {
		if candidates := lister.ByTier(t); len(candidates) > 0 {
			return candidates[0].ID
		}
	}
	return ""
}
