// Package subagent implements prompt composition and a single provider
// call per sub-agent task, with no retries of its own — transient-failure
// retry lives in the Provider Client, and cross-model fallback lives in
// the Smart Router that picked task.ModelID.
package subagent

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/covenant/pkg/models"
	"github.com/codeready-toolchain/covenant/pkg/provider"
)

// Caller is the narrow provider.Client surface the executor depends on.
type Caller interface {
	Call(ctx context.Context, modelID string, messages []provider.Message, params provider.Params) (provider.Result, error)
}

// Executor runs a single SubAgentTask to completion.
type Executor struct {
	caller Caller
}

// New creates an Executor backed by caller.
func New(caller Caller) *Executor {
	return &Executor{caller: caller}
}

// Run transitions task to running, makes exactly one provider call, and
// transitions it to its terminal state. Returns an error only when the
// task's own status transition is invalid (a programming error by the
// caller) — a failed provider call is recorded on the task, not returned.
func (e *Executor) Run(ctx context.Context, task *models.SubAgentTask) error {
	if err := task.Transition(models.SubAgentRunning); err != nil {
		return fmt.Errorf("sub-agent task %s: %w", task.ID, err)
	}

	task.AddThought(fmt.Sprintf("composing prompt for role %s", task.Role))
	messages := composeMessages(task)

	task.AddAction(fmt.Sprintf("invoking model %s", task.ModelID))
	result, err := e.caller.Call(ctx, task.ModelID, messages, provider.Params{
		Temperature: task.Temperature,
		MaxTokens:   task.MaxTokens,
	})
	if err != nil {
		task.Output = &models.SubAgentOutput{Error: err.Error()}
		task.AddThought("provider call failed: " + err.Error())
		return task.Transition(models.SubAgentFailed)
	}

	task.Output = &models.SubAgentOutput{Result: result.Content, LatencyMS: result.LatencyMS}
	task.Progress = 100
	task.AddThought("received model output")
	return task.Transition(models.SubAgentCompleted)
}

// composeMessages builds the conversation a sub-agent sends to its model: a
// role-specific system prompt, the snapshotted parent context (sibling
// outputs this task depends on), and the task's own instruction.
func composeMessages(task *models.SubAgentTask) []provider.Message {
	messages := []provider.Message{
		{Role: "system", Content: systemPromptFor(task.Role)},
	}
	if task.ParentContext != "" {
		messages = append(messages, provider.Message{Role: "user", Content: "Context from prior sub-agents:\n" + task.ParentContext})
	}
	messages = append(messages, provider.Message{Role: "user", Content: task.InputPrompt})
	return messages
}

// systemPromptFor returns the role-specific instruction every sub-agent of
// that role is anchored to.
func systemPromptFor(role models.SubAgentRole) string {
	switch role {
	case models.RoleClassifier:
		return "You classify the complexity and intent of a user request. Respond concisely with your classification and reasoning."
	case models.RoleRouter:
		return "You decide which downstream sub-agents should handle a request and in what order. Respond with a short routing plan."
	case models.RoleExecutor:
		return "You carry out one concrete piece of work toward the user's intent. Respond with the work product itself, not a description of it."
	case models.RoleEvaluator:
		return "You judge whether a candidate result satisfies the user's intent. Respond with a pass/fail judgment and a brief justification."
	case models.RoleCoordinator:
		return "You merge the outputs of prior sub-agents into one coherent final answer for the user."
	case models.RoleSpawner:
		return "You introduce the task to follow, setting shared context for the sub-agents that come after you."
	case models.RoleAggregator:
		return "You combine the outputs of every preceding sub-agent into one final answer."
	default:
		if isColorRole(role) {
			return fmt.Sprintf("You are the %s sub-agent in a rainbow-ordered chain. Contribute your part, building on whatever context came before you.", role)
		}
		return "You are a sub-agent contributing to a larger orchestrated task."
	}
}

func isColorRole(role models.SubAgentRole) bool {
	switch role {
	case models.RoleColorRed, models.RoleColorOrange, models.RoleColorYellow,
		models.RoleColorGreen, models.RoleColorBlue, models.RoleColorIndigo, models.RoleColorViolet:
		return true
	default:
		return false
	}
}
