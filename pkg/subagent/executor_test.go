package subagent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/covenant/pkg/models"
	"github.com/codeready-toolchain/covenant/pkg/provider"
)

type fakeCaller struct {
	calls    int
	messages []provider.Message
	result   provider.Result
	err      error
}

func (f *fakeCaller) Call(_ context.Context, _ string, messages []provider.Message, _ provider.Params) (provider.Result, error) {
	f.calls++
	f.messages = messages
	return f.result, f.err
}

func newTestTask() *models.SubAgentTask {
	return &models.SubAgentTask{
		ID:            "task-1",
		CovenantID:    "cov-1",
		Role:          models.RoleExecutor,
		InputPrompt:   "do the thing",
		ModelID:       "primary/fast",
		Temperature:   0.5,
		MaxTokens:     2048,
		ParentContext: "classifier said: simple",
		Status:        models.SubAgentPending,
	}
}

func TestRun_SuccessCompletesTask(t *testing.T) {
	caller := &fakeCaller{result: provider.Result{Content: "done"}}
	e := New(caller)
	task := newTestTask()

	require.NoError(t, e.Run(context.Background(), task))

	require.Equal(t, models.SubAgentCompleted, task.Status)
	require.Equal(t, "done", task.Output.Result)
	require.Empty(t, task.Output.Error)
	require.Equal(t, 100, task.Progress)
	require.NotNil(t, task.CompletedAt)
	require.Equal(t, 1, caller.calls)
}

func TestRun_CallerErrorFailsTask(t *testing.T) {
	caller := &fakeCaller{err: errors.New("gateway down")}
	e := New(caller)
	task := newTestTask()

	err := e.Run(context.Background(), task)
	require.NoError(t, err) // task failure is recorded on the task, not returned

	require.Equal(t, models.SubAgentFailed, task.Status)
	require.Equal(t, "gateway down", task.Output.Error)
	require.Empty(t, task.Output.Result)
	require.Equal(t, 1, caller.calls)
}

func TestRun_ComposesSystemPromptAndContext(t *testing.T) {
	caller := &fakeCaller{result: provider.Result{Content: "done"}}
	e := New(caller)
	task := newTestTask()

	require.NoError(t, e.Run(context.Background(), task))

	require.Len(t, caller.messages, 3)
	require.Equal(t, "system", caller.messages[0].Role)
	require.Contains(t, caller.messages[0].Content, "concrete piece of work")
	require.Equal(t, "user", caller.messages[1].Role)
	require.Contains(t, caller.messages[1].Content, "classifier said: simple")
	require.Equal(t, "user", caller.messages[2].Role)
	require.Equal(t, "do the thing", caller.messages[2].Content)
}

func TestRun_NoParentContextOmitsContextMessage(t *testing.T) {
	caller := &fakeCaller{result: provider.Result{Content: "done"}}
	e := New(caller)
	task := newTestTask()
	task.ParentContext = ""

	require.NoError(t, e.Run(context.Background(), task))
	require.Len(t, caller.messages, 2)
}

func TestRun_ColorRoleGetsRainbowPrompt(t *testing.T) {
	caller := &fakeCaller{result: provider.Result{Content: "done"}}
	e := New(caller)
	task := newTestTask()
	task.Role = models.RoleColorIndigo

	require.NoError(t, e.Run(context.Background(), task))
	require.Contains(t, caller.messages[0].Content, "rainbow-ordered chain")
}

func TestRun_InvalidStartingStateReturnsError(t *testing.T) {
	caller := &fakeCaller{result: provider.Result{Content: "done"}}
	e := New(caller)
	task := newTestTask()
	task.Status = models.SubAgentCompleted

	err := e.Run(context.Background(), task)
	require.Error(t, err)
	require.Equal(t, 0, caller.calls)
}
