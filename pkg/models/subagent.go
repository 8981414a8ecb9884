package models

import (
	"errors"
	"time"
)

// SubAgentRole identifies a sub-agent's function within an orchestration
// plan. The generic five-role plan uses the first five; the rainbow pattern
// adds the color roles plus spawner/aggregator.
type SubAgentRole string

const (
	RoleClassifier SubAgentRole = "classifier"
	RoleRouter     SubAgentRole = "router"
	RoleExecutor   SubAgentRole = "executor"
	RoleEvaluator  SubAgentRole = "evaluator"
	RoleCoordinator SubAgentRole = "coordinator"

	RoleColorRed    SubAgentRole = "color-red"
	RoleColorOrange SubAgentRole = "color-orange"
	RoleColorYellow SubAgentRole = "color-yellow"
	RoleColorGreen  SubAgentRole = "color-green"
	RoleColorBlue   SubAgentRole = "color-blue"
	RoleColorIndigo SubAgentRole = "color-indigo"
	RoleColorViolet SubAgentRole = "color-violet"
	RoleSpawner     SubAgentRole = "spawner"
	RoleAggregator  SubAgentRole = "aggregator"
)

// SubAgentStatus is monotonic: pending -> running -> completed|failed.
type SubAgentStatus string

const (
	SubAgentPending   SubAgentStatus = "pending"
	SubAgentRunning   SubAgentStatus = "running"
	SubAgentCompleted SubAgentStatus = "completed"
	SubAgentFailed    SubAgentStatus = "failed"
)

func (s SubAgentStatus) terminal() bool {
	return s == SubAgentCompleted || s == SubAgentFailed
}

var validSubAgentTransitions = map[SubAgentStatus]map[SubAgentStatus]bool{
	SubAgentPending: {SubAgentRunning: true, SubAgentFailed: true},
	SubAgentRunning: {SubAgentCompleted: true, SubAgentFailed: true},
}

// ErrInvalidSubAgentTransition mirrors ErrInvalidTransition for sub-agent
// task status, which has its own narrower state graph.
var ErrInvalidSubAgentTransition = errors.New("invalid sub-agent task status transition")

// SubAgentOutput carries either a successful result blob or an error on a
// terminal sub-agent task. Exactly one of Result/Error is set.
type SubAgentOutput struct {
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

// SubAgentTask is one node in a per-covenant DAG of sub-agent work, owned by
// an Orchestrator actor for the duration of a single orchestration run.
type SubAgentTask struct {
	ID         string       `json:"id"`
	CovenantID string       `json:"covenant_id"`
	Role       SubAgentRole `json:"role"`

	InputPrompt string  `json:"input_prompt"`
	ModelID     string  `json:"model_id"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`

	// ParentContext snapshots the relevant mediator context plus any
	// previous sibling outputs this task depends on.
	ParentContext string `json:"parent_context,omitempty"`

	Status   SubAgentStatus `json:"status"`
	Progress int            `json:"progress"` // 0-100

	Thoughts []string `json:"thoughts,omitempty"`
	Actions  []string `json:"actions,omitempty"`

	Output *SubAgentOutput `json:"output,omitempty"`

	// ParentID is nil for roots; the set of tasks in one orchestrator scope
	// forms an acyclic DAG.
	ParentID *string `json:"parent_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Transition moves the task's status forward, rejecting anything outside
// pending -> running -> completed|failed.
func (t *SubAgentTask) Transition(next SubAgentStatus) error {
	if t.Status.terminal() {
		return ErrInvalidSubAgentTransition
	}
	if !validSubAgentTransitions[t.Status][next] {
		return ErrInvalidSubAgentTransition
	}
	t.Status = next
	now := time.Now()
	switch next {
	case SubAgentRunning:
		t.StartedAt = &now
	case SubAgentCompleted, SubAgentFailed:
		t.CompletedAt = &now
	}
	return nil
}

// AddThought appends to the append-only reasoning log.
func (t *SubAgentTask) AddThought(thought string) {
	t.Thoughts = append(t.Thoughts, thought)
}

// AddAction appends to the append-only step-label log.
func (t *SubAgentTask) AddAction(action string) {
	t.Actions = append(t.Actions, action)
}
