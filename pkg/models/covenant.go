// Package models contains the domain entities shared across the mediator,
// orchestrator, router, and store packages.
package models

import (
	"errors"
	"time"
)

// CovenantState is the lifecycle state of a Covenant. Transitions are
// one-directional: draft -> active -> delegated -> completed|failed|rejected.
type CovenantState string

const (
	CovenantDraft     CovenantState = "draft"
	CovenantActive    CovenantState = "active"
	CovenantDelegated CovenantState = "delegated"
	CovenantCompleted CovenantState = "completed"
	CovenantFailed    CovenantState = "failed"
	CovenantRejected  CovenantState = "rejected"
)

// terminal reports whether a state has no outgoing transitions.
func (s CovenantState) terminal() bool {
	return s.IsTerminal()
}

// IsTerminal reports whether a state has no outgoing transitions.
func (s CovenantState) IsTerminal() bool {
	switch s {
	case CovenantCompleted, CovenantFailed, CovenantRejected:
		return true
	default:
		return false
	}
}

// validNextStates enumerates the one-directional transition graph.
var validNextStates = map[CovenantState]map[CovenantState]bool{
	CovenantDraft:     {CovenantActive: true, CovenantFailed: true},
	CovenantActive:    {CovenantDelegated: true, CovenantCompleted: true, CovenantFailed: true},
	CovenantDelegated: {CovenantCompleted: true, CovenantFailed: true, CovenantRejected: true},
}

// ErrInvalidTransition is returned when a state transition would violate the
// covenant's one-directional lifecycle.
var ErrInvalidTransition = errors.New("invalid covenant state transition")

// Results is populated when a covenant completes on the fast path, or by the
// Orchestrator callback on a delegated covenant.
type Results struct {
	Content       string  `json:"content"`
	Quality       float64 `json:"quality"`
	CostUSD       float64 `json:"cost_usd"`
	LatencyMS     int64   `json:"latency_ms"`
	SubAgentCount int     `json:"sub_agent_count"`
}

// Covenant is the per-user lifecycle entity the Mediator owns.
type Covenant struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Intent string `json:"intent"`

	Constraints Constraints   `json:"constraints"`
	State       CovenantState `json:"state"`

	// MediatorDecision is an append-only record of why the mediator chose
	// the fast path or delegation, and of the reason for any failure. The
	// quality gate's outcome is not recorded here; RejectionReason carries a
	// rejection.
	MediatorDecision string `json:"mediator_decision"`

	OrchestrationPlan string   `json:"orchestration_plan,omitempty"`
	Results           *Results `json:"results,omitempty"`

	// RejectionReason is set when State == CovenantRejected.
	RejectionReason string `json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transition moves the covenant to next, rejecting any transition outside
// the one-directional lifecycle graph. A terminal state never transitions.
func (c *Covenant) Transition(next CovenantState) error {
	if c.State.terminal() {
		return ErrInvalidTransition
	}
	if !validNextStates[c.State][next] {
		return ErrInvalidTransition
	}
	c.State = next
	return nil
}

// AppendDecision appends a line to the append-only mediator_decision log.
func (c *Covenant) AppendDecision(line string) {
	if c.MediatorDecision == "" {
		c.MediatorDecision = line
		return
	}
	c.MediatorDecision = c.MediatorDecision + "\n" + line
}

// MessageRole identifies who authored a Message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is one conversation turn, owned exclusively by a user's Mediator.
type Message struct {
	ID          string      `json:"id"`
	CovenantID  string      `json:"covenant_id,omitempty"` // empty for system messages
	Role        MessageRole `json:"role"`
	Content     string      `json:"content"`
	Timestamp   time.Time   `json:"timestamp"`
}

// PerformanceCounters are rolling, per-user statistics.
type PerformanceCounters struct {
	TotalCovenants  int     `json:"total_covenants"`
	DelegatedCount  int     `json:"delegated_count"`
	CompletedCount  int     `json:"completed_count"`
	RejectedCount   int     `json:"rejected_count"`
	AvgLatencyMS    float64 `json:"avg_latency_ms"`
	TotalCostUSD    float64 `json:"total_cost_usd"`
}
