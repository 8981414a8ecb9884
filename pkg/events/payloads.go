package events

// CovenantStatusPayload is the payload for covenant.status events.
// Published by the Mediator actor on every state transition.
type CovenantStatusPayload struct {
	Type       string  `json:"type"` // always EventTypeCovenantStatus
	CovenantID string  `json:"covenant_id"`
	UserID     string  `json:"user_id"`
	State      string  `json:"state"` // draft, active, delegated, completed, failed, rejected
	Content    string  `json:"content,omitempty"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
	LatencyMS  int64   `json:"latency_ms,omitempty"`
	// Reason is set on failed/rejected states (e.g. "quality_below_threshold",
	// "orchestrator_timeout", "all_providers_failed").
	Reason string `json:"reason,omitempty"`
	// Quality is set alongside Reason="quality_below_threshold".
	Quality   float64 `json:"quality,omitempty"`
	Timestamp string  `json:"timestamp"` // RFC3339Nano
}

// SubAgentStatusPayload is the payload for subagent.status events.
// Published by the Orchestrator actor when a sub-agent task reaches a
// terminal state.
type SubAgentStatusPayload struct {
	Type       string `json:"type"` // always EventTypeSubAgentStatus
	CovenantID string `json:"covenant_id"`
	TaskID     string `json:"task_id"`
	Role       string `json:"role"`
	Status     string `json:"status"` // completed, failed
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"` // RFC3339Nano
}

// OrchestrationProgressPayload is the payload for orchestration.progress
// transient events — published for each sub-agent's in-flight progress
// update. Safe to coalesce: later events supersede earlier ones.
type OrchestrationProgressPayload struct {
	Type       string `json:"type"` // always EventTypeOrchestrationProgress
	CovenantID string `json:"covenant_id"`
	TaskID     string `json:"task_id"`
	Role       string `json:"role"`
	Progress   string `json:"progress"` // latest thought or action summary
	Timestamp  string `json:"timestamp"`
}

// StreamChunkPayload is the payload for stream.chunk transient events.
// Published for each LLM streaming token — high frequency, ephemeral.
type StreamChunkPayload struct {
	Type       string `json:"type"` // always EventTypeStreamChunk
	CovenantID string `json:"covenant_id"`
	TaskID     string `json:"task_id,omitempty"`
	Delta      string `json:"delta"`
	Timestamp  string `json:"timestamp"`
}
