// Package events provides real-time delivery of covenant and orchestration
// progress to WebSocket clients, with PostgreSQL NOTIFY/LISTEN for
// cross-pod distribution and catchup queries for reconnecting clients.
//
// ════════════════════════════════════════════════════════════════
// Progress event lifecycle
// ════════════════════════════════════════════════════════════════
//
// A covenant's lifecycle is reported on its user's channel (user:{user_id})
// as a sequence of covenant.status events, one per state transition (draft →
// active → delegated → completed|failed|rejected), with a transient copy on
// the global users channel. Status events are persisted and
// never coalesced — a client that misses one must be able to recover it
// via catchup.
//
// While an Orchestrator actor is running a plan, it reports each phase
// (planning, executing, aggregating) on the covenant's channel via
// orchestration.progress events. These are
// transient: dropped on disconnect, not persisted, safe to coalesce because
// the next progress event always supersedes the last. The terminal
// subagent.status event for each task (completed or failed) IS persisted,
// matching the same contract as covenant.status.
//
// stream.chunk is a transient type with a publisher method
// (PublishStreamChunk), but no component publishes it: model output is not
// streamed token by token. The final content always arrives via the owning
// subagent.status or covenant.status event.
// ════════════════════════════════════════════════════════════════
package events

// Persistent event types (stored in DB + NOTIFY).
const (
	EventTypeCovenantStatus = "covenant.status"
	EventTypeSubAgentStatus = "subagent.status"
)

// Transient event types (NOTIFY only, no DB persistence).
const (
	EventTypeOrchestrationProgress = "orchestration.progress"
	EventTypeStreamChunk           = "stream.chunk"
)

// GlobalUsersChannel carries a transient copy of every covenant.status event,
// for a dashboard that lists activity across all users.
const GlobalUsersChannel = "users"

// UserChannel returns the channel name for a specific user's covenant
// lifecycle events. Format: "user:{user_id}"
func UserChannel(userID string) string {
	return "user:" + userID
}

// CovenantChannel returns the channel name for a specific covenant's
// orchestration progress. Format: "covenant:{covenant_id}"
func CovenantChannel(covenantID string) string {
	return "covenant:" + covenantID
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action      string `json:"action"`                  // "subscribe", "unsubscribe", "catchup", "ping"
	Channel     string `json:"channel,omitempty"`       // Channel name (e.g., "covenant:abc-123")
	LastEventID *int   `json:"last_event_id,omitempty"` // For catchup
}
