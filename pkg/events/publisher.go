package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventPublisher publishes events for WebSocket delivery.
// Persistent events are stored in the events table then broadcast via
// NOTIFY, in a single transaction (pg_notify is transactional — held until
// COMMIT). Transient events (progress, streaming chunks) are broadcast via
// NOTIFY only.
type EventPublisher struct {
	pool *pgxpool.Pool
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(pool *pgxpool.Pool) *EventPublisher {
	return &EventPublisher{pool: pool}
}

// PublishCovenantStatus persists and broadcasts a covenant.status event to
// the owning user's channel, plus a transient copy to the global users
// channel for dashboards. Both publishes are best-effort: if the
// persistent one fails, the transient one is still attempted.
func (p *EventPublisher) PublishCovenantStatus(ctx context.Context, payload CovenantStatusPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal CovenantStatusPayload: %w", err)
	}

	var firstErr error
	if err := p.persistAndNotify(ctx, UserChannel(payload.UserID), payloadJSON); err != nil {
		slog.Warn("Failed to publish covenant status to user channel",
			"covenant_id", payload.CovenantID, "state", payload.State, "error", err)
		firstErr = err
	}
	if err := p.notifyOnly(ctx, GlobalUsersChannel, payloadJSON); err != nil {
		slog.Warn("Failed to publish covenant status to global channel",
			"covenant_id", payload.CovenantID, "state", payload.State, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishSubAgentStatus persists and broadcasts a subagent.status event to
// the owning covenant's channel.
func (p *EventPublisher) PublishSubAgentStatus(ctx context.Context, payload SubAgentStatusPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal SubAgentStatusPayload: %w", err)
	}
	return p.persistAndNotify(ctx, CovenantChannel(payload.CovenantID), payloadJSON)
}

// PublishOrchestrationProgress broadcasts a transient progress update for
// a sub-agent task. Not persisted — a client that misses one catches the
// next, and the terminal subagent.status event is always persisted.
func (p *EventPublisher) PublishOrchestrationProgress(ctx context.Context, payload OrchestrationProgressPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal OrchestrationProgressPayload: %w", err)
	}
	return p.notifyOnly(ctx, CovenantChannel(payload.CovenantID), payloadJSON)
}

// PublishStreamChunk broadcasts a raw LLM token chunk. Never persisted.
func (p *EventPublisher) PublishStreamChunk(ctx context.Context, payload StreamChunkPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal StreamChunkPayload: %w", err)
	}
	return p.notifyOnly(ctx, CovenantChannel(payload.CovenantID), payloadJSON)
}

// --- Internal core methods ---

func (p *EventPublisher) persistAndNotify(ctx context.Context, channel string, payloadJSON []byte) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var eventID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO events (channel, payload) VALUES ($1, $2) RETURNING id`,
		channel, payloadJSON,
	).Scan(&eventID); err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}

	notifyPayload, err := injectDBEventIDAndTruncate(payloadJSON, eventID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit event transaction: %w", err)
	}
	return nil
}

func (p *EventPublisher) notifyOnly(ctx context.Context, channel string, payloadJSON []byte) error {
	notifyPayload, err := truncateIfNeeded(string(payloadJSON))
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// --- Internal helpers ---

// injectDBEventIDAndTruncate adds db_event_id to the JSON payload for NOTIFY
// delivery and applies truncation if the result exceeds PostgreSQL's limit.
func injectDBEventIDAndTruncate(payloadJSON []byte, dbEventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(payloadJSON, &m); err != nil {
		return "", fmt.Errorf("failed to unmarshal payload for db_event_id injection: %w", err)
	}
	m["db_event_id"] = dbEventID

	enrichedBytes, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal enriched NOTIFY payload: %w", err)
	}

	return truncateIfNeeded(string(enrichedBytes))
}

// truncateIfNeeded returns the payload string as-is if it fits within
// PostgreSQL's 8000-byte NOTIFY limit, otherwise returns a minimal
// truncation envelope with only routing fields.
func truncateIfNeeded(payloadStr string) (string, error) {
	if len(payloadStr) <= 7900 {
		return payloadStr, nil
	}
	return buildTruncatedPayload([]byte(payloadStr))
}

// buildTruncatedPayload creates a minimal truncation envelope from the full
// JSON payload bytes, extracting only the routing fields the client needs
// to fetch the complete event from the database.
func buildTruncatedPayload(payloadBytes []byte) (string, error) {
	var routing struct {
		Type       string `json:"type"`
		CovenantID string `json:"covenant_id"`
		TaskID     string `json:"task_id,omitempty"`
		DBEventID  *int64 `json:"db_event_id,omitempty"`
	}
	if err := json.Unmarshal(payloadBytes, &routing); err != nil {
		return "", fmt.Errorf("failed to extract routing fields for truncation: %w", err)
	}

	truncated := map[string]any{
		"type":        routing.Type,
		"covenant_id": routing.CovenantID,
		"truncated":   true,
	}
	if routing.TaskID != "" {
		truncated["task_id"] = routing.TaskID
	}
	if routing.DBEventID != nil {
		truncated["db_event_id"] = *routing.DBEventID
	}

	truncBytes, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated payload: %w", err)
	}
	return string(truncBytes), nil
}
