// Package store implements durable persistence for covenant lifecycle
// state, conversation messages, and provider-call metrics, backed by
// hand-written SQL over a pgx connection pool.
//
// Every state-changing operation commits before returning — callers must
// never acknowledge a covenant transition to a client until SaveCovenant
// has returned nil.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/covenant/pkg/models"
)

// CovenantStore is the single entry point every Mediator and Orchestrator
// actor uses to persist and reload covenant state.
type CovenantStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewCovenantStore creates a CovenantStore backed by pool.
func NewCovenantStore(pool *pgxpool.Pool) *CovenantStore {
	return &CovenantStore{pool: pool, now: time.Now}
}

// SaveCovenant upserts a covenant row. Always stamps UpdatedAt; CreatedAt
// is only set on first insert.
func (s *CovenantStore) SaveCovenant(ctx context.Context, c *models.Covenant) error {
	constraintsJSON, err := json.Marshal(c.Constraints)
	if err != nil {
		return fmt.Errorf("failed to marshal constraints: %w", err)
	}

	var resultsJSON []byte
	if c.Results != nil {
		resultsJSON, err = json.Marshal(c.Results)
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.UpdatedAt = s.now()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO covenants (id, user_id, intent, constraints_json, state, decision, plan, results_json, rejection_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			decision = EXCLUDED.decision,
			plan = EXCLUDED.plan,
			results_json = EXCLUDED.results_json,
			rejection_reason = EXCLUDED.rejection_reason,
			updated_at = EXCLUDED.updated_at`,
		c.ID, c.UserID, c.Intent, constraintsJSON, string(c.State), c.MediatorDecision, c.OrchestrationPlan, resultsJSON, c.RejectionReason, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save covenant %s: %w", c.ID, err)
	}
	return nil
}

// GetCovenant loads a covenant by ID, returning ErrCovenantNotFound if absent.
func (s *CovenantStore) GetCovenant(ctx context.Context, id string) (*models.Covenant, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, intent, constraints_json, state, decision, plan, results_json, rejection_reason, created_at, updated_at
		FROM covenants WHERE id = $1`, id)
	return scanCovenant(row)
}

// ListByUser returns every covenant owned by userID, most recent first.
func (s *CovenantStore) ListByUser(ctx context.Context, userID string) ([]*models.Covenant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, intent, constraints_json, state, decision, plan, results_json, rejection_reason, created_at, updated_at
		FROM covenants WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list covenants for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []*models.Covenant
	for rows.Next() {
		c, err := scanCovenantRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCovenant(row pgx.Row) (*models.Covenant, error) {
	c, err := scanCovenantRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCovenantNotFound
		}
		return nil, err
	}
	return c, nil
}

func scanCovenantRow(row rowScanner) (*models.Covenant, error) {
	var c models.Covenant
	var state string
	var constraintsJSON, resultsJSON []byte

	err := row.Scan(&c.ID, &c.UserID, &c.Intent, &constraintsJSON, &state, &c.MediatorDecision, &c.OrchestrationPlan, &resultsJSON, &c.RejectionReason, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan covenant: %w", err)
	}
	c.State = models.CovenantState(state)

	if err := json.Unmarshal(constraintsJSON, &c.Constraints); err != nil {
		return nil, fmt.Errorf("failed to unmarshal constraints: %w", err)
	}
	if resultsJSON != nil {
		var results models.Results
		if err := json.Unmarshal(resultsJSON, &results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal results: %w", err)
		}
		c.Results = &results
	}
	return &c, nil
}

// AppendMessage persists a conversation turn.
func (s *CovenantStore) AppendMessage(ctx context.Context, userID string, msg models.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	var covenantID *string
	if msg.CovenantID != "" {
		covenantID = &msg.CovenantID
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, covenant_id, user_id, role, content, ts) VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, covenantID, userID, string(msg.Role), msg.Content, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append message %s: %w", msg.ID, err)
	}
	return nil
}

// ListMessages returns every message for a covenant in chronological order.
func (s *CovenantStore) ListMessages(ctx context.Context, covenantID string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, covenant_id, role, content, ts FROM messages WHERE covenant_id = $1 ORDER BY ts ASC`, covenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for covenant %s: %w", covenantID, err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var role string
		var cid *string
		if err := rows.Scan(&m.ID, &cid, &role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = models.MessageRole(role)
		if cid != nil {
			m.CovenantID = *cid
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListMessagesByUser returns the most recent limit messages across every
// covenant userID owns, oldest first — the window an Orchestrator receives
// as mediator_context on delegation.
func (s *CovenantStore) ListMessagesByUser(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, covenant_id, role, content, ts FROM (
			SELECT id, covenant_id, role, content, ts
			FROM messages WHERE user_id = $1
			ORDER BY ts DESC
			LIMIT $2
		) recent ORDER BY ts ASC`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var role string
		var cid *string
		if err := rows.Scan(&m.ID, &cid, &role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = models.MessageRole(role)
		if cid != nil {
			m.CovenantID = *cid
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecordMetric persists one provider-call observation against a covenant,
// independent of the process-wide Prometheus metrics pkg/metrics exposes.
func (s *CovenantStore) RecordMetric(ctx context.Context, covenantID, modelID string, latencyMS int64, costUSD float64, success bool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO metrics (covenant_id, model_id, latency_ms, cost_usd, success) VALUES ($1, $2, $3, $4, $5)`,
		covenantID, modelID, latencyMS, costUSD, success)
	if err != nil {
		return fmt.Errorf("failed to record metric for covenant %s: %w", covenantID, err)
	}
	return nil
}

// DeleteTerminalCovenantsOlderThan removes covenants that reached a
// terminal state more than retentionDays ago. Messages and metrics cascade
// via the covenants foreign key.
func (s *CovenantStore) DeleteTerminalCovenantsOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM covenants
		WHERE state IN ('completed', 'failed', 'rejected')
		AND updated_at < now() - make_interval(days => $1)`, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired covenants: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteMetricsOlderThan removes metric rows past ttl, independent of
// their owning covenant's retention.
func (s *CovenantStore) DeleteMetricsOlderThan(ctx context.Context, ttl time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM metrics WHERE ts < now() - make_interval(secs => $1)`, ttl.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired metrics: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListStaleDelegated returns every covenant still in the delegated state
// whose last update is older than threshold — candidates for the orphan
// sweep to force-fail when no callback ever arrived.
func (s *CovenantStore) ListStaleDelegated(ctx context.Context, threshold time.Time) ([]*models.Covenant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, intent, constraints_json, state, decision, plan, results_json, rejection_reason, created_at, updated_at
		FROM covenants WHERE state = 'delegated' AND updated_at < $1`, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale delegated covenants: %w", err)
	}
	defer rows.Close()

	var out []*models.Covenant
	for rows.Next() {
		c, err := scanCovenantRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PerformanceCounters computes rolling statistics for a user across every
// covenant they own. Used by the Mediator's status() operation.
func (s *CovenantStore) PerformanceCounters(ctx context.Context, userID string) (*models.PerformanceCounters, error) {
	var pc models.PerformanceCounters
	err := s.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE state IN ('delegated', 'completed', 'failed', 'rejected')),
			count(*) FILTER (WHERE state = 'completed'),
			count(*) FILTER (WHERE state = 'rejected'),
			coalesce(avg((results_json->>'latency_ms')::double precision), 0),
			coalesce(sum((results_json->>'cost_usd')::double precision), 0)
		FROM covenants WHERE user_id = $1`, userID,
	).Scan(&pc.TotalCovenants, &pc.DelegatedCount, &pc.CompletedCount, &pc.RejectedCount, &pc.AvgLatencyMS, &pc.TotalCostUSD)
	if err != nil {
		return nil, fmt.Errorf("failed to compute performance counters for user %s: %w", userID, err)
	}
	return &pc, nil
}

// SaveSubAgentTask upserts one sub-agent task row, the durable counterpart
// of an in-memory models.SubAgentTask an Orchestrator is driving.
func (s *CovenantStore) SaveSubAgentTask(ctx context.Context, t *models.SubAgentTask) error {
	thoughtsJSON, err := json.Marshal(t.Thoughts)
	if err != nil {
		return fmt.Errorf("failed to marshal thoughts for task %s: %w", t.ID, err)
	}
	actionsJSON, err := json.Marshal(t.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions for task %s: %w", t.ID, err)
	}
	var outputJSON []byte
	if t.Output != nil {
		outputJSON, err = json.Marshal(t.Output)
		if err != nil {
			return fmt.Errorf("failed to marshal output for task %s: %w", t.ID, err)
		}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sub_agent_tasks (id, covenant_id, parent_id, role, input_prompt, model_id, status, progress, thoughts_json, actions_json, output_json, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			thoughts_json = EXCLUDED.thoughts_json,
			actions_json = EXCLUDED.actions_json,
			output_json = EXCLUDED.output_json,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at`,
		t.ID, t.CovenantID, t.ParentID, string(t.Role), t.InputPrompt, t.ModelID, string(t.Status), t.Progress, thoughtsJSON, actionsJSON, outputJSON, t.CreatedAt, t.StartedAt, t.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save sub-agent task %s: %w", t.ID, err)
	}
	return nil
}

// ListSubAgentTasks returns every sub-agent task belonging to covenantID, in
// creation order, for the task-level stream and post-hoc inspection.
func (s *CovenantStore) ListSubAgentTasks(ctx context.Context, covenantID string) ([]*models.SubAgentTask, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, covenant_id, parent_id, role, input_prompt, model_id, status, progress, thoughts_json, actions_json, output_json, created_at, started_at, completed_at
		FROM sub_agent_tasks WHERE covenant_id = $1 ORDER BY created_at ASC`, covenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sub-agent tasks for covenant %s: %w", covenantID, err)
	}
	defer rows.Close()

	var out []*models.SubAgentTask
	for rows.Next() {
		var t models.SubAgentTask
		var parentID *string
		var thoughtsJSON, actionsJSON, outputJSON []byte
		var role, status string
		if err := rows.Scan(&t.ID, &t.CovenantID, &parentID, &role, &t.InputPrompt, &t.ModelID, &status, &t.Progress, &thoughtsJSON, &actionsJSON, &outputJSON, &t.CreatedAt, &t.StartedAt, &t.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sub-agent task row: %w", err)
		}
		t.ParentID = parentID
		t.Role = models.SubAgentRole(role)
		t.Status = models.SubAgentStatus(status)
		if err := json.Unmarshal(thoughtsJSON, &t.Thoughts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal thoughts for task %s: %w", t.ID, err)
		}
		if err := json.Unmarshal(actionsJSON, &t.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal actions for task %s: %w", t.ID, err)
		}
		if len(outputJSON) > 0 {
			var out2 models.SubAgentOutput
			if err := json.Unmarshal(outputJSON, &out2); err != nil {
				return nil, fmt.Errorf("failed to unmarshal output for task %s: %w", t.ID, err)
			}
			t.Output = &out2
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
