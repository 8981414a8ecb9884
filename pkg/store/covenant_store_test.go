package store

import (
	"context"
	"testing"
	"time"

	dbtest "github.com/codeready-toolchain/covenant/test/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/covenant/pkg/models"
)

func newTestCovenant(userID string) *models.Covenant {
	return &models.Covenant{
		ID:     uuid.NewString(),
		UserID: userID,
		Intent: "summarize the latest incident report",
		Constraints: models.Constraints{
			MaxCostUSD:      1.0,
			MaxLatencyMS:    30000,
			RequiredQuality: models.QualityBalanced,
		},
		State: models.CovenantDraft,
	}
}

func TestSaveAndGetCovenant_RoundTrips(t *testing.T) {
	client := dbtest.NewTestClient(t)
	s := NewCovenantStore(client.Pool)
	ctx := context.Background()

	c := newTestCovenant("user-1")
	require.NoError(t, s.SaveCovenant(ctx, c))

	got, err := s.GetCovenant(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.Intent, got.Intent)
	require.Equal(t, models.CovenantDraft, got.State)
	require.False(t, got.CreatedAt.IsZero())
}

func TestGetCovenant_NotFound(t *testing.T) {
	client := dbtest.NewTestClient(t)
	s := NewCovenantStore(client.Pool)

	_, err := s.GetCovenant(context.Background(), "missing")
	require.ErrorIs(t, err, ErrCovenantNotFound)
}

func TestSaveCovenant_UpsertUpdatesState(t *testing.T) {
	client := dbtest.NewTestClient(t)
	s := NewCovenantStore(client.Pool)
	ctx := context.Background()

	c := newTestCovenant("user-1")
	require.NoError(t, s.SaveCovenant(ctx, c))

	require.NoError(t, c.Transition(models.CovenantActive))
	c.AppendDecision("fast path: simple complexity")
	require.NoError(t, s.SaveCovenant(ctx, c))

	got, err := s.GetCovenant(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.CovenantActive, got.State)
	require.Equal(t, "fast path: simple complexity", got.MediatorDecision)
}

func TestSaveCovenant_PersistsResults(t *testing.T) {
	client := dbtest.NewTestClient(t)
	s := NewCovenantStore(client.Pool)
	ctx := context.Background()

	c := newTestCovenant("user-1")
	c.State = models.CovenantCompleted
	c.Results = &models.Results{Content: "done", Quality: 0.9, CostUSD: 0.05, LatencyMS: 1200, SubAgentCount: 3}
	require.NoError(t, s.SaveCovenant(ctx, c))

	got, err := s.GetCovenant(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Results)
	require.Equal(t, 0.9, got.Results.Quality)
}

func TestListByUser_ReturnsOnlyOwnedCovenants(t *testing.T) {
	client := dbtest.NewTestClient(t)
	s := NewCovenantStore(client.Pool)
	ctx := context.Background()

	require.NoError(t, s.SaveCovenant(ctx, newTestCovenant("user-1")))
	require.NoError(t, s.SaveCovenant(ctx, newTestCovenant("user-1")))
	require.NoError(t, s.SaveCovenant(ctx, newTestCovenant("user-2")))

	got, err := s.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestAppendAndListMessages_ChronologicalOrder(t *testing.T) {
	client := dbtest.NewTestClient(t)
	s := NewCovenantStore(client.Pool)
	ctx := context.Background()

	c := newTestCovenant("user-1")
	require.NoError(t, s.SaveCovenant(ctx, c))

	first := models.Message{ID: uuid.NewString(), CovenantID: c.ID, Role: models.RoleUser, Content: "hello", Timestamp: time.Now()}
	require.NoError(t, s.AppendMessage(ctx, c.UserID, first))
	second := models.Message{ID: uuid.NewString(), CovenantID: c.ID, Role: models.RoleAssistant, Content: "hi", Timestamp: time.Now().Add(time.Second)}
	require.NoError(t, s.AppendMessage(ctx, c.UserID, second))

	msgs, err := s.ListMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, "hi", msgs[1].Content)
}

func TestRecordMetric_AndPerformanceCounters(t *testing.T) {
	client := dbtest.NewTestClient(t)
	s := NewCovenantStore(client.Pool)
	ctx := context.Background()

	c := newTestCovenant("user-1")
	c.State = models.CovenantCompleted
	c.Results = &models.Results{LatencyMS: 2000, CostUSD: 0.02}
	require.NoError(t, s.SaveCovenant(ctx, c))
	require.NoError(t, s.RecordMetric(ctx, c.ID, "primary/fast-model", 2000, 0.02, true))

	pc, err := s.PerformanceCounters(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, pc.TotalCovenants)
	require.Equal(t, 1, pc.CompletedCount)
}

func TestDeleteTerminalCovenantsOlderThan(t *testing.T) {
	client := dbtest.NewTestClient(t)
	s := NewCovenantStore(client.Pool)
	ctx := context.Background()

	c := newTestCovenant("user-1")
	c.State = models.CovenantCompleted
	require.NoError(t, s.SaveCovenant(ctx, c))

	_, err := client.Pool.Exec(ctx, `UPDATE covenants SET updated_at = now() - interval '200 days' WHERE id = $1`, c.ID)
	require.NoError(t, err)

	n, err := s.DeleteTerminalCovenantsOlderThan(ctx, 90)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = s.GetCovenant(ctx, c.ID)
	require.ErrorIs(t, err, ErrCovenantNotFound)
}
