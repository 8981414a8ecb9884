package orphan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/covenant/pkg/config"
	"github.com/codeready-toolchain/covenant/pkg/models"
)

type fakeStore struct {
	covenants []*models.Covenant
	saved     []*models.Covenant
}

func (s *fakeStore) ListStaleDelegated(_ context.Context, threshold time.Time) ([]*models.Covenant, error) {
	var out []*models.Covenant
	for _, c := range s.covenants {
		if c.State == models.CovenantDelegated && c.UpdatedAt.Before(threshold) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) SaveCovenant(_ context.Context, c *models.Covenant) error {
	s.saved = append(s.saved, c)
	return nil
}

func testDefaults() config.Defaults {
	return config.Defaults{OrchestratorTimeoutMultiplier: 2, OrphanSweepIntervalS: 60}
}

func TestSweep_ForceFailsCovenantPastBudget(t *testing.T) {
	stale := &models.Covenant{
		ID:          "cov-stale",
		State:       models.CovenantDelegated,
		Constraints: models.Constraints{MaxLatencyMS: 1000},
		UpdatedAt:   time.Now().Add(-10 * time.Second),
	}
	store := &fakeStore{covenants: []*models.Covenant{stale}}
	s := NewSweeper(store, testDefaults())

	s.sweep(context.Background())

	require.Len(t, store.saved, 1)
	assert.Equal(t, models.CovenantFailed, store.saved[0].State)
	assert.Contains(t, store.saved[0].MediatorDecision, "orchestrator_timeout")
}

func TestSweep_SkipsCovenantStillWithinBudget(t *testing.T) {
	fresh := &models.Covenant{
		ID:          "cov-fresh",
		State:       models.CovenantDelegated,
		Constraints: models.Constraints{MaxLatencyMS: 60000},
		UpdatedAt:   time.Now().Add(-6 * time.Second),
	}
	store := &fakeStore{covenants: []*models.Covenant{fresh}}
	s := NewSweeper(store, testDefaults())

	s.sweep(context.Background())

	assert.Empty(t, store.saved)
}

func TestSweep_SkipsAlreadyTerminalCovenant(t *testing.T) {
	done := &models.Covenant{
		ID:          "cov-done",
		State:       models.CovenantCompleted,
		Constraints: models.Constraints{MaxLatencyMS: 1000},
		UpdatedAt:   time.Now().Add(-10 * time.Second),
	}
	store := &fakeStore{covenants: []*models.Covenant{done}}
	s := NewSweeper(store, testDefaults())

	s.sweep(context.Background())

	assert.Empty(t, store.saved)
}

func TestSweeper_StartStopRunsLoopAndExitsCleanly(t *testing.T) {
	stale := &models.Covenant{
		ID:          "cov-loop",
		State:       models.CovenantDelegated,
		Constraints: models.Constraints{MaxLatencyMS: 1},
		UpdatedAt:   time.Now().Add(-10 * time.Second),
	}
	store := &fakeStore{covenants: []*models.Covenant{stale}}
	defaults := testDefaults()
	defaults.OrphanSweepIntervalS = 1
	s := NewSweeper(store, defaults)

	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	assert.NotEmpty(t, store.saved)
}
