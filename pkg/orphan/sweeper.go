// Package orphan runs a periodic, process-independent sweep for covenants
// stuck in the delegated state past their orchestrator budget with no
// callback ever arriving — closing the gap between a Mediator actor's own
// in-memory delegation guard and a process restart that drops it.
package orphan

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/covenant/pkg/config"
	"github.com/codeready-toolchain/covenant/pkg/models"
)

// Store is the narrow CovenantStore surface the sweep depends on.
type Store interface {
	ListStaleDelegated(ctx context.Context, threshold time.Time) ([]*models.Covenant, error)
	SaveCovenant(ctx context.Context, c *models.Covenant) error
}

// Sweeper periodically scans for orphaned delegations and force-fails them
// with reason orchestrator_timeout. Idempotent and safe to run from
// multiple instances: a covenant already transitioned away from delegated
// by the time a second sweep reaches it is simply skipped.
type Sweeper struct {
	store    Store
	defaults config.Defaults
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a Sweeper over store.
func NewSweeper(store Store, defaults config.Defaults) *Sweeper {
	return &Sweeper{store: store, defaults: defaults, now: time.Now}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Orphan sweep started", "interval_s", s.defaults.OrphanSweepIntervalS)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Orphan sweep stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	interval := time.Duration(s.defaults.OrphanSweepIntervalS) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep fetches delegated covenants past a coarse global floor, then
// force-fails only those actually past their own 2*max_latency_ms budget
// (every covenant carries its own budget via its constraints).
func (s *Sweeper) sweep(ctx context.Context) {
	floor := s.now().Add(-coarseFloor)
	candidates, err := s.store.ListStaleDelegated(ctx, floor)
	if err != nil {
		slog.Error("Orphan sweep query failed", "error", err)
		return
	}

	recovered := 0
	for _, c := range candidates {
		budget := time.Duration(c.Constraints.MaxLatencyMS) * time.Millisecond * time.Duration(orchestratorMultiplier(s.defaults))
		if s.now().Sub(c.UpdatedAt) < budget {
			continue
		}
		if err := s.forceFail(ctx, c); err != nil {
			slog.Error("Orphan recovery failed", "covenant_id", c.ID, "error", err)
			continue
		}
		recovered++
	}

	if recovered > 0 {
		slog.Warn("Orphan sweep recovered stale delegations", "count", recovered)
	}
}

func (s *Sweeper) forceFail(ctx context.Context, c *models.Covenant) error {
	if c.State.IsTerminal() {
		return nil
	}
	c.AppendDecision("failed: reason=orchestrator_timeout cause=orphan sweep found no callback within budget")
	if err := c.Transition(models.CovenantFailed); err != nil {
		return err
	}
	return s.store.SaveCovenant(ctx, c)
}

func orchestratorMultiplier(d config.Defaults) int {
	if d.OrchestratorTimeoutMultiplier <= 0 {
		return 2
	}
	return d.OrchestratorTimeoutMultiplier
}

// coarseFloor is the minimum age before a delegated covenant is even
// considered a sweep candidate, well below any realistic max_latency_ms
// budget, so the SQL filter stays cheap and precise budget comparison
// happens in Go against each covenant's own constraints.
const coarseFloor = 5 * time.Second
