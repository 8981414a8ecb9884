// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/covenant/pkg/config"
)

// Store is the narrow CovenantStore surface the retention sweep depends on.
type Store interface {
	DeleteTerminalCovenantsOlderThan(ctx context.Context, retentionDays int) (int64, error)
	DeleteMetricsOlderThan(ctx context.Context, ttl time.Duration) (int64, error)
}

// Service periodically enforces retention policies:
//   - Removes terminal covenants (completed, failed, rejected) past their
//     retention window
//   - Removes metrics rows past their TTL
//
// All operations are idempotent and safe to run from multiple instances.
type Service struct {
	config *config.RetentionConfig
	store  Store

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, store Store) *Service {
	return &Service{config: cfg, store: store}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"covenant_retention_days", s.config.CovenantRetentionDays,
		"metrics_ttl", s.config.MetricsTTL,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.deleteTerminalCovenants(ctx)
	s.deleteExpiredMetrics(ctx)
}

func (s *Service) deleteTerminalCovenants(ctx context.Context) {
	count, err := s.store.DeleteTerminalCovenantsOlderThan(ctx, s.config.CovenantRetentionDays)
	if err != nil {
		slog.Error("Retention: covenant cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted terminal covenants", "count", count)
	}
}

func (s *Service) deleteExpiredMetrics(ctx context.Context) {
	count, err := s.store.DeleteMetricsOlderThan(ctx, s.config.MetricsTTL)
	if err != nil {
		slog.Error("Retention: metrics cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted expired metrics", "count", count)
	}
}
