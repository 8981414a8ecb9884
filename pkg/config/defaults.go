package config

// Defaults holds the system-wide numeric/behavioral defaults. Every field
// has a fixed fallback (applied in applyDefaults) so a bare-minimum
// covenant.yaml is always valid.
type Defaults struct {
	// TokensSimple/Moderate/Complex are the max-token budgets the Mediator
	// derives from a covenant's complexity score on the fast path.
	TokensSimple   int `yaml:"default_user_tokens_simple,omitempty" validate:"omitempty,min=1"`
	TokensModerate int `yaml:"default_user_tokens_moderate,omitempty" validate:"omitempty,min=1"`
	TokensComplex  int `yaml:"default_user_tokens_complex,omitempty" validate:"omitempty,min=1"`

	// ParallelExecutorCap bounds fan-out for the generic five-role plan.
	ParallelExecutorCap int `yaml:"parallel_executor_cap,omitempty" validate:"omitempty,min=1"`

	// OrchestratorTimeoutMultiplier is applied to constraints.max_latency_ms
	// to compute the orchestrator's overall execution budget.
	OrchestratorTimeoutMultiplier int `yaml:"orchestrator_timeout_multiplier,omitempty" validate:"omitempty,min=1"`

	// MediatorPollIntervalMS/MediatorPollMaxAttempts bound the Mediator's
	// UI-liveness monitor of a delegated Orchestrator. Not a correctness
	// mechanism — completion is authoritative via the callback.
	MediatorPollIntervalMS  int `yaml:"mediator_poll_interval_ms,omitempty" validate:"omitempty,min=1"`
	MediatorPollMaxAttempts int `yaml:"mediator_poll_max_attempts,omitempty" validate:"omitempty,min=1"`

	// RainbowPacingMinMS/MaxMS bound the pacing gap between rainbow
	// color sub-agents (must be >= 150ms per spec).
	RainbowPacingMinMS int `yaml:"rainbow_pacing_min_ms,omitempty" validate:"omitempty,min=150"`
	RainbowPacingMaxMS int `yaml:"rainbow_pacing_max_ms,omitempty" validate:"omitempty,min=150"`

	// ContextWindowMessages is the number of most-recent user messages
	// forwarded to an Orchestrator on delegation.
	ContextWindowMessages int `yaml:"context_window_messages,omitempty" validate:"omitempty,min=0"`

	// QualityGateThreshold is the Mediator's approval floor on
	// results.quality returned by an Orchestrator callback.
	QualityGateThreshold float64 `yaml:"quality_gate_threshold,omitempty" validate:"omitempty,min=0,max=1"`

	// OrphanSweepIntervalS is how often the stale-delegation sweep scans
	// for covenants stuck past their orchestrator budget with no callback.
	OrphanSweepIntervalS int `yaml:"orphan_sweep_interval_s,omitempty" validate:"omitempty,min=1"`
}

// applyDefaults fills zero-valued fields with the hardcoded spec defaults.
func (d *Defaults) applyDefaults() {
	if d.TokensSimple == 0 {
		d.TokensSimple = 2048
	}
	if d.TokensModerate == 0 {
		d.TokensModerate = 4096
	}
	if d.TokensComplex == 0 {
		d.TokensComplex = 8192
	}
	if d.ParallelExecutorCap == 0 {
		d.ParallelExecutorCap = 5
	}
	if d.OrchestratorTimeoutMultiplier == 0 {
		d.OrchestratorTimeoutMultiplier = 2
	}
	if d.MediatorPollIntervalMS == 0 {
		d.MediatorPollIntervalMS = 500
	}
	if d.MediatorPollMaxAttempts == 0 {
		d.MediatorPollMaxAttempts = 60
	}
	if d.RainbowPacingMinMS == 0 {
		d.RainbowPacingMinMS = 150
	}
	if d.RainbowPacingMaxMS == 0 {
		d.RainbowPacingMaxMS = 300
	}
	if d.ContextWindowMessages == 0 {
		d.ContextWindowMessages = 5
	}
	if d.QualityGateThreshold == 0 {
		d.QualityGateThreshold = 0.6
	}
	if d.OrphanSweepIntervalS == 0 {
		d.OrphanSweepIntervalS = 60
	}
}
