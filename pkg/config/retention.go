package config

import "time"

// RetentionConfig controls covenant/message data retention and cleanup behavior.
type RetentionConfig struct {
	// CovenantRetentionDays is how many days to keep terminal covenants
	// (completed, failed, rejected) before deleting them.
	CovenantRetentionDays int `yaml:"covenant_retention_days"`

	// MetricsTTL is the maximum age of metrics rows before deletion.
	MetricsTTL time.Duration `yaml:"metrics_ttl"`

	// CleanupInterval is how often the retention sweep runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		CovenantRetentionDays: 90,
		MetricsTTL:            30 * 24 * time.Hour,
		CleanupInterval:       1 * time.Hour,
	}
}
