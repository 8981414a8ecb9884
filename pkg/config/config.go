package config

// Config is the umbrella configuration object returned by Initialize and
// used throughout the application: the Model Registry's static catalog,
// the Provider Client's gateway settings, and the system-wide Defaults.
type Config struct {
	configDir string // configuration directory path (for reference)

	// Defaults holds the numeric/behavioral system defaults.
	Defaults *Defaults

	// Retention controls the background covenant/metrics cleanup sweep.
	Retention *RetentionConfig

	// Gateway holds the LLM gateway connection settings.
	Gateway GatewayConfig

	// Models is the raw catalog of model descriptors loaded from YAML;
	// pkg/registry builds the queryable Model Registry from this slice.
	Models []ModelDescriptorConfig
}

// GatewayConfig describes the single OpenAI-compatible chat-completions
// gateway the Provider Client calls.
type GatewayConfig struct {
	BaseURL  string `yaml:"gateway_base_url" validate:"required,url"`
	TokenEnv string `yaml:"gateway_token_env" validate:"required"`

	// resolved token, populated from the environment at load time; never
	// serialized back to YAML.
	token string `yaml:"-"`
}

// Token returns the resolved bearer token for the gateway.
func (g GatewayConfig) Token() string { return g.token }

// ModelDescriptorConfig is the YAML shape of a Model Registry catalog entry.
type ModelDescriptorConfig struct {
	ID                      string   `yaml:"id" validate:"required"`
	Provider                string   `yaml:"provider" validate:"required"`
	Tier                    string   `yaml:"tier" validate:"required,oneof=primary edge flagship"`
	CostPerMillionTokens    float64  `yaml:"cost_per_million_tokens" validate:"gte=0"`
	NominalSpeedTokensPerS  float64  `yaml:"nominal_speed_tokens_per_sec" validate:"gte=0"`
	MaxContextTokens        int      `yaml:"max_context_tokens" validate:"required,min=1"`
	SupportsStreaming       bool     `yaml:"supports_streaming"`
	SupportsTools           bool     `yaml:"supports_tools"`
	SupportsThinking        bool     `yaml:"supports_thinking"`
	QualityRank             int      `yaml:"quality_rank" validate:"required,min=1,max=10"`
}

// Stats summarizes the loaded configuration for logging and the /health
// endpoint.
type Stats struct {
	Models          int
	ParallelCap     int
	QualityGate     float64
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() Stats {
	return Stats{
		Models:      len(c.Models),
		ParallelCap: c.Defaults.ParallelExecutorCap,
		QualityGate: c.Defaults.QualityGateThreshold,
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}
