package models

// Tier partitions the Model Registry catalog without overlap.
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierEdge     Tier = "edge"
	TierFlagship Tier = "flagship"
)

// ModelDescriptor is an immutable catalog entry describing one addressable
// model behind the gateway. id is opaque in the form "provider/model_name";
// the Provider Client infers routing from the provider prefix.
type ModelDescriptor struct {
	ID                     string `json:"id"`
	Provider               string `json:"provider"`
	Tier                   Tier   `json:"tier"`
	CostPerMillionTokens   float64 `json:"cost_per_million_tokens"`
	NominalSpeedTokensPerS float64 `json:"nominal_speed_tokens_per_sec"`
	MaxContextTokens       int     `json:"max_context_tokens"`

	SupportsStreaming bool `json:"supports_streaming"`
	SupportsTools     bool `json:"supports_tools"`
	SupportsThinking  bool `json:"supports_thinking"`
	QualityRank       int  `json:"quality_rank"` // 1-10, higher is better
}
