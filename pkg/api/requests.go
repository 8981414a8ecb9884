package api

import "github.com/codeready-toolchain/covenant/pkg/models"

// SubmitIntentRequest is the HTTP request body for POST /intent.
type SubmitIntentRequest struct {
	UserID      string             `json:"user_id" binding:"required"`
	Intent      string             `json:"intent" binding:"required"`
	Constraints *IntentConstraints `json:"constraints,omitempty"`
}

// IntentConstraints is the optional constraints object on SubmitIntentRequest.
// Zero-valued fields fall back to the system defaults the Mediator derives
// from complexity when constraints are omitted entirely.
type IntentConstraints struct {
	MaxCostUSD      float64 `json:"max_cost_usd,omitempty" binding:"omitempty,gt=0"`
	MaxLatencyMS    int     `json:"max_latency_ms,omitempty" binding:"omitempty,gt=0"`
	RequiredQuality string  `json:"required_quality,omitempty" binding:"omitempty,oneof=fast balanced quality"`
	MaxTokens       int     `json:"max_tokens,omitempty" binding:"omitempty,gt=0"`
}

// toModel converts the wire constraints into models.Constraints, defaulting
// RequiredQuality to balanced when the caller omits constraints entirely.
func (r *SubmitIntentRequest) toModel() models.Constraints {
	if r.Constraints == nil {
		return models.Constraints{MaxCostUSD: 1.0, MaxLatencyMS: 30000, RequiredQuality: models.QualityBalanced}
	}
	quality := models.RequiredQuality(r.Constraints.RequiredQuality)
	if quality == "" {
		quality = models.QualityBalanced
	}
	return models.Constraints{
		MaxCostUSD:      r.Constraints.MaxCostUSD,
		MaxLatencyMS:    r.Constraints.MaxLatencyMS,
		RequiredQuality: quality,
		MaxTokens:       r.Constraints.MaxTokens,
	}
}
