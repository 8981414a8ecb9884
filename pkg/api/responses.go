package api

import (
	"strings"
	"time"

	"github.com/codeready-toolchain/covenant/pkg/database"
	"github.com/codeready-toolchain/covenant/pkg/models"
)

// IntentResponse is returned by POST /intent.
type IntentResponse struct {
	CovenantID string `json:"covenant_id"`
	State      string `json:"state"`
}

// CovenantDetailResponse is returned by GET /intent/:covenant_id. Failed and
// rejected covenants carry Reason and Message; rejected covenants also carry
// the quality score that caused rejection.
type CovenantDetailResponse struct {
	CovenantID string          `json:"covenant_id"`
	UserID     string          `json:"user_id"`
	Intent     string          `json:"intent"`
	State      string          `json:"state"`
	Results    *models.Results `json:"results,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Message    string          `json:"message,omitempty"`
	Quality    *float64        `json:"quality,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// newCovenantDetailResponse builds the terminal-state reason/message/quality
// fields from a covenant's own decision log and results, never guessing at
// fields the covenant doesn't carry.
func newCovenantDetailResponse(c *models.Covenant) CovenantDetailResponse {
	resp := CovenantDetailResponse{
		CovenantID: c.ID,
		UserID:     c.UserID,
		Intent:     c.Intent,
		State:      string(c.State),
		Results:    c.Results,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}

	switch c.State {
	case models.CovenantRejected:
		resp.Reason = "quality_below_threshold"
		resp.Message = c.RejectionReason
		if c.Results != nil {
			q := c.Results.Quality
			resp.Quality = &q
		}
	case models.CovenantFailed:
		resp.Reason, resp.Message = lastDecisionReason(c.MediatorDecision)
	}

	return resp
}

// StatusResponse is returned by GET /status/:user_id.
type StatusResponse struct {
	UserID      string                      `json:"user_id"`
	Covenant    *CovenantDetailResponse     `json:"covenant,omitempty"`
	Performance *models.PerformanceCounters `json:"performance"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string                  `json:"status"`
	Version       string                  `json:"version"`
	Database      *database.HealthStatus  `json:"database,omitempty"`
	Configuration ConfigurationStats      `json:"configuration"`
}

// ConfigurationStats summarizes the loaded configuration for the health
// endpoint.
type ConfigurationStats struct {
	Models      int     `json:"models"`
	ParallelCap int     `json:"parallel_cap"`
	QualityGate float64 `json:"quality_gate"`
}

// lastDecisionReason extracts reason= and the full line from the last entry
// of an append-only mediator_decision log formatted as
// "failed: reason=<reason> cause=<cause>". Returns the line itself as the
// message when no reason= token is present.
func lastDecisionReason(decision string) (reason, message string) {
	lines := strings.Split(decision, "\n")
	last := lines[len(lines)-1]
	message = last
	for _, field := range strings.Fields(last) {
		if r, ok := strings.CutPrefix(field, "reason="); ok {
			reason = r
			break
		}
	}
	return reason, message
}
