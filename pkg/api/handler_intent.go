package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// submitIntentHandler handles POST /api/v1/intent.
func (s *Server) submitIntentHandler(c *gin.Context) {
	var req SubmitIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	actor := s.registry.Get(req.UserID)
	covenant, err := actor.SubmitIntent(c.Request.Context(), req.Intent, req.toModel())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, IntentResponse{CovenantID: covenant.ID, State: string(covenant.State)})
}

// getIntentHandler handles GET /api/v1/intent/:covenant_id.
func (s *Server) getIntentHandler(c *gin.Context) {
	covenant, err := s.covenants.GetCovenant(c.Request.Context(), c.Param("covenant_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newCovenantDetailResponse(covenant))
}
