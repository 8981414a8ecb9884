package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// statusHandler handles GET /api/v1/status/:user_id.
func (s *Server) statusHandler(c *gin.Context) {
	userID := c.Param("user_id")
	actor := s.registry.Get(userID)

	covenant, perf, err := actor.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := StatusResponse{UserID: userID, Performance: perf}
	if covenant != nil {
		detail := newCovenantDetailResponse(covenant)
		resp.Covenant = &detail
	}

	c.JSON(http.StatusOK, resp)
}
