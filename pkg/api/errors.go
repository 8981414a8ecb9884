package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/covenant/pkg/mediator"
	"github.com/codeready-toolchain/covenant/pkg/store"
)

// errorResponse is the JSON body written for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps a domain error to an HTTP status and writes it as JSON,
// matching the error taxonomy: validation errors are 400, unknown covenant
// ids are 404, everything else is an unexpected 500.
func respondError(c *gin.Context, err error) {
	var validErr *mediator.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: validErr.Error()})
		return
	}
	if errors.Is(err, store.ErrCovenantNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "covenant not found"})
		return
	}

	slog.Error("Unexpected API error", "error", err)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}
