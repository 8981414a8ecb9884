package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders_SetOnEveryResponse(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/anyone", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestBodyLimit_RejectsOversizedPayload(t *testing.T) {
	s, _ := newTestServer(t)

	oversized := make([]byte, maxBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/intent", bytes.NewReader(oversized))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = int64(len(oversized))
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusOK, w.Code)
}
