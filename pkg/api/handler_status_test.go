package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusHandler_UnknownUserReturnsEmptyStatus(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/nobody", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "nobody", resp.UserID)
	assert.Nil(t, resp.Covenant)
	require.NotNil(t, resp.Performance)
}

func TestStatusHandler_AfterSubmitReportsHead(t *testing.T) {
	s, _ := newTestServer(t)

	body, err := json.Marshal(SubmitIntentRequest{UserID: "u2", Intent: "hello"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/intent", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	statusReq := httptest.NewRequest(http.MethodGet, "/api/v1/status/u2", nil)
	statusW := httptest.NewRecorder()
	s.router.ServeHTTP(statusW, statusReq)

	require.Equal(t, http.StatusOK, statusW.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(statusW.Body.Bytes(), &resp))
	require.NotNil(t, resp.Covenant)
	assert.NotEmpty(t, resp.Covenant.CovenantID)
}
