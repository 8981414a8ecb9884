package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/covenant/pkg/config"
)

func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()
	gw := config.GatewayConfig{BaseURL: server.URL}
	return New(gw, opts...)
}

func TestCall_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"model":"openai/gpt-mini","choices":[{"message":{"content":"hello"}}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	result, err := client.Call(context.Background(), "openai/gpt-mini", []Message{{Role: "user", Content: "hi"}}, Params{MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Content)
	assert.Equal(t, "openai/gpt-mini", result.ModelIDEffective)
	assert.Equal(t, 10, result.Usage.PromptTokens)
}

func TestCall_EmptyContentIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":""}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.Call(context.Background(), "openai/gpt-mini", nil, Params{})

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, KindEmptyContent, callErr.Kind)
}

func TestCall_AuthFailureNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.Call(context.Background(), "openai/gpt-mini", nil, Params{})

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, KindAuth, callErr.Kind)
	assert.Equal(t, 1, attempts)
	assert.False(t, callErr.Retryable())
}

func TestCall_TransportFailureRetriedOnce(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.Call(context.Background(), "openai/gpt-mini", nil, Params{})

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, KindTransport, callErr.Kind)
	assert.Equal(t, 2, attempts, "exactly one transparent retry")
}

func TestCall_EmitsMetricEventOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sink := &recordingSink{}
	client := newTestClient(t, server, WithMetricsSink(sink))
	_, _ = client.Call(context.Background(), "openai/gpt-mini", nil, Params{})

	require.Len(t, sink.events, 1)
	assert.False(t, sink.events[0].Success)
	assert.Equal(t, "openai/gpt-mini", sink.events[0].ModelID)
}

type recordingSink struct {
	events []MetricEvent
}

func (s *recordingSink) ObserveProviderCall(e MetricEvent) {
	s.events = append(s.events, e)
}
