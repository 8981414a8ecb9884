// Package provider implements the Provider Client (4.B): a uniform wrapper
// over a single OpenAI-compatible chat-completions gateway, with one
// transparent retry on transient failure and a fixed error-kind taxonomy.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/codeready-toolchain/covenant/pkg/config"
)

// Message is one ordered entry in a Call's conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params bounds a single completion request.
type Params struct {
	Temperature float64
	MaxTokens   int
	TopP        float64 // zero value means "let the gateway default it"
}

// Usage reports token accounting for a completed call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Result is the Provider Client's uniform response shape.
type Result struct {
	Content          string
	Usage            Usage
	LatencyMS        int64
	ModelIDEffective string
}

// MetricEvent is emitted once per Call, successful or not, so pkg/metrics
// and the Covenant Store's metrics table can both observe it.
type MetricEvent struct {
	ModelID   string
	LatencyMS int64
	CostUSD   float64
	Success   bool
}

// MetricsSink receives one MetricEvent per Call. Kept as a narrow interface
// here (rather than importing pkg/metrics directly) to avoid a dependency
// cycle between the provider and metrics packages.
type MetricsSink interface {
	ObserveProviderCall(MetricEvent)
}

type noopSink struct{}

func (noopSink) ObserveProviderCall(MetricEvent) {}

// CostTable resolves a per-model cost-per-million-tokens figure so the
// client can compute CostUSD for the metric event without importing the
// registry package.
type CostTable interface {
	CostPerMillionTokens(modelID string) float64
}

// Client is the single gateway-facing HTTP client every model_id routes
// through; provider routing is inferred from the "provider/" prefix of
// model_id and carried in the request body, not the URL.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	sink       MetricsSink
	costs      CostTable
	now        func() time.Time
}

// Option configures optional Client behavior.
type Option func(*Client)

// WithMetricsSink overrides the default no-op metrics sink.
func WithMetricsSink(sink MetricsSink) Option {
	return func(c *Client) { c.sink = sink }
}

// WithCostTable supplies per-model cost lookups for metric events.
func WithCostTable(costs CostTable) Option {
	return func(c *Client) { c.costs = costs }
}

// WithHTTPClient overrides the default HTTP client, primarily for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a Client bound to a single gateway endpoint.
func New(gw config.GatewayConfig, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(gw.BaseURL, "/"),
		token:      gw.Token(),
		sink:       noopSink{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Call invokes modelID through the gateway with messages and params,
// retrying at most once on a transient failure (a timeout, which includes a
// 408 response, or a 5xx or transport error); other 4xx responses are never
// retried. Exactly one MetricEvent is emitted per Call regardless of outcome.
func (c *Client) Call(ctx context.Context, modelID string, messages []Message, params Params) (Result, error) {
	start := c.now()

	body, err := json.Marshal(chatRequest{
		Model:       modelID,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		TopP:        params.TopP,
	})
	if err != nil {
		return c.fail(modelID, start, &CallError{Kind: KindBadRequest, ModelID: modelID, Err: err})
	}

	var resp *chatResponse
	var callErr *CallError

	attempt := func() error {
		resp, callErr = c.doRequest(ctx, modelID, body)
		if callErr != nil && callErr.Retryable() {
			return callErr
		}
		return nil
	}

	boff := backoff.WithMaxRetries(backoff.NewConstantBackOff(0), 1)
	_ = backoff.Retry(attempt, backoff.WithContext(boff, ctx))

	latency := c.now().Sub(start).Milliseconds()

	if callErr != nil {
		return c.fail(modelID, start, callErr)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return c.fail(modelID, start, &CallError{Kind: KindEmptyContent, ModelID: modelID, Err: errors.New("gateway returned no content")})
	}

	effective := resp.Model
	if effective == "" {
		effective = modelID
	}

	result := Result{
		Content:          resp.Choices[0].Message.Content,
		Usage:            resp.Usage,
		LatencyMS:        latency,
		ModelIDEffective: effective,
	}

	c.emit(modelID, latency, resp.Usage, true)
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, modelID string, body []byte) (*chatResponse, *CallError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compat/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &CallError{Kind: KindTransport, ModelID: modelID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		kind := KindTransport
		if errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return nil, &CallError{Kind: kind, ModelID: modelID, Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &CallError{Kind: KindTransport, ModelID: modelID, Err: err}
	}

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return nil, &CallError{Kind: KindAuth, ModelID: modelID, Err: fmt.Errorf("gateway status %d", httpResp.StatusCode)}
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, &CallError{Kind: KindRateLimited, ModelID: modelID, Err: fmt.Errorf("gateway status %d", httpResp.StatusCode)}
	case httpResp.StatusCode == http.StatusNotFound || httpResp.StatusCode == http.StatusUnprocessableEntity:
		return nil, &CallError{Kind: KindUnsupportedModel, ModelID: modelID, Err: fmt.Errorf("gateway status %d", httpResp.StatusCode)}
	case httpResp.StatusCode == http.StatusRequestTimeout || httpResp.StatusCode == http.StatusGatewayTimeout:
		return nil, &CallError{Kind: KindTimeout, ModelID: modelID, Err: fmt.Errorf("gateway status %d", httpResp.StatusCode)}
	case httpResp.StatusCode >= 500:
		return nil, &CallError{Kind: KindTransport, ModelID: modelID, Err: fmt.Errorf("gateway status %d", httpResp.StatusCode)}
	case httpResp.StatusCode >= 400:
		return nil, &CallError{Kind: KindBadRequest, ModelID: modelID, Err: fmt.Errorf("gateway status %d", httpResp.StatusCode)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &CallError{Kind: KindTransport, ModelID: modelID, Err: err}
	}
	return &parsed, nil
}

func (c *Client) fail(modelID string, start time.Time, err *CallError) (Result, error) {
	latency := c.now().Sub(start).Milliseconds()
	c.emit(modelID, latency, Usage{}, false)
	slog.Warn("provider call failed", "model_id", modelID, "kind", err.Kind, "latency_ms", latency)
	return Result{}, err
}

func (c *Client) emit(modelID string, latencyMS int64, usage Usage, success bool) {
	var cost float64
	if c.costs != nil {
		totalTokens := usage.PromptTokens + usage.CompletionTokens
		cost = c.costs.CostPerMillionTokens(modelID) * float64(totalTokens) / 1_000_000
	}
	c.sink.ObserveProviderCall(MetricEvent{
		ModelID:   modelID,
		LatencyMS: latencyMS,
		CostUSD:   cost,
		Success:   success,
	})
}
