package provider

import "errors"

// ErrorKind classifies why a Provider Client call failed. The Smart
// Router inspects this to decide whether a candidate can be retried
// transparently (at the Provider Client level) or must be abandoned in
// favor of the next candidate in the plan.
type ErrorKind string

const (
	KindAuth            ErrorKind = "auth"
	KindRateLimited     ErrorKind = "rate_limited"
	KindUnsupportedModel ErrorKind = "unsupported_model"
	KindBadRequest      ErrorKind = "bad_request"
	KindTimeout         ErrorKind = "timeout"
	KindTransport       ErrorKind = "transport"
	KindEmptyContent    ErrorKind = "empty_content"
)

// CallError is the error type every failed Call returns.
type CallError struct {
	Kind    ErrorKind
	ModelID string
	Err     error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.ModelID + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.ModelID
}

func (e *CallError) Unwrap() error { return e.Err }

// Retryable reports whether the Provider Client itself should retry this
// error once before surfacing it to the router (a timeout, including a 408
// response, or a 5xx or transport failure; never any other 4xx).
func (e *CallError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindTransport
}

// ErrAllProvidersFailed is raised by the Smart Router when every candidate
// in a plan has been exhausted.
var ErrAllProvidersFailed = errors.New("all_providers_failed")

// AllProvidersFailedError carries every per-attempt error for diagnostics.
type AllProvidersFailedError struct {
	Attempts []*CallError
}

func (e *AllProvidersFailedError) Error() string { return ErrAllProvidersFailed.Error() }

func (e *AllProvidersFailedError) Unwrap() error { return ErrAllProvidersFailed }
