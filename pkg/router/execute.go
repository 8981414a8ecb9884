package router

import (
	"context"
	"errors"

	"github.com/codeready-toolchain/covenant/pkg/models"
	"github.com/codeready-toolchain/covenant/pkg/provider"
)

// Caller is the subset of the Provider Client the router depends on.
type Caller interface {
	Call(ctx context.Context, modelID string, messages []provider.Message, params provider.Params) (provider.Result, error)
}

// is4xxKind reports whether a CallError's kind corresponds to an HTTP 4xx
// class failure. The router never falls over to the next candidate for
// these — a 4xx almost always indicates the request itself (or the shared
// gateway credential) is the problem, not the specific candidate model, so
// trying the next candidate would just reproduce the same failure.
func is4xxKind(kind provider.ErrorKind) bool {
	switch kind {
	case provider.KindAuth, provider.KindRateLimited, provider.KindUnsupportedModel, provider.KindBadRequest:
		return true
	default:
		return false
	}
}

// Execute iterates candidates in order, calling each through caller until
// one succeeds. A non-4xx failure falls over to the next candidate; a 4xx
// failure is returned immediately without trying the rest. Exhausting every
// candidate on non-4xx failures raises an AllProvidersFailedError carrying
// every per-attempt error. Candidates are never reordered mid-run.
func Execute(ctx context.Context, caller Caller, messages []provider.Message, params provider.Params, candidates []models.ModelDescriptor) (provider.Result, error) {
	var attempts []*provider.CallError

	for _, candidate := range candidates {
		result, err := caller.Call(ctx, candidate.ID, messages, params)
		if err == nil {
			return result, nil
		}

		var callErr *provider.CallError
		if !errors.As(err, &callErr) {
			attempts = append(attempts, &provider.CallError{Kind: provider.KindTransport, ModelID: candidate.ID, Err: err})
			continue
		}

		if is4xxKind(callErr.Kind) {
			return provider.Result{}, callErr
		}
		attempts = append(attempts, callErr)
	}

	return provider.Result{}, &provider.AllProvidersFailedError{Attempts: attempts}
}
