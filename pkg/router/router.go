// Package router implements the Smart Router (4.C): prompt classification,
// tiered fallback planning, and cascading execution across model tiers.
package router

import (
	"context"

	"github.com/codeready-toolchain/covenant/pkg/models"
	"github.com/codeready-toolchain/covenant/pkg/provider"
)

// Router composes classify/plan/execute behind the single entrypoint most
// callers (the Mediator's fast path, the Orchestrator's sub-agent executor)
// actually need.
type Router struct {
	registry ModelLister
	caller   Caller
}

// New builds a Router over a model registry and a Provider Client.
func New(registry ModelLister, caller Caller) *Router {
	return &Router{registry: registry, caller: caller}
}

// Classify exposes the heuristic prompt classifier.
func (r *Router) Classify(prompt string) Classification {
	return Classify(prompt)
}

// Route classifies the prompt, builds a fallback plan under constraints, and
// executes it, returning the first successful result.
func (r *Router) Route(ctx context.Context, prompt string, constraints models.Constraints, params provider.Params) (provider.Result, Classification, error) {
	classification := Classify(prompt)
	candidates := Plan(constraints, classification, r.registry)
	messages := []provider.Message{{Role: "user", Content: prompt}}
	result, err := Execute(ctx, r.caller, messages, params, candidates)
	return result, classification, err
}
