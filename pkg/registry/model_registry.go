// Package registry implements the Model Registry (4.A): a pure-data
// catalog of model descriptors with no failure modes other than unknown_id.
package registry

import (
	"errors"
	"sort"

	"github.com/codeready-toolchain/covenant/pkg/config"
	"github.com/codeready-toolchain/covenant/pkg/models"
)

// ErrUnknownModel is the registry's only failure mode.
var ErrUnknownModel = errors.New("unknown_id")

// ModelRegistry is an immutable, tier-partitioned catalog of model
// descriptors built once at startup from configuration.
type ModelRegistry struct {
	byID      map[string]models.ModelDescriptor
	byTier    map[models.Tier][]models.ModelDescriptor
	ascending []models.ModelDescriptor // stable order for list()
}

// New builds a ModelRegistry from the loaded configuration's model catalog.
// Construction never fails beyond what config validation already caught:
// every descriptor carries a valid tier and a unique id by the time
// config.Initialize returns.
func New(descriptors []config.ModelDescriptorConfig) *ModelRegistry {
	r := &ModelRegistry{
		byID:   make(map[string]models.ModelDescriptor, len(descriptors)),
		byTier: make(map[models.Tier][]models.ModelDescriptor),
	}

	for _, d := range descriptors {
		md := models.ModelDescriptor{
			ID:                     d.ID,
			Provider:               d.Provider,
			Tier:                   models.Tier(d.Tier),
			CostPerMillionTokens:   d.CostPerMillionTokens,
			NominalSpeedTokensPerS: d.NominalSpeedTokensPerS,
			MaxContextTokens:       d.MaxContextTokens,
			SupportsStreaming:      d.SupportsStreaming,
			SupportsTools:          d.SupportsTools,
			SupportsThinking:       d.SupportsThinking,
			QualityRank:            d.QualityRank,
		}
		r.byID[md.ID] = md
		r.byTier[md.Tier] = append(r.byTier[md.Tier], md)
		r.ascending = append(r.ascending, md)
	}

	sort.Slice(r.ascending, func(i, j int) bool { return r.ascending[i].ID < r.ascending[j].ID })
	for tier := range r.byTier {
		tierSlice := r.byTier[tier]
		sort.Slice(tierSlice, func(i, j int) bool { return tierSlice[i].ID < tierSlice[j].ID })
	}

	return r
}

// List returns every descriptor in the catalog, sorted by id.
func (r *ModelRegistry) List() []models.ModelDescriptor {
	out := make([]models.ModelDescriptor, len(r.ascending))
	copy(out, r.ascending)
	return out
}

// Get returns the descriptor for id, or ErrUnknownModel.
func (r *ModelRegistry) Get(id string) (models.ModelDescriptor, error) {
	md, ok := r.byID[id]
	if !ok {
		return models.ModelDescriptor{}, ErrUnknownModel
	}
	return md, nil
}

// CostPerMillionTokens looks up a descriptor's cost rate, satisfying
// provider.CostTable. Unknown model ids cost 0 rather than erroring, since
// a metric event should never block on a lookup miss.
func (r *ModelRegistry) CostPerMillionTokens(modelID string) float64 {
	md, ok := r.byID[modelID]
	if !ok {
		return 0
	}
	return md.CostPerMillionTokens
}

// ByTier returns every descriptor in a tier, sorted by id. An unknown tier
// returns an empty slice, not an error: tier is a closed enum validated at
// load time.
func (r *ModelRegistry) ByTier(tier models.Tier) []models.ModelDescriptor {
	src := r.byTier[tier]
	out := make([]models.ModelDescriptor, len(src))
	copy(out, src)
	return out
}

// CheapestMeeting returns the lowest-cost descriptor whose quality rank is
// at least minQualityRank, whose cost per million tokens is at most maxCost,
// and which belongs to tier (if tier is non-empty). ErrUnknownModel is
// returned if nothing in the catalog satisfies the constraints.
func (r *ModelRegistry) CheapestMeeting(tier models.Tier, minQualityRank int, maxCost float64) (models.ModelDescriptor, error) {
	candidates := r.ascending
	if tier != "" {
		candidates = r.byTier[tier]
	}

	var best *models.ModelDescriptor
	for i := range candidates {
		c := candidates[i]
		if c.QualityRank < minQualityRank {
			continue
		}
		if maxCost > 0 && c.CostPerMillionTokens > maxCost {
			continue
		}
		if best == nil || c.CostPerMillionTokens < best.CostPerMillionTokens {
			cc := c
			best = &cc
		}
	}
	if best == nil {
		return models.ModelDescriptor{}, ErrUnknownModel
	}
	return *best, nil
}

// Tiers returns the set of tiers present in the catalog, used at startup to
// confirm the router can cascade across at least three tiers.
func (r *ModelRegistry) Tiers() []models.Tier {
	out := make([]models.Tier, 0, len(r.byTier))
	for t := range r.byTier {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
