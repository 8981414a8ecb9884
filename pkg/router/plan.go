package router

import (
	"sort"

	"github.com/codeready-toolchain/covenant/pkg/models"
)

// Plan builds the ordered candidate list for a classification under the
// given constraints: primary tier first unless required_quality is
// "quality" and score > 0.7, in which case flagship leads. Edge tier always
// appears last, as the fallback of last resort. Candidates never get
// reordered once execute() starts consuming them.
func Plan(constraints models.Constraints, classification Classification, registry ModelLister) []models.ModelDescriptor {
	flagshipFirst := constraints.RequiredQuality == models.QualityQuality && classification.Score > 0.7

	var tierOrder []models.Tier
	if flagshipFirst {
		tierOrder = []models.Tier{models.TierFlagship, models.TierPrimary, models.TierEdge}
	} else {
		tierOrder = []models.Tier{models.TierPrimary, models.TierFlagship, models.TierEdge}
	}

	var plan []models.ModelDescriptor
	for _, tier := range tierOrder {
		tierModels := registry.ByTier(tier)
		sortCandidates(tierModels)
		plan = append(plan, tierModels...)
	}
	return plan
}

// ModelLister is the subset of the Model Registry the router needs to build
// a plan, kept narrow so router tests don't need a full registry.
type ModelLister interface {
	ByTier(tier models.Tier) []models.ModelDescriptor
}

// sortCandidates breaks ties within a tier by descending quality_rank, then
// ascending cost.
func sortCandidates(candidates []models.ModelDescriptor) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].QualityRank != candidates[j].QualityRank {
			return candidates[i].QualityRank > candidates[j].QualityRank
		}
		return candidates[i].CostPerMillionTokens < candidates[j].CostPerMillionTokens
	})
}
