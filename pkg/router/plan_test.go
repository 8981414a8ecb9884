package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/covenant/pkg/models"
)

type fakeLister struct {
	byTier map[models.Tier][]models.ModelDescriptor
}

func (f fakeLister) ByTier(tier models.Tier) []models.ModelDescriptor {
	return f.byTier[tier]
}

func testLister() fakeLister {
	return fakeLister{byTier: map[models.Tier][]models.ModelDescriptor{
		models.TierPrimary: {
			{ID: "p1", Tier: models.TierPrimary, QualityRank: 5, CostPerMillionTokens: 1.0},
			{ID: "p2", Tier: models.TierPrimary, QualityRank: 5, CostPerMillionTokens: 0.5},
		},
		models.TierFlagship: {
			{ID: "f1", Tier: models.TierFlagship, QualityRank: 9, CostPerMillionTokens: 10},
		},
		models.TierEdge: {
			{ID: "e1", Tier: models.TierEdge, QualityRank: 2, CostPerMillionTokens: 0.1},
		},
	}}
}

func TestPlan_PrimaryFirstByDefault(t *testing.T) {
	c := Classification{Complexity: ComplexityModerate, Score: 0.5}
	constraints := models.Constraints{RequiredQuality: models.QualityBalanced}

	plan := Plan(constraints, c, testLister())
	require.Len(t, plan, 4)
	assert.Equal(t, "p2", plan[0].ID, "cheaper of two tied-quality primaries goes first")
	assert.Equal(t, "p1", plan[1].ID)
	assert.Equal(t, "f1", plan[2].ID)
	assert.Equal(t, "e1", plan[3].ID, "edge is always last resort")
}

func TestPlan_FlagshipFirstWhenQualityRequiredAndScoreHigh(t *testing.T) {
	c := Classification{Complexity: ComplexityComplex, Score: 0.8}
	constraints := models.Constraints{RequiredQuality: models.QualityQuality}

	plan := Plan(constraints, c, testLister())
	require.Len(t, plan, 4)
	assert.Equal(t, "f1", plan[0].ID)
	assert.Equal(t, "e1", plan[3].ID)
}

func TestPlan_QualityRequiredButScoreLow_PrimaryFirst(t *testing.T) {
	c := Classification{Complexity: ComplexitySimple, Score: 0.2}
	constraints := models.Constraints{RequiredQuality: models.QualityQuality}

	plan := Plan(constraints, c, testLister())
	assert.Equal(t, "p2", plan[0].ID)
}
