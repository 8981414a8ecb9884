package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/covenant/pkg/config"
	"github.com/codeready-toolchain/covenant/pkg/models"
)

func testDescriptors() []config.ModelDescriptorConfig {
	return []config.ModelDescriptorConfig{
		{ID: "openai/gpt-mini", Provider: "openai", Tier: "primary", CostPerMillionTokens: 0.5, MaxContextTokens: 16000, QualityRank: 5},
		{ID: "openai/gpt-nano", Provider: "openai", Tier: "edge", CostPerMillionTokens: 0.1, MaxContextTokens: 8000, QualityRank: 2},
		{ID: "anthropic/opus", Provider: "anthropic", Tier: "flagship", CostPerMillionTokens: 15, MaxContextTokens: 200000, QualityRank: 9},
	}
}

func TestNew_PartitionsCatalogByTier(t *testing.T) {
	r := New(testDescriptors())

	require.Len(t, r.List(), 3)
	assert.Len(t, r.ByTier(models.TierPrimary), 1)
	assert.Len(t, r.ByTier(models.TierEdge), 1)
	assert.Len(t, r.ByTier(models.TierFlagship), 1)
	assert.ElementsMatch(t, []models.Tier{models.TierPrimary, models.TierEdge, models.TierFlagship}, r.Tiers())
}

func TestGet_UnknownID(t *testing.T) {
	r := New(testDescriptors())

	_, err := r.Get("nonexistent/model")
	require.ErrorIs(t, err, ErrUnknownModel)

	md, err := r.Get("openai/gpt-mini")
	require.NoError(t, err)
	assert.Equal(t, "openai", md.Provider)
}

func TestCheapestMeeting(t *testing.T) {
	r := New(testDescriptors())

	md, err := r.CheapestMeeting("", 2, 1.0)
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-nano", md.ID)

	_, err = r.CheapestMeeting("", 10, 0)
	require.ErrorIs(t, err, ErrUnknownModel)
}

func TestCheapestMeeting_RestrictedToTier(t *testing.T) {
	r := New(testDescriptors())

	md, err := r.CheapestMeeting(models.TierFlagship, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "anthropic/opus", md.ID)
}
