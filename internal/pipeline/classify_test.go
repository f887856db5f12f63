package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

type stubLookup struct {
	sector     string
	confidence float64
	err        error
}

func (s *stubLookup) LookupSector(_ context.Context, _, _ string) (string, float64, error) {
	return s.sector, s.confidence, s.err
}

func TestClassifyPhase_TrustedLookupWins(t *testing.T) {
	lookup := &stubLookup{sector: "fintech", confidence: 0.95}
	profile := model.CompanyProfile{Name: "Ledgerly", Description: "software platform"}

	got := ClassifyPhase(context.Background(), profile, lookup)
	assert.Equal(t, "fintech", got.PrimarySector)
	assert.InDelta(t, 0.95, got.Confidence, 0.001)
	assert.Contains(t, got.Reasoning, "lookup")
}

func TestClassifyPhase_LookupErrorFallsThrough(t *testing.T) {
	lookup := &stubLookup{err: errors.New("warehouse unavailable")}
	profile := model.CompanyProfile{Name: "HealthBridge", Website: "healthbridge.io"}

	got := ClassifyPhase(context.Background(), profile, lookup)
	assert.Equal(t, "healthtech", got.PrimarySector)
	assert.InDelta(t, 0.8, got.Confidence, 0.001)
}

func TestClassifyPhase_NilLookupUsesRules(t *testing.T) {
	profile := model.CompanyProfile{Name: "SecureStack"}

	got := ClassifyPhase(context.Background(), profile, nil)
	assert.Equal(t, "cybersecurity", got.PrimarySector)
}

func TestClassifyPhase_EarlierTierWinsTies(t *testing.T) {
	// Lookup ties the rule confidence exactly; the lookup answer must stand
	// because later candidates only replace on strictly greater confidence.
	lookup := &stubLookup{sector: "saas", confidence: 0.8}
	profile := model.CompanyProfile{Name: "HealthBridge"}

	got := ClassifyPhase(context.Background(), profile, lookup)
	assert.Equal(t, "saas", got.PrimarySector)
}

func TestClassifyPhase_NoSignalFallsBackToOther(t *testing.T) {
	got := ClassifyPhase(context.Background(), model.CompanyProfile{Name: "Zzyzx"}, nil)
	assert.Equal(t, "other", got.PrimarySector)
	assert.LessOrEqual(t, got.Confidence, 0.3)
}

func TestRuleStrategy_DescriptionReducedConfidence(t *testing.T) {
	s := &ruleStrategy{}
	got := s.Classify(context.Background(), model.CompanyProfile{
		Name:        "Acme",
		Description: "a modern bank for freelancers",
	})
	assert.Equal(t, "fintech", got.PrimarySector)
	assert.InDelta(t, 0.7, got.Confidence, 0.001)
}

func TestKeywordStrategy_ScoresAndSecondaries(t *testing.T) {
	s := &keywordStrategy{sectors: taxonomy}
	got := s.Classify(context.Background(), model.CompanyProfile{
		Description: "machine learning llm platform for healthcare, " +
			"clinical ai model inference for patient diagnostics",
	})

	assert.Equal(t, "healthtech", got.PrimarySector)
	assert.Greater(t, got.Confidence, 0.0)
	assert.LessOrEqual(t, got.Confidence, 0.9)
	assert.Contains(t, got.SecondarySectors, "ai")
	assert.LessOrEqual(t, len(got.SecondarySectors), 2)
}

func TestKeywordStrategy_EmptyProfile(t *testing.T) {
	s := &keywordStrategy{sectors: taxonomy}
	got := s.Classify(context.Background(), model.CompanyProfile{})
	assert.Equal(t, fallbackSector, got.PrimarySector)
	assert.Zero(t, got.Confidence)
}

func TestInferSectorFromKeywords(t *testing.T) {
	got := InferSectorFromKeywords("two-sided marketplace matching buyers and sellers of gig work")
	assert.Equal(t, "marketplace", got.PrimarySector)
}

func TestKeywordSectorInference(t *testing.T) {
	sector, confidence := KeywordSectorInference("two-sided marketplace matching buyers and sellers of gig work")
	assert.Equal(t, "marketplace", sector)
	assert.Greater(t, confidence, 0.0)

	// Text with no sector signal must report no inference, not the
	// catch-all sector.
	sector, confidence = KeywordSectorInference("a company doing things")
	assert.Empty(t, sector)
	assert.Zero(t, confidence)
}

func TestMustLoadTaxonomy(t *testing.T) {
	require.NotEmpty(t, taxonomy)
	for _, s := range taxonomy {
		assert.NotEmpty(t, s.Name)
		assert.Greater(t, s.Weight, 0.0)
		assert.NotEmpty(t, s.Keywords)
	}
}
