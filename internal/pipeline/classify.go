package pipeline

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

// fallbackSector is assigned when no strategy finds a signal.
const fallbackSector = "other"

// fallbackConfidence caps the confidence of a no-signal classification.
const fallbackConfidence = 0.3

// lookupTrustThreshold is the confidence above which the external lookup
// tier is trusted outright.
const lookupTrustThreshold = 0.7

//go:embed taxonomy.yaml
var taxonomyYAML []byte

// sectorEntry is one taxonomy sector with its weighted keyword list.
type sectorEntry struct {
	Name     string   `yaml:"name"`
	Weight   float64  `yaml:"weight"`
	Keywords []string `yaml:"keywords"`
}

type taxonomyFile struct {
	Sectors []sectorEntry `yaml:"sectors"`
}

var taxonomy = mustLoadTaxonomy()

func mustLoadTaxonomy() []sectorEntry {
	var tf taxonomyFile
	if err := yaml.Unmarshal(taxonomyYAML, &tf); err != nil {
		panic("pipeline: embedded taxonomy is malformed: " + err.Error())
	}
	return tf.Sectors
}

// SectorLookup consults the external analytical store for a known sector
// assignment (classifier tier 1).
type SectorLookup interface {
	LookupSector(ctx context.Context, name, description string) (sector string, confidence float64, err error)
}

// classifyStrategy is one tier of the classification cascade. Strategies
// never return an error: a tier with no signal reports low confidence.
type classifyStrategy interface {
	Classify(ctx context.Context, profile model.CompanyProfile) model.SectorClassification
}

// ClassifyPhase assigns a primary and secondary sector by running the tiered
// cascade and keeping the highest-confidence result, ties broken toward the
// earlier (more authoritative) tier. No tier may fail the phase.
func ClassifyPhase(ctx context.Context, profile model.CompanyProfile, lookup SectorLookup) model.SectorClassification {
	strategies := []classifyStrategy{
		&lookupStrategy{lookup: lookup},
		&ruleStrategy{},
		&keywordStrategy{sectors: taxonomy},
	}

	best := model.SectorClassification{
		PrimarySector: fallbackSector,
		Confidence:    0,
		Reasoning:     "no classification signal found",
	}
	for _, s := range strategies {
		candidate := s.Classify(ctx, profile)
		if candidate.Confidence > best.Confidence {
			best = candidate
		}
	}

	if best.PrimarySector == "" || best.PrimarySector == fallbackSector {
		best.PrimarySector = fallbackSector
		if best.Confidence > fallbackConfidence {
			best.Confidence = fallbackConfidence
		}
	}

	zap.L().Info("classify: sector assigned",
		zap.String("sector", best.PrimarySector),
		zap.Float64("confidence", best.Confidence),
		zap.String("reasoning", best.Reasoning),
	)
	return best
}

// lookupStrategy is tier 1: an external sector lookup against the
// analytical store. Lookup failures degrade to zero confidence.
type lookupStrategy struct {
	lookup SectorLookup
}

func (s *lookupStrategy) Classify(ctx context.Context, profile model.CompanyProfile) model.SectorClassification {
	if s.lookup == nil {
		return model.SectorClassification{PrimarySector: fallbackSector}
	}
	sector, confidence, err := s.lookup.LookupSector(ctx, profile.Name, profile.Description)
	if err != nil {
		zap.L().Warn("classify: external lookup failed", zap.Error(err))
		return model.SectorClassification{PrimarySector: fallbackSector}
	}
	if sector == "" {
		return model.SectorClassification{PrimarySector: fallbackSector}
	}
	reasoning := fmt.Sprintf("external sector lookup matched %q", sector)
	if confidence > lookupTrustThreshold {
		reasoning += " (trusted)"
	}
	return model.SectorClassification{
		PrimarySector: sector,
		Confidence:    confidence,
		Reasoning:     reasoning,
	}
}

// sectorRule is one deterministic business rule with a fixed confidence.
type sectorRule struct {
	substring  string
	sector     string
	confidence float64
}

// sectorRules are checked against the company name and website first, then
// the one-liner and description at reduced confidence.
var sectorRules = []sectorRule{
	{"bank", "fintech", 0.8},
	{"pay", "fintech", 0.7},
	{"finance", "fintech", 0.7},
	{"health", "healthtech", 0.8},
	{"clinic", "healthtech", 0.7},
	{"med", "healthtech", 0.6},
	{"shop", "ecommerce", 0.7},
	{"store", "ecommerce", 0.6},
	{"learn", "edtech", 0.7},
	{"edu", "edtech", 0.7},
	{"secure", "cybersecurity", 0.7},
	{"ship", "logistics", 0.6},
	{"market", "marketplace", 0.6},
}

// ruleStrategy is tier 2: deterministic name/website substring rules.
type ruleStrategy struct{}

func (s *ruleStrategy) Classify(_ context.Context, profile model.CompanyProfile) model.SectorClassification {
	nameAndSite := strings.ToLower(profile.Name + " " + profile.Website)
	for _, r := range sectorRules {
		if strings.Contains(nameAndSite, r.substring) {
			return model.SectorClassification{
				PrimarySector: r.sector,
				Confidence:    r.confidence,
				Reasoning:     fmt.Sprintf("business rule: name/website contains %q", r.substring),
			}
		}
	}

	description := strings.ToLower(profile.OneLiner + " " + profile.Description)
	for _, r := range sectorRules {
		if strings.Contains(description, r.substring) {
			return model.SectorClassification{
				PrimarySector: r.sector,
				Confidence:    r.confidence - 0.1,
				Reasoning:     fmt.Sprintf("business rule: description contains %q", r.substring),
			}
		}
	}
	return model.SectorClassification{PrimarySector: fallbackSector}
}

// keywordStrategy is tier 3: keyword-weighted scoring across the taxonomy.
type keywordStrategy struct {
	sectors []sectorEntry
}

func (s *keywordStrategy) Classify(_ context.Context, profile model.CompanyProfile) model.SectorClassification {
	text := strings.ToLower(strings.Join([]string{
		profile.Name, profile.OneLiner, profile.Description, profile.Website,
	}, " "))
	if strings.TrimSpace(text) == "" {
		return model.SectorClassification{PrimarySector: fallbackSector}
	}

	type scored struct {
		name  string
		score float64
	}
	var scores []scored
	maxPossible := 0.0
	for _, sector := range s.sectors {
		score := 0.0
		for _, kw := range sector.Keywords {
			score += float64(strings.Count(text, kw)) * sector.Weight
		}
		maxPossible += float64(len(sector.Keywords)) * sector.Weight
		if score > 0 {
			scores = append(scores, scored{sector.Name, score})
		}
	}
	if len(scores) == 0 || maxPossible == 0 {
		return model.SectorClassification{PrimarySector: fallbackSector}
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	primary := scores[0]

	var secondaries []string
	for _, sc := range scores[1:] {
		if sc.score >= primary.score*0.5 && len(secondaries) < 2 {
			secondaries = append(secondaries, sc.name)
		}
	}

	confidence := 2 * primary.score / maxPossible
	if confidence > 0.9 {
		confidence = 0.9
	}

	return model.SectorClassification{
		PrimarySector:    primary.name,
		SecondarySectors: secondaries,
		Confidence:       confidence,
		Reasoning:        fmt.Sprintf("keyword scoring: %q scored %.1f", primary.name, primary.score),
	}
}

// InferSectorFromKeywords exposes the tier-3 strategy for callers that need
// a sector guess from free text (benchmark fallback when a sector is
// unknown to the warehouse).
func InferSectorFromKeywords(text string) model.SectorClassification {
	s := &keywordStrategy{sectors: taxonomy}
	return s.Classify(context.Background(), model.CompanyProfile{Description: text})
}

// KeywordSectorInference adapts keyword inference to the benchmark
// warehouse's fallback hook. Landing on the catch-all sector reports no
// inference at all.
func KeywordSectorInference(text string) (string, float64) {
	c := InferSectorFromKeywords(text)
	if c.PrimarySector == "" || c.PrimarySector == fallbackSector {
		return "", 0
	}
	return c.PrimarySector, c.Confidence
}
