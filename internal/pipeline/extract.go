package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aegis-vc/dealmemo-cli/internal/config"
	"github.com/aegis-vc/dealmemo-cli/internal/model"
	"github.com/aegis-vc/dealmemo-cli/pkg/anthropic"
)

// aiConfidence is assigned to every field returned by the structured
// extraction service.
const aiConfidence = 0.7

// maxExtractionChars caps how much concatenated document text is sent to the
// extraction service in one call.
const maxExtractionChars = 80_000

const extractionSystemPrompt = `You are an investment analyst extracting structured metrics from startup materials (pitch decks, call transcripts). Return a single valid JSON object matching the requested schema. Use null for anything the documents do not state. Monetary values are plain numbers in dollars, rates are percentages (12.5 means 12.5%).`

const extractionPrompt = `Extract investment metrics from the following company documents.

Output JSON schema:
{
  "company": {"name": null, "one_liner": null, "sector": null, "founded_year": null, "website": null},
  "revenue": {"arr": null, "mrr": null, "growth_rate": null, "gross_margin": null},
  "traction": {"customers": null, "churn_rate": null, "nps": null, "ltv": null, "cac": null, "cohort_retention": []},
  "team": {"size": null, "founders_count": null, "burn_rate": null},
  "funding": {"total_raised": null, "valuation": null, "current_ask": null, "stage": null},
  "market": {"tam": null, "sam": null, "som": null, "growth_rate": null, "competitors": [], "barriers": [], "trends": [], "opportunities": []}
}
%s
Documents:
%s`

// aiExtraction mirrors the JSON the extraction service returns.
type aiExtraction struct {
	Company struct {
		Name        *string `json:"name"`
		OneLiner    *string `json:"one_liner"`
		Sector      *string `json:"sector"`
		FoundedYear *int    `json:"founded_year"`
		Website     *string `json:"website"`
	} `json:"company"`
	Revenue struct {
		ARR         *float64 `json:"arr"`
		MRR         *float64 `json:"mrr"`
		GrowthRate  *float64 `json:"growth_rate"`
		GrossMargin *float64 `json:"gross_margin"`
	} `json:"revenue"`
	Traction struct {
		Customers       *float64  `json:"customers"`
		ChurnRate       *float64  `json:"churn_rate"`
		NPS             *float64  `json:"nps"`
		LTV             *float64  `json:"ltv"`
		CAC             *float64  `json:"cac"`
		CohortRetention []float64 `json:"cohort_retention"`
	} `json:"traction"`
	Team struct {
		Size          *float64 `json:"size"`
		FoundersCount *float64 `json:"founders_count"`
		BurnRate      *float64 `json:"burn_rate"`
	} `json:"team"`
	Funding struct {
		TotalRaised *float64 `json:"total_raised"`
		Valuation   *float64 `json:"valuation"`
		CurrentAsk  *float64 `json:"current_ask"`
		Stage       *string  `json:"stage"`
	} `json:"funding"`
	Market struct {
		TAM           *float64 `json:"tam"`
		SAM           *float64 `json:"sam"`
		SOM           *float64 `json:"som"`
		GrowthRate    *float64 `json:"growth_rate"`
		Competitors   []string `json:"competitors"`
		Barriers      []string `json:"barriers"`
		Trends        []string `json:"trends"`
		Opportunities []string `json:"opportunities"`
	} `json:"market"`
}

// ExtractionHints gives the extraction service optional steering context.
type ExtractionHints struct {
	Sector string
	Focus  string
}

// ExtractPhase runs both extraction strategies over the document batch and
// returns the merged, validated result. Extraction-service failure is
// non-fatal: pattern results alone are returned with a warning. Total
// failure of both strategies yields an empty but valid result.
func ExtractPhase(ctx context.Context, docs []model.Document, hints ExtractionHints, aiClient anthropic.Client, aiCfg config.AnthropicConfig, extCfg config.ExtractionConfig) *model.EntityExtractionResult {
	start := time.Now()
	result := &model.EntityExtractionResult{}

	docIDs := make([]string, 0, len(docs))
	var all []model.ExtractedEntity
	for _, doc := range docs {
		docIDs = append(docIDs, doc.ID)
		all = append(all, extractByPatterns(doc)...)
	}

	var ai *aiExtraction
	if aiClient != nil {
		extracted, err := extractByAI(ctx, docs, hints, aiClient, aiCfg)
		if err != nil {
			warning := "extraction service unavailable, using pattern results only"
			result.Warnings = append(result.Warnings, warning)
			zap.L().Warn("extract: "+warning, zap.Error(err))
		} else {
			ai = extracted
			all = append(all, aiEntities(extracted, docIDs)...)
		}
	}

	merged := MergeEntities(all)
	valid := ValidateEntities(merged, extCfg.MinEntityConfidence)

	result.Entities = valid
	result.Confidence = OverallConfidence(valid)
	result.Metrics = BuildMetrics(valid, docIDs)
	result.Metrics.ExtractedAt = time.Now().UTC()
	result.Metrics.Confidence = result.Confidence
	result.MarketClaims = BuildMarketClaims(valid)
	result.TeamProfile = BuildTeamProfile(valid)
	result.CompanyProfile = buildCompanyProfile(valid, ai, hints)
	if ai != nil {
		enrichFromAI(result, ai)
	}
	result.ProcessingTime = time.Since(start)

	zap.L().Info("extract: extraction complete",
		zap.Int("entities", len(valid)),
		zap.Int("documents", len(docs)),
		zap.Float64("confidence", result.Confidence),
	)
	return result
}

// ExtractDocument runs the deterministic strategy alone over one document,
// producing a per-document result for cross-document consistency checks.
func ExtractDocument(doc model.Document, extCfg config.ExtractionConfig) model.EntityExtractionResult {
	entities := ValidateEntities(MergeEntities(extractByPatterns(doc)), extCfg.MinEntityConfidence)
	return model.EntityExtractionResult{
		Entities:   entities,
		Metrics:    BuildMetrics(entities, []string{doc.ID}),
		Confidence: OverallConfidence(entities),
	}
}

// extractByAI sends the concatenated document text to the extraction service.
func extractByAI(ctx context.Context, docs []model.Document, hints ExtractionHints, aiClient anthropic.Client, aiCfg config.AnthropicConfig) (*aiExtraction, error) {
	var b strings.Builder
	for _, doc := range docs {
		b.WriteString("--- " + doc.Filename + " ---\n")
		b.WriteString(doc.Text)
		b.WriteString("\n\n")
	}
	text := b.String()
	if len(text) > maxExtractionChars {
		text = text[:maxExtractionChars]
	}

	hintBlock := ""
	if hints.Sector != "" || hints.Focus != "" {
		hintBlock = "\nContext: sector hint = " + hints.Sector + ", analysis focus = " + hints.Focus + "\n"
	}

	resp, err := aiClient.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     aiCfg.Model,
		MaxTokens: int64(aiCfg.MaxTokens),
		System:    extractionSystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(extractionPrompt, hintBlock, text)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: ai call")
	}

	var parsed aiExtraction
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
		return nil, eris.Wrap(err, "extract: parse ai response")
	}
	return &parsed, nil
}

// extractJSON pulls the first JSON object out of a model response that may
// carry surrounding prose or a code fence.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}

// aiEntities converts the structured extraction into the common entity shape
// at the fixed AI confidence.
func aiEntities(ai *aiExtraction, docIDs []string) []model.ExtractedEntity {
	source := strings.Join(docIDs, "+")
	add := func(out []model.ExtractedEntity, t model.EntityType, name string, v *float64) []model.ExtractedEntity {
		if v == nil {
			return out
		}
		return append(out, model.ExtractedEntity{
			Type:             t,
			Name:             name,
			Value:            *v,
			Confidence:       aiConfidence,
			SourceDocument:   source,
			SourceContext:    "structured extraction",
			ExtractionMethod: model.MethodAI,
		})
	}

	var out []model.ExtractedEntity
	out = add(out, model.EntityTypeFinancial, "arr", ai.Revenue.ARR)
	out = add(out, model.EntityTypeFinancial, "mrr", ai.Revenue.MRR)
	out = add(out, model.EntityTypeFinancial, "growth_rate", ai.Revenue.GrowthRate)
	out = add(out, model.EntityTypeFinancial, "gross_margin", ai.Revenue.GrossMargin)
	out = add(out, model.EntityTypeProduct, "customers", ai.Traction.Customers)
	out = add(out, model.EntityTypeProduct, "churn", ai.Traction.ChurnRate)
	out = add(out, model.EntityTypeProduct, "nps", ai.Traction.NPS)
	out = add(out, model.EntityTypeFinancial, "ltv", ai.Traction.LTV)
	out = add(out, model.EntityTypeFinancial, "cac", ai.Traction.CAC)
	out = add(out, model.EntityTypeTeam, "team_size", ai.Team.Size)
	out = add(out, model.EntityTypeTeam, "founders", ai.Team.FoundersCount)
	out = add(out, model.EntityTypeFinancial, "burn_rate", ai.Team.BurnRate)
	out = add(out, model.EntityTypeFinancial, "raised", ai.Funding.TotalRaised)
	out = add(out, model.EntityTypeFinancial, "valuation", ai.Funding.Valuation)
	out = add(out, model.EntityTypeMarket, "tam", ai.Market.TAM)
	out = add(out, model.EntityTypeMarket, "sam", ai.Market.SAM)
	out = add(out, model.EntityTypeMarket, "som", ai.Market.SOM)
	out = add(out, model.EntityTypeMarket, "market_growth", ai.Market.GrowthRate)
	return out
}

// buildCompanyProfile prefers AI-extracted identity fields, falling back to
// pattern signals and hints.
func buildCompanyProfile(entities []model.ExtractedEntity, ai *aiExtraction, hints ExtractionHints) *model.CompanyProfile {
	profile := &model.CompanyProfile{Sector: hints.Sector}

	if ai != nil {
		if ai.Company.Name != nil {
			profile.Name = *ai.Company.Name
		}
		if ai.Company.OneLiner != nil {
			profile.OneLiner = *ai.Company.OneLiner
		}
		if ai.Company.Sector != nil && *ai.Company.Sector != "" {
			profile.Sector = *ai.Company.Sector
		}
		if ai.Company.Website != nil {
			profile.Website = *ai.Company.Website
		}
		if ai.Company.FoundedYear != nil {
			profile.FoundedYear = ai.Company.FoundedYear
		}
	}
	if profile.FoundedYear == nil {
		if v := entityValue(entities, "founding_year"); v != nil {
			year := int(*v)
			profile.FoundedYear = &year
		}
	}
	return profile
}

// enrichFromAI fills list-valued market claims the pattern strategy cannot
// produce and the funding stage when stated.
func enrichFromAI(result *model.EntityExtractionResult, ai *aiExtraction) {
	if len(ai.Market.Competitors) > 0 || len(ai.Market.Barriers) > 0 ||
		len(ai.Market.Trends) > 0 || len(ai.Market.Opportunities) > 0 {
		if result.MarketClaims == nil {
			result.MarketClaims = &model.MarketClaims{}
		}
		result.MarketClaims.Competitors = ai.Market.Competitors
		result.MarketClaims.Barriers = ai.Market.Barriers
		result.MarketClaims.Trends = ai.Market.Trends
		result.MarketClaims.Opportunities = ai.Market.Opportunities
		if n := len(ai.Market.Competitors); n > 0 && result.MarketClaims.CompetitorCount == nil {
			result.MarketClaims.CompetitorCount = &n
		}
	}
	if len(ai.Traction.CohortRetention) > 0 {
		result.Metrics.Traction.CohortRetention = ai.Traction.CohortRetention
	}
	if ai.Funding.Stage != nil {
		stage := model.FundingStage(strings.ToLower(*ai.Funding.Stage))
		result.Metrics.Funding.Stage = &stage
	}
	if ai.Funding.CurrentAsk != nil {
		result.Metrics.Funding.CurrentAsk = ai.Funding.CurrentAsk
	}
}
