package model

import "time"

// EntityType categorizes an extracted entity.
type EntityType string

const (
	EntityTypeFinancial EntityType = "financial"
	EntityTypeTeam      EntityType = "team"
	EntityTypeMarket    EntityType = "market"
	EntityTypeProduct   EntityType = "product"
	EntityTypeCompany   EntityType = "company"
)

// ExtractionMethod records which strategy produced an entity.
type ExtractionMethod string

const (
	MethodPattern ExtractionMethod = "pattern"
	MethodAI      ExtractionMethod = "ai"
)

// ExtractedEntity is a single metric or fact pulled from document text.
// Entities are transient: produced and consumed within one extraction pass.
type ExtractedEntity struct {
	Type             EntityType       `json:"type"`
	Name             string           `json:"name"`
	Value            any              `json:"value"`
	Confidence       float64          `json:"confidence"`
	SourceDocument   string           `json:"source_document"`
	SourceContext    string           `json:"source_context,omitempty"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
}

// EntityExtractionResult is the output of one extraction pass over a
// document batch.
type EntityExtractionResult struct {
	Entities       []ExtractedEntity  `json:"entities"`
	Metrics        *InvestmentMetrics `json:"metrics"`
	CompanyProfile *CompanyProfile    `json:"company_profile,omitempty"`
	MarketClaims   *MarketClaims      `json:"market_claims,omitempty"`
	TeamProfile    *TeamProfile       `json:"team_profile,omitempty"`
	Confidence     float64            `json:"confidence"`
	ProcessingTime time.Duration      `json:"processing_time"`
	Warnings       []string           `json:"warnings,omitempty"`
}
