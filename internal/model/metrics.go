package model

import "time"

// FundingStage is the company's current funding round.
type FundingStage string

const (
	StagePreSeed FundingStage = "pre-seed"
	StageSeed    FundingStage = "seed"
	StageSeriesA FundingStage = "series-a"
	StageSeriesB FundingStage = "series-b"
	StageSeriesC FundingStage = "series-c"
	StageLater   FundingStage = "later-stage"
)

// InvestmentMetrics is the normalized aggregate produced by entity
// extraction. Every field is a pointer: nil means unknown, never zero.
// Immutable once built.
type InvestmentMetrics struct {
	Revenue         RevenueMetrics  `json:"revenue"`
	Traction        TractionMetrics `json:"traction"`
	Team            TeamMetrics     `json:"team"`
	Funding         FundingMetrics  `json:"funding"`
	SourceDocuments []string        `json:"source_documents"`
	ExtractedAt     time.Time       `json:"extracted_at"`
	Confidence      float64         `json:"confidence"`
}

// RevenueMetrics holds recurring-revenue figures in currency units and
// growth as a percentage (300 = 300%).
type RevenueMetrics struct {
	ARR                 *float64  `json:"arr,omitempty"`
	MRR                 *float64  `json:"mrr,omitempty"`
	GrowthRate          *float64  `json:"growth_rate,omitempty"`
	ProjectedARR        []float64 `json:"projected_arr,omitempty"`
	GrossMargin         *float64  `json:"gross_margin,omitempty"`
	NetRevenueRetention *float64  `json:"net_revenue_retention,omitempty"`
}

// TractionMetrics holds customer and unit-economics figures. ChurnRate and
// ConversionRate are percentages in [0,100]; NPS is in [-100,100].
// CohortRetention lists retention percentages per successive cohort, oldest
// first.
type TractionMetrics struct {
	Customers          *int      `json:"customers,omitempty"`
	CustomerGrowthRate *float64  `json:"customer_growth_rate,omitempty"`
	ChurnRate          *float64  `json:"churn_rate,omitempty"`
	NPS                *float64  `json:"nps,omitempty"`
	ActiveUsers        *int      `json:"active_users,omitempty"`
	ConversionRate     *float64  `json:"conversion_rate,omitempty"`
	LTV                *float64  `json:"ltv,omitempty"`
	CAC                *float64  `json:"cac,omitempty"`
	LTVCACRatio        *float64  `json:"ltv_cac_ratio,omitempty"`
	CohortRetention    []float64 `json:"cohort_retention,omitempty"`
}

// TeamMetrics holds headcount and burn figures.
type TeamMetrics struct {
	Size                *int     `json:"size,omitempty"`
	FoundersCount       *int     `json:"founders_count,omitempty"`
	EngineeringTeamSize *int     `json:"engineering_team_size,omitempty"`
	BurnRate            *float64 `json:"burn_rate,omitempty"` // monthly, currency units
	RunwayMonths        *float64 `json:"runway_months,omitempty"`
}

// FundingMetrics holds fundraising figures in currency units.
type FundingMetrics struct {
	TotalRaised   *float64      `json:"total_raised,omitempty"`
	LastRoundSize *float64      `json:"last_round_size,omitempty"`
	CurrentAsk    *float64      `json:"current_ask,omitempty"`
	Valuation     *float64      `json:"valuation,omitempty"`
	Stage         *FundingStage `json:"stage,omitempty"`
}

// MarketClaims captures the company's own market-size assertions. TAM/SAM/SOM
// are currency units; GrowthRate is a fraction (0.25 = 25%).
type MarketClaims struct {
	TAM             *float64 `json:"tam,omitempty"`
	SAM             *float64 `json:"sam,omitempty"`
	SOM             *float64 `json:"som,omitempty"`
	GrowthRate      *float64 `json:"growth_rate,omitempty"`
	Competitors     []string `json:"competitors,omitempty"`
	CompetitorCount *int     `json:"competitor_count,omitempty"`
	Trends          []string `json:"trends,omitempty"`
	Barriers        []string `json:"barriers,omitempty"`
	Opportunities   []string `json:"opportunities,omitempty"`
}

// CompanyProfile identifies the company under analysis.
type CompanyProfile struct {
	Name        string       `json:"name"`
	OneLiner    string       `json:"one_liner,omitempty"`
	Sector      string       `json:"sector,omitempty"`
	Stage       FundingStage `json:"stage,omitempty"`
	FoundedYear *int         `json:"founded_year,omitempty"`
	Location    string       `json:"location,omitempty"`
	Website     string       `json:"website,omitempty"`
	Description string       `json:"description,omitempty"`
}

// TeamMember is a founder, key employee, or advisor.
type TeamMember struct {
	Name              string   `json:"name"`
	Role              string   `json:"role"`
	Background        string   `json:"background,omitempty"`
	YearsExperience   *int     `json:"years_experience,omitempty"`
	Education         string   `json:"education,omitempty"`
	PreviousCompanies []string `json:"previous_companies,omitempty"`
	Expertise         []string `json:"expertise,omitempty"`
	IsFounder         bool     `json:"is_founder"`
}

// TeamProfile aggregates team composition signals.
type TeamProfile struct {
	Founders           []TeamMember `json:"founders,omitempty"`
	KeyEmployees       []TeamMember `json:"key_employees,omitempty"`
	Advisors           []TeamMember `json:"advisors,omitempty"`
	Size               *int         `json:"size,omitempty"`
	AvgYearsExperience *float64     `json:"avg_years_experience,omitempty"`
	DomainExpertise    []string     `json:"domain_expertise,omitempty"`
	PriorExits         *int         `json:"prior_exits,omitempty"`
	Education          []string     `json:"education,omitempty"`
	NetworkStrength    *float64     `json:"network_strength,omitempty"` // 0..1
}
