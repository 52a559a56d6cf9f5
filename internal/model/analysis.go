package model

// Category names used across the directive, verifier, and delta detector.
const (
	CategoryDemographics = "demographics"
	CategoryTenders      = "tenders"
	CategoryRental       = "rental"
	CategoryMarketIntel  = "market_intel"
	CategoryWebSearch    = "web_search"
	CategoryDataQuality  = "data_quality"
	CategoryOther        = "other"
	CategoryAll          = "all"
)

// Financials holds the projected economics of a recommendation, in SGD.
type Financials struct {
	UpfrontCost        float64 `json:"upfrontCost"`
	MonthlyCost        float64 `json:"monthlyCost"`
	MonthlyRevenueBad  float64 `json:"monthlyRevenueBad"`
	MonthlyRevenueAvg  float64 `json:"monthlyRevenueAvg"`
	MonthlyRevenueGood float64 `json:"monthlyRevenueGood"`
}

// BusinessProfile describes the operating shape of a recommended business.
type BusinessProfile struct {
	Size           string `json:"size"`
	TargetAudience string `json:"targetAudience"`
	Strategy       string `json:"strategy"`
	Employees      string `json:"employees"`
}

// Recommendation is one ranked business opportunity for a town.
type Recommendation struct {
	BusinessType       string          `json:"businessType"`
	Category           string          `json:"category"`
	OpportunityScore   float64         `json:"opportunityScore"`
	Thesis             string          `json:"thesis"`
	GapReason          string          `json:"gapReason,omitempty"`
	EstimatedRental    float64         `json:"estimatedRental,omitempty"`
	SuggestedLocations []string        `json:"suggestedLocations,omitempty"`
	BusinessProfile    BusinessProfile `json:"businessProfile"`
	Financials         Financials      `json:"financials"`
	DataSourceTitle    string          `json:"dataSourceTitle,omitempty"`
	DataSourceURL      string          `json:"dataSourceUrl,omitempty"`
}

// WealthMetrics summarizes household income and property mix for a town.
type WealthMetrics struct {
	MedianHouseholdIncome          string `json:"medianHouseholdIncome"`
	MedianHouseholdIncomePerCapita string `json:"medianHouseholdIncomePerCapita"`
	PrivatePropertyRatio           string `json:"privatePropertyRatio"`
	WealthTier                     string `json:"wealthTier"`
	SourceNote                     string `json:"sourceNote,omitempty"`
	DataSourceURL                  string `json:"dataSourceUrl,omitempty"`
	FetchStatus                    string `json:"fetchStatus,omitempty"`
}

// DistributionPoint is one labeled slice of a demographic distribution.
type DistributionPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// DemographicData holds census-style distributions for a planning area.
type DemographicData struct {
	ResidentPopulation string              `json:"residentPopulation"`
	PlanningArea       string              `json:"planningArea,omitempty"`
	AgeDistribution    []DistributionPoint `json:"ageDistribution"`
	RaceDistribution   []DistributionPoint `json:"raceDistribution"`
	EmploymentStatus   []DistributionPoint `json:"employmentStatus"`
	DataSourceURL      string              `json:"dataSourceUrl,omitempty"`
	FetchStatus        string              `json:"fetchStatus,omitempty"`
}

// DiscoveryLog is one research step recorded by an agent.
type DiscoveryLog struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Result    string `json:"result"`
}

// DiscoveryCategory groups discovery logs under a display label.
type DiscoveryCategory struct {
	Label string         `json:"label"`
	Logs  []DiscoveryLog `json:"logs"`
}

// PulseEvent is one entry in the pulse timeline, newest first.
type PulseEvent struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Impact    string `json:"impact"` // positive, negative, neutral
}

// Tender is one active HDB commercial property tender.
type Tender struct {
	Block       string  `json:"block"`
	Street      string  `json:"street"`
	ClosingDate string  `json:"closingDate"`
	Status      string  `json:"status"`
	AreaSqft    float64 `json:"areaSqft"`
}

// GroundingSource cites where a claim in the analysis came from.
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Caps applied by the integrator and strategist.
const (
	MaxSources         = 20
	MaxTimelineEvents  = 100
	MaxChangelog       = 100
	MaxHistory         = 100
	NumRecommendations = 3
)

// AreaAnalysis is the externally visible synthesized result for one town.
type AreaAnalysis struct {
	Town              string                       `json:"town"`
	CommercialPulse   string                       `json:"commercialPulse"`
	DemographicsFocus string                       `json:"demographicsFocus"`
	WealthMetrics     WealthMetrics                `json:"wealthMetrics"`
	DemographicData   DemographicData              `json:"demographicData"`
	DiscoveryLogs     map[string]DiscoveryCategory `json:"discoveryLogs"`
	PulseTimeline     []PulseEvent                 `json:"pulseTimeline"`
	Recommendations   []Recommendation             `json:"recommendations"`
	ActiveTenders     []Tender                     `json:"activeTenders"`
	Sources           []GroundingSource            `json:"sources"`
	MonitoringStarted string                       `json:"monitoringStarted"`
	LastScannedAt     string                       `json:"lastScannedAt"`
}

// EmptyAnalysis builds the minimal placeholder analysis used when no prior
// knowledge base exists and the integrator response could not be parsed.
func EmptyAnalysis(town, now string) AreaAnalysis {
	return AreaAnalysis{
		Town:              town,
		CommercialPulse:   "Analysis pending - insufficient data from tools",
		DemographicsFocus: "General residential",
		WealthMetrics: WealthMetrics{
			MedianHouseholdIncome:          string(FetchUnavailable),
			MedianHouseholdIncomePerCapita: string(FetchUnavailable),
			PrivatePropertyRatio:           string(FetchUnavailable),
			WealthTier:                     "Mass Market",
			SourceNote:                     "Data unavailable",
		},
		DemographicData: DemographicData{
			ResidentPopulation: string(FetchUnavailable),
			PlanningArea:       town,
			AgeDistribution:    []DistributionPoint{},
			RaceDistribution:   []DistributionPoint{},
			EmploymentStatus:   []DistributionPoint{},
		},
		DiscoveryLogs: map[string]DiscoveryCategory{
			"tenders":        {Label: "HDB Tender Inventory", Logs: []DiscoveryLog{}},
			"saturation":     {Label: "Retail Mix Saturation", Logs: []DiscoveryLog{}},
			"areaSaturation": {Label: "Area Saturation Analysis", Logs: []DiscoveryLog{}},
			"traffic":        {Label: "Foot Traffic Proxies", Logs: []DiscoveryLog{}},
			"rental":         {Label: "Rental Yield Potential", Logs: []DiscoveryLog{}},
		},
		PulseTimeline:     []PulseEvent{},
		Recommendations:   []Recommendation{},
		ActiveTenders:     []Tender{},
		Sources:           []GroundingSource{},
		MonitoringStarted: now,
		LastScannedAt:     now,
	}
}
