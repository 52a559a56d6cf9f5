package model

// Significance tiers for detected changes.
type Significance string

const (
	SignificanceHigh   Significance = "HIGH"
	SignificanceMedium Significance = "MEDIUM"
	SignificanceLow    Significance = "LOW"
	SignificanceNoise  Significance = "NOISE"
)

// TrendDirection describes which way a changed metric is moving.
type TrendDirection string

const (
	TrendImproving TrendDirection = "IMPROVING"
	TrendDeclining TrendDirection = "DECLINING"
	TrendStable    TrendDirection = "STABLE"
	TrendNew       TrendDirection = "NEW"
)

// Delta is one classified change between two cycles.
type Delta struct {
	Date           string         `json:"date"`
	Category       string         `json:"category"`
	Change         string         `json:"change"`
	Significance   Significance   `json:"significance"`
	TrendDirection TrendDirection `json:"trend_direction"`
}

// HasHigh reports whether any delta in the list is HIGH significance. The
// strategist stage runs iff this is true.
func HasHigh(deltas []Delta) bool {
	for _, d := range deltas {
		if d.Significance == SignificanceHigh {
			return true
		}
	}
	return false
}

// WatchItem is a caller-planted item the observer carries through each cycle.
type WatchItem struct {
	Label string `json:"label"`
	Note  string `json:"note,omitempty"`
	Added string `json:"added,omitempty"`
}

// HistoryPoint is one dated observation in a per-town metric history.
type HistoryPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	Note  string  `json:"note,omitempty"`
}

// DefaultConfidence is the starting confidence for an unseen category.
const DefaultConfidence = 0.3

// TownKnowledgeBase is the durable per-town aggregate. It is read at the
// start of a cycle and fully replaced at the end; it is never mutated in
// place mid-cycle.
type TownKnowledgeBase struct {
	Town                  string             `json:"town"`
	MarathonStarted       string             `json:"marathon_started"`
	TotalRuns             int                `json:"total_runs"`
	LastRunAt             string             `json:"last_run_at"`
	CurrentAnalysis       AreaAnalysis       `json:"current_analysis"`
	Confidence            map[string]float64 `json:"confidence"`
	Changelog             []Delta            `json:"changelog"`
	WatchItems            []WatchItem        `json:"watch_items"`
	RentalHistory         []HistoryPoint     `json:"rental_history"`
	TenderHistory         []HistoryPoint     `json:"tender_history"`
	BusinessMixHistory    []HistoryPoint     `json:"business_mix_history"`
	RecommendationHistory []HistoryPoint     `json:"recommendation_history"`
}
