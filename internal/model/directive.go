package model

import "slices"

// Scope of a research directive.
const (
	ScopeFull    = "full"
	ScopePartial = "partial"
)

// ResearchDirective tells the scout stage which categories need re-fetching
// this cycle. Computed fresh by the observer and not persisted beyond the run.
type ResearchDirective struct {
	Scope            string      `json:"scope"`
	Reason           string      `json:"reason"`
	Categories       []string    `json:"categories"`
	WatchItems       []WatchItem `json:"watch_items,omitempty"`
	DaysSinceLastRun int         `json:"days_since_last_run"`
	Timestamp        string      `json:"timestamp"`
}

// Includes reports whether the directive selects the given category.
func (d ResearchDirective) Includes(category string) bool {
	return slices.Contains(d.Categories, category)
}
