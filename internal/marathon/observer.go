package marathon

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/heartland-scout/scout-cli/internal/model"
)

// staleSentinel stands in for days-since-last-run when the stored timestamp
// is missing or unparsable, making every category stale.
const staleSentinel = 999

// Staleness thresholds in days per category. Tenders are fast-moving and
// always rechecked.
const (
	demographicsStaleDays = 7
	rentalStaleDays       = 7
	marketIntelStaleDays  = 3
)

// Observe decides what the scout stage should investigate this cycle. Pure
// function of the knowledge base and wall-clock time.
func Observe(kb *model.TownKnowledgeBase, now time.Time) model.ResearchDirective {
	if kb == nil {
		return model.ResearchDirective{
			Scope:  model.ScopeFull,
			Reason: "cold_start",
			Categories: []string{
				model.CategoryDemographics,
				model.CategoryTenders,
				model.CategoryRental,
				model.CategoryMarketIntel,
			},
			Timestamp: now.UTC().Format(time.RFC3339),
		}
	}

	daysSince := staleSentinel
	if last, err := time.Parse(time.RFC3339, kb.LastRunAt); err == nil {
		daysSince = int(now.Sub(last).Hours() / 24)
	}

	var categories []string
	var reasons []string

	categories = append(categories, model.CategoryTenders)
	reasons = append(reasons, "tenders: always checked")

	if daysSince >= demographicsStaleDays {
		categories = append(categories, model.CategoryDemographics)
		reasons = append(reasons, fmt.Sprintf("demographics: %dd stale (threshold: %dd)", daysSince, demographicsStaleDays))
	}
	if daysSince >= rentalStaleDays {
		categories = append(categories, model.CategoryRental)
		reasons = append(reasons, fmt.Sprintf("rental: %dd stale (threshold: %dd)", daysSince, rentalStaleDays))
	}
	if daysSince >= marketIntelStaleDays {
		categories = append(categories, model.CategoryMarketIntel)
		reasons = append(reasons, fmt.Sprintf("market_intel: %dd stale (threshold: %dd)", daysSince, marketIntelStaleDays))
	}

	if len(kb.WatchItems) > 0 {
		reasons = append(reasons, fmt.Sprintf("watch_items: %d active", len(kb.WatchItems)))
	}

	scope := model.ScopePartial
	if len(categories) >= 3 {
		scope = model.ScopeFull
	}

	zap.L().Info("observer directive",
		zap.String("town", kb.Town),
		zap.String("scope", scope),
		zap.Strings("categories", categories),
		zap.Int("days_since_last_run", daysSince),
	)

	return model.ResearchDirective{
		Scope:            scope,
		Reason:           strings.Join(reasons, "; "),
		Categories:       categories,
		WatchItems:       kb.WatchItems,
		DaysSinceLastRun: daysSince,
		Timestamp:        now.UTC().Format(time.RFC3339),
	}
}
