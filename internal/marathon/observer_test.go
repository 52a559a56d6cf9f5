package marathon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartland-scout/scout-cli/internal/model"
)

func TestObserveColdStart(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	d := Observe(nil, now)
	assert.Equal(t, model.ScopeFull, d.Scope)
	assert.Equal(t, "cold_start", d.Reason)
	assert.ElementsMatch(t, []string{
		model.CategoryDemographics,
		model.CategoryTenders,
		model.CategoryRental,
		model.CategoryMarketIntel,
	}, d.Categories)

	// Deterministic for a fixed clock.
	assert.Equal(t, d, Observe(nil, now))
}

func TestObserveFreshKnowledgeBaseOnlyChecksTenders(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	kb := &model.TownKnowledgeBase{
		Town:      "Punggol",
		LastRunAt: now.Add(-24 * time.Hour).Format(time.RFC3339),
	}

	d := Observe(kb, now)
	assert.Equal(t, model.ScopePartial, d.Scope)
	assert.Equal(t, []string{model.CategoryTenders}, d.Categories)
	assert.Equal(t, 1, d.DaysSinceLastRun)
	assert.Contains(t, d.Reason, "tenders: always checked")
}

func TestObserveMarketIntelStaleAtThreeDays(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	kb := &model.TownKnowledgeBase{
		Town:      "Bedok",
		LastRunAt: now.Add(-3 * 24 * time.Hour).Format(time.RFC3339),
	}

	d := Observe(kb, now)
	assert.Equal(t, model.ScopePartial, d.Scope)
	assert.ElementsMatch(t, []string{model.CategoryTenders, model.CategoryMarketIntel}, d.Categories)
	assert.Contains(t, d.Reason, "market_intel: 3d stale (threshold: 3d)")
}

func TestObserveEverythingStaleAtSevenDays(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	kb := &model.TownKnowledgeBase{
		Town:      "Yishun",
		LastRunAt: now.Add(-7 * 24 * time.Hour).Format(time.RFC3339),
	}

	d := Observe(kb, now)
	assert.Equal(t, model.ScopeFull, d.Scope)
	assert.Len(t, d.Categories, 4)
}

func TestObserveUnparsableTimestampTreatedAsStale(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	kb := &model.TownKnowledgeBase{Town: "Hougang", LastRunAt: "not-a-time"}

	d := Observe(kb, now)
	assert.Equal(t, staleSentinel, d.DaysSinceLastRun)
	assert.Equal(t, model.ScopeFull, d.Scope)
	assert.Len(t, d.Categories, 4)
}

func TestObserveStalenessIsMonotonic(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	prev := 0
	for days := range 10 {
		kb := &model.TownKnowledgeBase{
			Town:      "Tampines",
			LastRunAt: now.Add(-time.Duration(days) * 24 * time.Hour).Format(time.RFC3339),
		}
		d := Observe(kb, now)
		require.GreaterOrEqual(t, len(d.Categories), prev,
			"category set must not shrink as staleness grows (day %d)", days)
		prev = len(d.Categories)
	}
}

func TestObserveCarriesWatchItems(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	kb := &model.TownKnowledgeBase{
		Town:       "Clementi",
		LastRunAt:  now.Add(-24 * time.Hour).Format(time.RFC3339),
		WatchItems: []model.WatchItem{{Label: "new mall opening"}},
	}

	d := Observe(kb, now)
	require.Len(t, d.WatchItems, 1)
	assert.Contains(t, d.Reason, "watch_items: 1 active")
}
