package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/heartland-scout/scout-cli/internal/model"
)

func TestWriteWorkbook(t *testing.T) {
	kbs := []model.TownKnowledgeBase{
		{
			Town:            "Punggol",
			TotalRuns:       3,
			LastRunAt:       "2026-08-25T10:00:00Z",
			MarathonStarted: "2026-08-01T00:00:00Z",
			Confidence:      map[string]float64{model.CategoryTenders: 0.6},
			CurrentAnalysis: model.AreaAnalysis{
				Town:            "Punggol",
				CommercialPulse: "Steady",
				WealthMetrics:   model.WealthMetrics{WealthTier: "Mass Market", MedianHouseholdIncome: "S$8,000"},
				DemographicData: model.DemographicData{ResidentPopulation: "180,000"},
				Recommendations: []model.Recommendation{
					{BusinessType: "Bakery", Category: "F&B", OpportunityScore: 82.5},
				},
				ActiveTenders: []model.Tender{
					{Block: "201A", Street: "Punggol Field", Status: "Open", AreaSqft: 850},
				},
			},
			Changelog: []model.Delta{
				{Date: "2026-08-25", Category: model.CategoryTenders, Change: "Tender data refreshed", Significance: model.SignificanceMedium, TrendDirection: model.TrendStable},
			},
		},
	}
	runs := []model.Run{
		{
			ID:        "run-1",
			Town:      "Punggol",
			Status:    model.RunStatusCompleted,
			CreatedAt: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
			Result:    &model.RunResult{Summary: "Run #3 complete.", DeltaCount: 2, VerifiedCalls: 8, FailedCalls: 1, DurationMS: 45000},
		},
		{
			ID:        "run-2",
			Town:      "Punggol",
			Status:    model.RunStatusFailed,
			CreatedAt: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
			Error:     "llm transport failure",
		},
	}

	path := filepath.Join(t.TempDir(), "scout.xlsx")
	require.NoError(t, WriteWorkbook(path, kbs, runs))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	for _, name := range []string{SheetTowns, SheetRecommendations, SheetTenders, SheetChangelog, SheetRuns} {
		_, ok := f.Sheet[name]
		require.True(t, ok, "missing sheet %s", name)
	}

	towns := f.Sheet[SheetTowns]
	require.Len(t, towns.Rows, 2)
	assert.Equal(t, "Punggol", towns.Rows[1].Cells[0].String())
	assert.Equal(t, "3", towns.Rows[1].Cells[1].String())
	assert.Equal(t, "tenders=0.6", towns.Rows[1].Cells[8].String())

	recs := f.Sheet[SheetRecommendations]
	require.Len(t, recs.Rows, 2)
	assert.Equal(t, "Bakery", recs.Rows[1].Cells[1].String())

	runsSheet := f.Sheet[SheetRuns]
	require.Len(t, runsSheet.Rows, 3)
	assert.Equal(t, "Run #3 complete.", runsSheet.Rows[1].Cells[4].String())
	assert.Equal(t, "llm transport failure", runsSheet.Rows[2].Cells[10].String())
}

func TestWriteWorkbookEmptyState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteWorkbook(path, nil, nil))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	assert.Len(t, f.Sheets, 5)
}
