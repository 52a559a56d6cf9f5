package marathon

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartland-scout/scout-cli/internal/model"
)

func testIntegrateInput(kb *model.TownKnowledgeBase) IntegrateInput {
	return IntegrateInput{
		RunID: "run-test",
		Town:  "Punggol",
		KB:    kb,
		Findings: []model.Finding{
			{Agent: model.AgentDemographics, Narrative: "population steady"},
		},
		Now: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
	}
}

func TestIntegratorHappyPath(t *testing.T) {
	llm := &fakeLLM{responses: map[string]string{"integrator": validAnalysisJSON}}
	g := NewIntegrator(llm, 0, nil)

	analysis, kb, summary, err := g.Run(context.Background(), testIntegrateInput(nil))
	require.NoError(t, err)

	assert.Equal(t, "Punggol", analysis.Town)
	assert.Equal(t, "Steady demand around the town centre", analysis.CommercialPulse)
	assert.NotEmpty(t, analysis.MonitoringStarted)
	assert.NotEmpty(t, analysis.LastScannedAt)

	assert.Equal(t, 1, kb.TotalRuns)
	assert.Equal(t, analysis.LastScannedAt, kb.LastRunAt)
	assert.Contains(t, summary, "Run #1 complete.")
}

func TestIntegratorFencedOutputStillParses(t *testing.T) {
	llm := &fakeLLM{responses: map[string]string{
		"integrator": "```json\n" + validAnalysisJSON + "\n```",
	}}
	g := NewIntegrator(llm, 0, nil)

	analysis, _, _, err := g.Run(context.Background(), testIntegrateInput(nil))
	require.NoError(t, err)
	assert.Equal(t, "Steady demand around the town centre", analysis.CommercialPulse)
}

func TestIntegratorParseFailureFallsBackToPriorAnalysis(t *testing.T) {
	llm := &fakeLLM{responses: map[string]string{"integrator": "Sorry, I had trouble with that."}}
	g := NewIntegrator(llm, 0, nil)

	kb := &model.TownKnowledgeBase{
		Town:            "Punggol",
		MarathonStarted: "2026-08-01T00:00:00Z",
		TotalRuns:       3,
		CurrentAnalysis: model.AreaAnalysis{
			Town:            "Punggol",
			CommercialPulse: "Quiet quarter",
		},
	}

	analysis, newKB, _, err := g.Run(context.Background(), testIntegrateInput(kb))
	require.NoError(t, err)
	assert.Equal(t, "[Integration error - using previous analysis] Quiet quarter", analysis.CommercialPulse)
	assert.Equal(t, "2026-08-01T00:00:00Z", analysis.MonitoringStarted)
	assert.Equal(t, 4, newKB.TotalRuns)
}

func TestIntegratorParseFailureColdStartUsesEmptyShape(t *testing.T) {
	llm := &fakeLLM{responses: map[string]string{"integrator": "not json"}}
	g := NewIntegrator(llm, 0, nil)

	analysis, kb, _, err := g.Run(context.Background(), testIntegrateInput(nil))
	require.NoError(t, err)
	assert.Contains(t, analysis.CommercialPulse, "Analysis pending")
	assert.Empty(t, analysis.Recommendations)
	assert.Equal(t, 1, kb.TotalRuns)
}

func TestIntegratorTruncatesExcessRecommendations(t *testing.T) {
	llm := &fakeLLM{responses: map[string]string{"integrator": `{
		"commercialPulse": "busy",
		"recommendations": [
			{"businessType": "a"}, {"businessType": "b"},
			{"businessType": "c"}, {"businessType": "d"}, {"businessType": "e"}
		]
	}`}}
	g := NewIntegrator(llm, 0, nil)

	analysis, _, _, err := g.Run(context.Background(), testIntegrateInput(nil))
	require.NoError(t, err)
	assert.Len(t, analysis.Recommendations, model.NumRecommendations)
}

func TestIntegratorTransportFailurePropagates(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("connection reset")}
	g := NewIntegrator(llm, 0, nil)

	_, _, _, err := g.Run(context.Background(), testIntegrateInput(nil))
	require.Error(t, err)
}

func TestMergeSourcesDedupesAndCaps(t *testing.T) {
	var existing, fresh []model.GroundingSource
	for i := range 15 {
		existing = append(existing, model.GroundingSource{
			Title: fmt.Sprintf("old-%d", i),
			URI:   fmt.Sprintf("https://example.org/%d", i),
		})
	}
	// Ten duplicates of the existing ones plus ten new.
	for i := range 20 {
		fresh = append(fresh, model.GroundingSource{
			Title: fmt.Sprintf("new-%d", i),
			URI:   fmt.Sprintf("https://example.org/%d", i+5),
		})
	}
	fresh = append(fresh, model.GroundingSource{Title: "blank", URI: ""})

	merged := mergeSources(existing, fresh)
	assert.Len(t, merged, model.MaxSources)

	seen := map[string]bool{}
	for _, s := range merged {
		require.NotEmpty(t, s.URI)
		require.False(t, seen[s.URI], "duplicate URI %s", s.URI)
		seen[s.URI] = true
	}
	// First occurrence wins.
	assert.Equal(t, "old-5", merged[5].Title)
}

func TestBuildKnowledgeBaseConfidence(t *testing.T) {
	g := NewIntegrator(&fakeLLM{}, 0, nil)

	in := testIntegrateInput(&model.TownKnowledgeBase{
		Town:       "Punggol",
		TotalRuns:  1,
		Confidence: map[string]float64{model.CategoryTenders: 0.95, model.CategoryRental: 0.05},
	})
	in.Verification = model.VerificationReport{
		Categories: map[string]model.CategoryVerdict{
			model.CategoryTenders:      {Status: model.FetchVerified},
			model.CategoryRental:       {Status: model.FetchUnavailable},
			model.CategoryDemographics: {Status: model.FetchVerified},
		},
	}

	kb := g.buildKnowledgeBase(in, model.AreaAnalysis{}, "2026-08-25T10:00:00Z")
	assert.InDelta(t, 1.0, kb.Confidence[model.CategoryTenders], 1e-9, "clamped at 1.0")
	assert.InDelta(t, 0.0, kb.Confidence[model.CategoryRental], 1e-9, "clamped at 0.0")
	assert.InDelta(t, model.DefaultConfidence+0.1, kb.Confidence[model.CategoryDemographics], 1e-9,
		"unseen category starts at the default")
}

func TestBuildKnowledgeBaseChangelogCap(t *testing.T) {
	g := NewIntegrator(&fakeLLM{}, 0, nil)

	prior := make([]model.Delta, model.MaxChangelog)
	for i := range prior {
		prior[i] = model.Delta{Change: fmt.Sprintf("old-%d", i), Significance: model.SignificanceHigh}
	}
	in := testIntegrateInput(&model.TownKnowledgeBase{Town: "Punggol", TotalRuns: 1, Changelog: prior})
	in.Deltas = []model.Delta{
		{Change: "big", Significance: model.SignificanceHigh},
		{Change: "medium", Significance: model.SignificanceMedium},
		{Change: "small", Significance: model.SignificanceLow},
		{Change: "noise", Significance: model.SignificanceNoise},
	}

	kb := g.buildKnowledgeBase(in, model.AreaAnalysis{}, "2026-08-25T10:00:00Z")
	require.Len(t, kb.Changelog, model.MaxChangelog, "capped, oldest dropped")
	assert.Equal(t, "old-2", kb.Changelog[0].Change)
	assert.Equal(t, "medium", kb.Changelog[model.MaxChangelog-1].Change)
	// LOW and NOISE never enter the changelog.
	for _, d := range kb.Changelog {
		assert.NotEqual(t, "small", d.Change)
		assert.NotEqual(t, "noise", d.Change)
	}
}

func TestBuildKnowledgeBaseHistories(t *testing.T) {
	g := NewIntegrator(&fakeLLM{}, 0, nil)

	in := testIntegrateInput(nil)
	analysis := model.AreaAnalysis{
		ActiveTenders: []model.Tender{{Block: "1"}, {Block: "2"}},
		Recommendations: []model.Recommendation{
			{OpportunityScore: 80, EstimatedRental: 5200},
			{OpportunityScore: 60, EstimatedRental: 3800},
			{OpportunityScore: 70},
		},
	}

	kb := g.buildKnowledgeBase(in, analysis, "2026-08-25T10:00:00Z")
	require.Len(t, kb.TenderHistory, 1)
	assert.Equal(t, "2026-08-25", kb.TenderHistory[0].Date)
	assert.InDelta(t, 2, kb.TenderHistory[0].Value, 1e-9)

	// Median over the two recommendations that carry a rental estimate.
	require.Len(t, kb.RentalHistory, 1)
	assert.InDelta(t, 5200, kb.RentalHistory[0].Value, 1e-9)

	require.Len(t, kb.RecommendationHistory, 1)
	assert.InDelta(t, 70, kb.RecommendationHistory[0].Value, 1e-9)
}

func TestBuildKnowledgeBaseHistoryCap(t *testing.T) {
	g := NewIntegrator(&fakeLLM{}, 0, nil)

	prior := make([]model.HistoryPoint, model.MaxHistory)
	for i := range prior {
		prior[i] = model.HistoryPoint{Date: "2026-01-01", Value: float64(i + 10)}
	}
	in := testIntegrateInput(&model.TownKnowledgeBase{
		Town:          "Punggol",
		TenderHistory: prior,
	})
	analysis := model.AreaAnalysis{ActiveTenders: []model.Tender{{Block: "1"}}}

	kb := g.buildKnowledgeBase(in, analysis, "2026-08-25T10:00:00Z")
	require.Len(t, kb.TenderHistory, model.MaxHistory)
	assert.InDelta(t, 1, kb.TenderHistory[model.MaxHistory-1].Value, 1e-9)
	assert.InDelta(t, 11, kb.TenderHistory[0].Value, 1e-9)
}
