package marathon

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/heartland-scout/scout-cli/internal/model"
)

// DetectDeltas compares this cycle's findings against the knowledge base and
// classifies what changed. The refreshed signals are deliberately coarse:
// presence of a new narrative, not field-level diffing. The returned list is
// never empty.
func DetectDeltas(kb *model.TownKnowledgeBase, findings []model.Finding, failures []model.FetchFailure, now time.Time) []model.Delta {
	ts := now.UTC().Format(time.RFC3339)
	var deltas []model.Delta

	// Cold start: everything is new.
	if kb == nil {
		return []model.Delta{{
			Date:           ts,
			Category:       model.CategoryAll,
			Change:         "Initial analysis - cold start",
			Significance:   model.SignificanceHigh,
			TrendDirection: model.TrendNew,
		}}
	}

	prior := kb.CurrentAnalysis

	for _, f := range findings {
		if f.Narrative == "" {
			continue
		}
		switch f.Agent {
		case model.AgentDemographics:
			if prior.DemographicData.ResidentPopulation != "" {
				deltas = append(deltas, model.Delta{
					Date:           ts,
					Category:       model.CategoryDemographics,
					Change:         "Demographics data refreshed",
					Significance:   model.SignificanceLow,
					TrendDirection: model.TrendStable,
				})
			}
		case model.AgentCommercial:
			deltas = append(deltas, model.Delta{
				Date:           ts,
				Category:       model.CategoryTenders,
				Change:         fmt.Sprintf("Tender data refreshed (previously %d tenders)", len(prior.ActiveTenders)),
				Significance:   model.SignificanceMedium,
				TrendDirection: model.TrendStable,
			})
		case model.AgentMarketIntel:
			deltas = append(deltas, model.Delta{
				Date:           ts,
				Category:       model.CategoryMarketIntel,
				Change:         "Market intelligence refreshed",
				Significance:   model.SignificanceLow,
				TrendDirection: model.TrendStable,
			})
		}
	}

	for _, failure := range failures {
		deltas = append(deltas, model.Delta{
			Date:           ts,
			Category:       model.CategoryDataQuality,
			Change:         fmt.Sprintf("Data source failed: %s - %s", failure.SourceID, failure.Error),
			Significance:   model.SignificanceMedium,
			TrendDirection: model.TrendDeclining,
		})
	}

	if len(deltas) == 0 {
		deltas = append(deltas, model.Delta{
			Date:           ts,
			Category:       model.CategoryAll,
			Change:         "No significant changes detected",
			Significance:   model.SignificanceNoise,
			TrendDirection: model.TrendStable,
		})
	}

	var high, med, low int
	for _, d := range deltas {
		switch d.Significance {
		case model.SignificanceHigh:
			high++
		case model.SignificanceMedium:
			med++
		case model.SignificanceLow:
			low++
		}
	}
	zap.L().Info("deltas detected",
		zap.Int("total", len(deltas)),
		zap.Int("high", high),
		zap.Int("medium", med),
		zap.Int("low", low),
	)

	return deltas
}
