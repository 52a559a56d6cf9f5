package marathon

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/heartland-scout/scout-cli/internal/model"
)

const strategistPrompt = `You are a strategic investment advisor for Singapore HDB heartlands.
You are called ONLY when significant changes have been detected in the market.

Given the current analysis and the changes detected, update the recommendations
to reflect the new reality. You should:

1. Review existing recommendations against the changes
2. Adjust opportunity scores if warranted
3. Add new recommendations if new opportunities emerged
4. Keep recommendations that are still valid
5. Provide EXACTLY 3 recommendations total

Return a JSON array of 3 recommendation objects, each with:
{
  "businessType": string,
  "category": "F&B"|"Retail"|"Wellness"|"Education"|"Services"|"Other",
  "opportunityScore": number (0-100),
  "thesis": string,
  "gapReason": string,
  "estimatedRental": number,
  "suggestedLocations": [string],
  "businessProfile": {"size": string, "targetAudience": string, "strategy": string, "employees": string},
  "financials": {"upfrontCost": number, "monthlyCost": number, "monthlyRevenueBad": number, "monthlyRevenueAvg": number, "monthlyRevenueGood": number},
  "dataSourceUrl": string
}

Return ONLY valid JSON array, no markdown fences.`

// recommendationContextBudget caps the serialized current recommendations in
// the strategist prompt.
const recommendationContextBudget = 3000

// Strategist re-evaluates recommendations when HIGH-significance changes are
// detected. The analysis is mutated in place; a parse failure leaves the
// recommendations untouched.
type Strategist struct {
	llm LLM
}

// NewStrategist wires the strategist stage.
func NewStrategist(llm LLM) *Strategist {
	return &Strategist{llm: llm}
}

// Run revises the recommendation set against the HIGH deltas. Only a model
// transport failure returns an error.
func (s *Strategist) Run(ctx context.Context, analysis *model.AreaAnalysis, deltas []model.Delta, now time.Time) (string, error) {
	var high []model.Delta
	for _, d := range deltas {
		if d.Significance == model.SignificanceHigh {
			high = append(high, d)
		}
	}
	zap.L().Info("strategist re-evaluating",
		zap.String("town", analysis.Town),
		zap.Int("high_deltas", len(high)),
	)

	highJSON, _ := json.MarshalIndent(high, "", "  ")
	recsJSON, _ := json.MarshalIndent(analysis.Recommendations, "", "  ")

	prompt := fmt.Sprintf(`Town: %s
Current pulse: %s
Wealth tier: %s
Population: %s

SIGNIFICANT CHANGES DETECTED:
%s

CURRENT RECOMMENDATIONS:
%s

Please provide updated recommendations reflecting these changes.`,
		analysis.Town,
		analysis.CommercialPulse,
		analysis.WealthMetrics.WealthTier,
		analysis.DemographicData.ResidentPopulation,
		highJSON,
		truncate(string(recsJSON), recommendationContextBudget),
	)

	raw, err := s.llm.Complete(ctx, "strategist", strategistPrompt, prompt)
	if err != nil {
		return "", err
	}

	var revised []model.Recommendation
	if jerr := json.Unmarshal([]byte(stripFences(raw)), &revised); jerr == nil && len(revised) > 0 {
		if len(revised) > model.NumRecommendations {
			revised = revised[:model.NumRecommendations]
		}
		analysis.Recommendations = revised
	} else {
		// Keep the existing recommendations on parse failure.
		zap.L().Warn("strategist output was not a valid JSON array, keeping recommendations",
			zap.String("town", analysis.Town),
		)
	}

	event := model.PulseEvent{
		Timestamp: now.UTC().Format(time.RFC3339),
		Event:     fmt.Sprintf("Strategy re-evaluated due to %d significant change(s)", len(high)),
		Impact:    "positive",
	}
	analysis.PulseTimeline = append([]model.PulseEvent{event}, analysis.PulseTimeline...)
	if len(analysis.PulseTimeline) > model.MaxTimelineEvents {
		analysis.PulseTimeline = analysis.PulseTimeline[:model.MaxTimelineEvents]
	}

	zap.L().Info("strategist updated recommendations",
		zap.String("town", analysis.Town),
		zap.Int("recommendations", len(analysis.Recommendations)),
	)
	return fmt.Sprintf(" Strategist updated %d recommendations.", len(analysis.Recommendations)), nil
}
