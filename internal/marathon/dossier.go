package marathon

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/heartland-scout/scout-cli/internal/model"
)

const dossierSystemPrompt = "You are a business feasibility analyst for Singapore."

const dossierPromptTemplate = `Generate a SINGLE "Strategic Investment Dossier" for a "%s" in "%s", Singapore.

CONTEXT:
- Wealth Tier: %s
- Median Income: %s
- Population: %s

REQUIREMENTS:
- Create a realistic business plan
- Provide financials in SGD
- Classify correctly (F&B, Retail, Wellness, Education, Services, Other)
- Provide a dataSourceUrl for a relevant benchmark

Return ONLY a single JSON object with this structure:
{
  "businessType": string,
  "category": string,
  "opportunityScore": number (0-100),
  "thesis": string,
  "gapReason": string,
  "estimatedRental": number,
  "suggestedLocations": [string],
  "businessProfile": {"size": string, "targetAudience": string, "strategy": string, "employees": string},
  "financials": {"upfrontCost": number, "monthlyCost": number, "monthlyRevenueBad": number, "monthlyRevenueAvg": number, "monthlyRevenueGood": number},
  "dataSourceUrl": string
}

No markdown fences. ONLY valid JSON.`

// webContextBudget caps the web research snippet appended to the dossier
// prompt.
const webContextBudget = 2000

// GenerateDossier produces an on-demand feasibility dossier for a specific
// business type in a town, grounded on the town's current analysis plus one
// web search. A parse failure yields a deterministic fallback object.
func (p *Pipeline) GenerateDossier(ctx context.Context, town, businessType string, analysis *model.AreaAnalysis) (*model.Recommendation, error) {
	zap.L().Info("generating dossier",
		zap.String("town", town),
		zap.String("business_type", businessType),
	)

	prompt := fmt.Sprintf(dossierPromptTemplate,
		businessType, town,
		analysis.WealthMetrics.WealthTier,
		analysis.WealthMetrics.MedianHouseholdIncome,
		analysis.DemographicData.ResidentPopulation,
	)

	web := p.tools.SearchWeb(ctx, fmt.Sprintf("%s %s Singapore feasibility cost revenue 2025 2026", businessType, town))
	if web.OK() {
		prompt += "\n\nWeb research context:\n" + truncate(web.Data, webContextBudget)
	}

	raw, err := p.llm.Complete(ctx, "dossier", dossierSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var dossier model.Recommendation
	if jerr := json.Unmarshal([]byte(stripFences(raw)), &dossier); jerr != nil {
		zap.L().Warn("dossier output was not valid JSON, using fallback",
			zap.String("town", town),
			zap.String("business_type", businessType),
		)
		return fallbackDossier(town, businessType), nil
	}

	zap.L().Info("dossier complete",
		zap.String("town", town),
		zap.String("business_type", businessType),
		zap.Float64("opportunity_score", dossier.OpportunityScore),
	)
	return &dossier, nil
}

func fallbackDossier(town, businessType string) *model.Recommendation {
	return &model.Recommendation{
		BusinessType:       businessType,
		Category:           "Other",
		OpportunityScore:   50,
		Thesis:             fmt.Sprintf("Unable to generate detailed analysis for %s in %s", businessType, town),
		GapReason:          "Analysis generation failed",
		SuggestedLocations: []string{town},
		BusinessProfile: model.BusinessProfile{
			Size:           "TBD",
			TargetAudience: "TBD",
			Strategy:       "TBD",
			Employees:      "TBD",
		},
	}
}
