package marathon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/heartland-scout/scout-cli/internal/model"
)

const demographicsPrompt = `You are a demographics research agent for Singapore HDB towns.

STRICT DATA INTEGRITY RULES:
1. You MUST use the tool results as your ONLY source of factual data.
2. If a tool returns fetch_status="UNAVAILABLE", report that field as UNAVAILABLE.
   DO NOT estimate, guess, or use your training data as a substitute.
3. If a tool returns fetch_status="VERIFIED", use the data exactly as returned.
4. You MAY provide qualitative analysis and interpretation.
5. You MUST NOT invent quantitative data points.
6. For every number you report, you must cite which tool call produced it.

Your job: Extract demographics and wealth metrics for the given town.
Output a JSON object with:
- wealthMetrics: {medianHouseholdIncome, medianHouseholdIncomePerCapita, privatePropertyRatio, wealthTier, sourceNote, dataSourceUrl}
- demographicData: {residentPopulation, planningArea, ageDistribution, raceDistribution, employmentStatus, dataSourceUrl}
- discoveryLogs: list of {timestamp, action, result} entries documenting your research steps

For wealthTier, classify as: "Mass Market", "Upper Mid", "Affluent", or "Silver Economy"
For distributions, provide [{label, value}] arrays with percentage values.`

const commercialPrompt = `You are a commercial property research agent for Singapore HDB towns.

STRICT DATA INTEGRITY RULES:
1. You MUST use the tool results as your ONLY source of factual data.
2. If a tool returns fetch_status="UNAVAILABLE", report that field as UNAVAILABLE.
   DO NOT estimate, guess, or use your training data as a substitute.
3. If a tool returns fetch_status="VERIFIED", use the data exactly as returned.
4. You MAY provide qualitative analysis and interpretation.
5. You MUST NOT invent quantitative data points.

Your job: Extract commercial property data for the given town.
Output a JSON object with:
- activeTenders: list of {block, street, closingDate, status, areaSqft}
  - status must be OPEN, CLOSED, or AWARDED based on closingDate vs today
- rentalData: {medianRental, trend, dataSourceUrl}
- discoveryLogs: list of {timestamp, action, result} entries

For tender status:
- If closingDate > today: OPEN
- If closingDate < today: CLOSED or AWARDED`

const marketIntelPrompt = `You are a market intelligence agent for Singapore HDB towns.

STRICT DATA INTEGRITY RULES:
1. You MUST use the tool results as your ONLY source of factual data.
2. If a tool returns fetch_status="UNAVAILABLE", report that field as UNAVAILABLE.
   DO NOT estimate, guess, or use your training data as a substitute.
3. If a tool returns fetch_status="VERIFIED", use the data exactly as returned.
4. You MAY provide qualitative analysis and interpretation.
5. You MUST NOT invent quantitative data points.

Your job: Analyze the business landscape for the given town.
Output a JSON object with:
- businessMix: overview of existing businesses by category (F&B, Retail, Services, etc.)
- saturationAnalysis: which categories are saturated vs underserved
- footTrafficEstimate: qualitative assessment based on MRT/bus proximity
- discoveryLogs: list of {timestamp, action, result} entries`

// toolSummary renders the envelopes as the context block fed to an agent
// prompt, with each data preview capped to the budget.
func toolSummary(envelopes []model.Envelope, previewBudget int) string {
	var b strings.Builder
	for _, env := range envelopes {
		preview := "NO DATA"
		if env.Data != "" {
			preview = truncate(env.Data, previewBudget)
		}
		fmt.Fprintf(&b, "\n--- Tool: %s | Status: %s | Error: %s ---\n%s\n",
			env.SourceID, env.FetchStatus, env.Error, preview)
	}
	return b.String()
}

// finding assembles the agent output: the model narrative plus the tool
// envelopes it was grounded on.
func finding(agent, town, narrative string, envelopes []model.Envelope, now time.Time) model.Finding {
	return model.Finding{
		Agent:     agent,
		Town:      town,
		Narrative: narrative,
		Envelopes: envelopes,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

// demographicsAgent fetches and interprets demographics and wealth data.
func (s *Scout) demographicsAgent(ctx context.Context, town string, now time.Time) (model.Finding, error) {
	envelopes := []model.Envelope{
		s.tools.SingstatDemographics(ctx, town),
		s.tools.SingstatIncome(ctx, town),
		s.tools.SearchWeb(ctx, fmt.Sprintf("%s Singapore HDB planning area demographics population income 2024 2025", town)),
	}

	prompt := fmt.Sprintf(`Analyze demographics for %s, Singapore.

Tool results:
%s

Return a JSON object with wealthMetrics, demographicData, and discoveryLogs.
If a tool failed, mark that section's data as best-effort from available tools and note the failure in discoveryLogs.`,
		town, toolSummary(envelopes, s.previewBudget))

	narrative, err := s.llm.Complete(ctx, model.AgentDemographics, demographicsPrompt, prompt)
	if err != nil {
		return model.Finding{}, err
	}
	return finding(model.AgentDemographics, town, narrative, envelopes, now), nil
}

// commercialAgent fetches HDB tenders and URA rental data.
func (s *Scout) commercialAgent(ctx context.Context, town string, now time.Time) (model.Finding, error) {
	envelopes := []model.Envelope{
		s.tools.HDBTenders(ctx, town),
		s.tools.URARental(ctx, town),
		s.tools.SearchWeb(ctx, fmt.Sprintf("%s Singapore HDB commercial tender 2025 2026 rental psf", town)),
	}

	prompt := fmt.Sprintf(`Analyze commercial property data for %s, Singapore. Today is %s.

Tool results:
%s

Return a JSON object with activeTenders, rentalData, and discoveryLogs.
If tools failed, note failures in discoveryLogs and mark data accordingly.`,
		town, now.UTC().Format("2006-01-02"), toolSummary(envelopes, s.previewBudget))

	narrative, err := s.llm.Complete(ctx, model.AgentCommercial, commercialPrompt, prompt)
	if err != nil {
		return model.Finding{}, err
	}
	return finding(model.AgentCommercial, town, narrative, envelopes, now), nil
}

// marketIntelAgent analyzes business mix, saturation, and foot traffic.
func (s *Scout) marketIntelAgent(ctx context.Context, town string, now time.Time) (model.Finding, error) {
	envelopes := []model.Envelope{
		s.tools.SearchWeb(ctx, fmt.Sprintf("%s Singapore HDB shops business directory F&B retail 2025", town)),
		s.tools.SearchWeb(ctx, fmt.Sprintf("%s Singapore MRT station bus interchange foot traffic daily ridership", town)),
		s.tools.SearchWeb(ctx, fmt.Sprintf("%s Singapore new shop openings commercial vacancy rate 2025 2026", town)),
	}

	prompt := fmt.Sprintf(`Analyze business landscape for %s, Singapore.

Tool results:
%s

Return a JSON object with businessMix, saturationAnalysis, footTrafficEstimate, and discoveryLogs.
If tools failed, note failures in discoveryLogs.`,
		town, toolSummary(envelopes, s.previewBudget))

	narrative, err := s.llm.Complete(ctx, model.AgentMarketIntel, marketIntelPrompt, prompt)
	if err != nil {
		return model.Finding{}, err
	}
	return finding(model.AgentMarketIntel, town, narrative, envelopes, now), nil
}
