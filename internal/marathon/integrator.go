package marathon

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/heartland-scout/scout-cli/internal/model"
	"github.com/heartland-scout/scout-cli/internal/progress"
)

const integratorPrompt = `You are a knowledge integration agent. Your job is to synthesize raw agent outputs
into a complete AreaAnalysis JSON object that matches this exact structure:

{
  "town": string,
  "commercialPulse": string (1-2 sentence summary of commercial outlook),
  "demographicsFocus": string (primary target demographic segment),
  "wealthMetrics": {
    "medianHouseholdIncome": string,
    "medianHouseholdIncomePerCapita": string,
    "privatePropertyRatio": string,
    "wealthTier": "Mass Market" | "Upper Mid" | "Affluent" | "Silver Economy",
    "sourceNote": string,
    "dataSourceUrl": string
  },
  "demographicData": {
    "residentPopulation": string,
    "planningArea": string,
    "ageDistribution": [{"label": string, "value": number}],
    "raceDistribution": [{"label": string, "value": number}],
    "employmentStatus": [{"label": string, "value": number}],
    "dataSourceUrl": string
  },
  "discoveryLogs": {
    "tenders": {"label": string, "logs": [{"timestamp": string, "action": string, "result": string}]},
    "saturation": {"label": string, "logs": [...]},
    "areaSaturation": {"label": string, "logs": [...]},
    "traffic": {"label": string, "logs": [...]},
    "rental": {"label": string, "logs": [...]}
  },
  "pulseTimeline": [{"timestamp": string, "event": string, "impact": "positive"|"negative"|"neutral"}],
  "recommendations": [{
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
  }],
  "activeTenders": [{"block": string, "street": string, "closingDate": string, "status": string, "areaSqft": number}],
  "sources": [{"title": string, "uri": string}]
}

RULES:
1. Provide EXACTLY 3 recommendations
2. All financial values in SGD
3. If data was UNAVAILABLE from tools, use reasonable defaults and note it
4. Merge previous analysis with new findings when a knowledge base exists
5. Return ONLY valid JSON, no markdown fences`

// Budgets applied when assembling the integrator context.
const (
	defaultNarrativeBudget = 3000
	reportBudget           = 1000
)

// Integrator merges agent outputs into a coherent AreaAnalysis and produces
// the fully replaced knowledge base for the cycle.
type Integrator struct {
	llm             LLM
	narrativeBudget int
	sink            progress.Sink
}

// NewIntegrator wires the integration stage.
func NewIntegrator(llm LLM, narrativeBudget int, sink progress.Sink) *Integrator {
	if sink == nil {
		sink = progress.NopSink{}
	}
	if narrativeBudget <= 0 {
		narrativeBudget = defaultNarrativeBudget
	}
	return &Integrator{llm: llm, narrativeBudget: narrativeBudget, sink: sink}
}

// IntegrateInput carries everything the integrator consumes for one cycle.
type IntegrateInput struct {
	RunID        string
	Town         string
	KB           *model.TownKnowledgeBase
	Findings     []model.Finding
	Sources      []model.GroundingSource
	Verification model.VerificationReport
	Deltas       []model.Delta
	Now          time.Time
}

// Run synthesizes the analysis and builds the replacement knowledge base.
// JSON-parse failure of the model output is a handled condition that falls
// back to the prior analysis; only a transport failure returns an error.
func (g *Integrator) Run(ctx context.Context, in IntegrateInput) (*model.AreaAnalysis, *model.TownKnowledgeBase, string, error) {
	now := in.Now.UTC().Format(time.RFC3339)
	totalRuns := 1
	if in.KB != nil {
		totalRuns = in.KB.TotalRuns + 1
	}
	zap.L().Info("integrator merging",
		zap.String("town", in.Town),
		zap.Int("run", totalRuns),
	)
	g.sink.Publish(in.RunID, progress.Event{
		Type:    progress.EventAgentLog,
		Stage:   "knowledge_integrator",
		Message: fmt.Sprintf("Merging agent outputs for %s (run #%d)...", in.Town, totalRuns),
	})

	raw, err := g.llm.Complete(ctx, "integrator", integratorPrompt, g.buildContext(in))
	if err != nil {
		return nil, nil, "", err
	}

	analysis := g.parseAnalysis(raw, in)

	analysis.Town = in.Town
	if analysis.MonitoringStarted == "" {
		if in.KB != nil && in.KB.MarathonStarted != "" {
			analysis.MonitoringStarted = in.KB.MarathonStarted
		} else {
			analysis.MonitoringStarted = now
		}
	}
	analysis.LastScannedAt = now

	analysis.Sources = mergeSources(analysis.Sources, in.Sources)
	if len(analysis.Recommendations) > model.NumRecommendations {
		analysis.Recommendations = analysis.Recommendations[:model.NumRecommendations]
	}

	kb := g.buildKnowledgeBase(in, analysis, now)

	summary := fmt.Sprintf("Run #%d complete. %d deltas detected. Verification: %d verified, %d failed.",
		kb.TotalRuns, len(in.Deltas), in.Verification.VerifiedCount, in.Verification.FailedCount)

	zap.L().Info("knowledge base merged",
		zap.String("town", in.Town),
		zap.Int("run", kb.TotalRuns),
		zap.Int("recommendations", len(analysis.Recommendations)),
	)
	g.sink.Publish(in.RunID, progress.Event{
		Type:    progress.EventAgentLog,
		Stage:   "knowledge_integrator",
		Message: fmt.Sprintf("Analysis: %d recommendations", len(analysis.Recommendations)),
		Preview: truncate(analysis.CommercialPulse, 200),
	})

	return &analysis, kb, summary, nil
}

// buildContext assembles the single prompt fed to the model.
func (g *Integrator) buildContext(in IntegrateInput) string {
	parts := []string{
		"Town: " + in.Town,
		"Date: " + in.Now.UTC().Format("2006-01-02"),
	}

	if in.KB != nil {
		parts = append(parts,
			fmt.Sprintf("Previous analysis exists (run #%d)", in.KB.TotalRuns),
			"Previous pulse: "+in.KB.CurrentAnalysis.CommercialPulse,
		)
	}

	for _, f := range in.Findings {
		narrative := f.Narrative
		if narrative == "" {
			narrative = "NO RESPONSE"
		}
		parts = append(parts, fmt.Sprintf("\n=== %s AGENT ===\n%s",
			strings.ToUpper(f.Agent), truncate(narrative, g.narrativeBudget)))
	}

	vr, _ := json.MarshalIndent(in.Verification, "", "  ")
	parts = append(parts, "\n=== VERIFICATION REPORT ===\n"+truncate(string(vr), reportBudget))

	dj, _ := json.MarshalIndent(in.Deltas, "", "  ")
	parts = append(parts, "\n=== DELTAS ===\n"+truncate(string(dj), reportBudget))

	return strings.Join(parts, "\n")
}

// parseAnalysis decodes the model output, falling back to the prior analysis
// or the empty placeholder shape when the output is not valid JSON.
func (g *Integrator) parseAnalysis(raw string, in IntegrateInput) model.AreaAnalysis {
	var analysis model.AreaAnalysis
	if err := json.Unmarshal([]byte(stripFences(raw)), &analysis); err == nil {
		return analysis
	}

	zap.L().Warn("integrator output was not valid JSON, falling back",
		zap.String("town", in.Town),
	)
	if in.KB != nil {
		analysis = in.KB.CurrentAnalysis
		analysis.CommercialPulse = "[Integration error - using previous analysis] " + analysis.CommercialPulse
		return analysis
	}
	return model.EmptyAnalysis(in.Town, in.Now.UTC().Format(time.RFC3339))
}

// mergeSources concatenates existing and new sources, dedupes by URI with
// first occurrence winning, and caps the list.
func mergeSources(existing, fresh []model.GroundingSource) []model.GroundingSource {
	seen := make(map[string]bool)
	var out []model.GroundingSource
	for _, s := range append(append([]model.GroundingSource{}, existing...), fresh...) {
		if s.URI == "" || seen[s.URI] {
			continue
		}
		seen[s.URI] = true
		out = append(out, s)
		if len(out) == model.MaxSources {
			break
		}
	}
	return out
}

// buildKnowledgeBase produces the full replacement KB for the cycle,
// updating confidence, changelog, and metric histories.
func (g *Integrator) buildKnowledgeBase(in IntegrateInput, analysis model.AreaAnalysis, now string) *model.TownKnowledgeBase {
	kb := &model.TownKnowledgeBase{
		Town:            in.Town,
		MarathonStarted: now,
		TotalRuns:       1,
		LastRunAt:       now,
		CurrentAnalysis: analysis,
		Confidence:      make(map[string]float64),
	}
	if in.KB != nil {
		if in.KB.MarathonStarted != "" {
			kb.MarathonStarted = in.KB.MarathonStarted
		}
		kb.TotalRuns = in.KB.TotalRuns + 1
		kb.WatchItems = in.KB.WatchItems
		kb.Changelog = in.KB.Changelog
		kb.RentalHistory = in.KB.RentalHistory
		kb.TenderHistory = in.KB.TenderHistory
		kb.BusinessMixHistory = in.KB.BusinessMixHistory
		kb.RecommendationHistory = in.KB.RecommendationHistory
		for k, v := range in.KB.Confidence {
			kb.Confidence[k] = v
		}
	}

	for cat, verdict := range in.Verification.Categories {
		c, ok := kb.Confidence[cat]
		if !ok {
			c = model.DefaultConfidence
		}
		switch verdict.Status {
		case model.FetchVerified:
			c = min(1.0, c+0.1)
		case model.FetchUnavailable:
			c = max(0.0, c-0.1)
		}
		kb.Confidence[cat] = c
	}

	for _, d := range in.Deltas {
		if d.Significance == model.SignificanceHigh || d.Significance == model.SignificanceMedium {
			kb.Changelog = append(kb.Changelog, d)
		}
	}
	if len(kb.Changelog) > model.MaxChangelog {
		kb.Changelog = kb.Changelog[len(kb.Changelog)-model.MaxChangelog:]
	}

	date := now[:10]
	kb.TenderHistory = append(kb.TenderHistory, model.HistoryPoint{
		Date:  date,
		Value: float64(len(analysis.ActiveTenders)),
		Note:  "active tenders",
	})
	rents := make([]float64, 0, len(analysis.Recommendations))
	for _, r := range analysis.Recommendations {
		if r.EstimatedRental > 0 {
			rents = append(rents, r.EstimatedRental)
		}
	}
	if len(rents) > 0 {
		sort.Float64s(rents)
		kb.RentalHistory = append(kb.RentalHistory, model.HistoryPoint{
			Date:  date,
			Value: rents[len(rents)/2],
			Note:  "median estimated rental",
		})
	}
	if n := len(analysis.Recommendations); n > 0 {
		var total float64
		for _, r := range analysis.Recommendations {
			total += r.OpportunityScore
		}
		kb.RecommendationHistory = append(kb.RecommendationHistory, model.HistoryPoint{
			Date:  date,
			Value: total / float64(n),
			Note:  "mean opportunity score",
		})
	}
	kb.TenderHistory = capHistory(kb.TenderHistory)
	kb.RentalHistory = capHistory(kb.RentalHistory)
	kb.RecommendationHistory = capHistory(kb.RecommendationHistory)

	return kb
}

func capHistory(h []model.HistoryPoint) []model.HistoryPoint {
	if len(h) > model.MaxHistory {
		return h[len(h)-model.MaxHistory:]
	}
	return h
}
