// Package export writes knowledge bases and run history to an XLSX workbook
// for offline analysis.
package export

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/heartland-scout/scout-cli/internal/model"
)

// Workbook sheet names.
const (
	SheetTowns           = "Towns"
	SheetRecommendations = "Recommendations"
	SheetTenders         = "Active Tenders"
	SheetChangelog       = "Changelog"
	SheetRuns            = "Runs"
)

// WriteWorkbook writes the full research state to an XLSX file at path.
func WriteWorkbook(path string, kbs []model.TownKnowledgeBase, runs []model.Run) error {
	f := xlsx.NewFile()

	if err := writeTownsSheet(f, kbs); err != nil {
		return err
	}
	if err := writeRecommendationsSheet(f, kbs); err != nil {
		return err
	}
	if err := writeTendersSheet(f, kbs); err != nil {
		return err
	}
	if err := writeChangelogSheet(f, kbs); err != nil {
		return err
	}
	if err := writeRunsSheet(f, runs); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save workbook %s", path)
	}
	zap.L().Info("workbook exported",
		zap.String("path", path),
		zap.Int("towns", len(kbs)),
		zap.Int("runs", len(runs)),
	)
	return nil
}

func addHeader(sheet *xlsx.Sheet, cols ...string) {
	row := sheet.AddRow()
	for _, c := range cols {
		row.AddCell().SetString(c)
	}
}

func writeTownsSheet(f *xlsx.File, kbs []model.TownKnowledgeBase) error {
	sheet, err := f.AddSheet(SheetTowns)
	if err != nil {
		return eris.Wrap(err, "export: add towns sheet")
	}
	addHeader(sheet,
		"Town", "Total Runs", "Last Run", "Monitoring Since",
		"Commercial Pulse", "Wealth Tier", "Median Income", "Population",
		"Confidence",
	)

	for _, kb := range kbs {
		a := kb.CurrentAnalysis
		row := sheet.AddRow()
		row.AddCell().SetString(kb.Town)
		row.AddCell().SetInt(kb.TotalRuns)
		row.AddCell().SetString(kb.LastRunAt)
		row.AddCell().SetString(kb.MarathonStarted)
		row.AddCell().SetString(a.CommercialPulse)
		row.AddCell().SetString(a.WealthMetrics.WealthTier)
		row.AddCell().SetString(a.WealthMetrics.MedianHouseholdIncome)
		row.AddCell().SetString(a.DemographicData.ResidentPopulation)
		row.AddCell().SetString(formatConfidence(kb.Confidence))
	}
	return nil
}

func writeRecommendationsSheet(f *xlsx.File, kbs []model.TownKnowledgeBase) error {
	sheet, err := f.AddSheet(SheetRecommendations)
	if err != nil {
		return eris.Wrap(err, "export: add recommendations sheet")
	}
	addHeader(sheet,
		"Town", "Business Type", "Category", "Opportunity Score",
		"Thesis", "Gap Reason", "Est. Rental (SGD)", "Suggested Locations",
		"Upfront Cost", "Monthly Cost", "Monthly Revenue (Avg)",
	)

	for _, kb := range kbs {
		for _, r := range kb.CurrentAnalysis.Recommendations {
			row := sheet.AddRow()
			row.AddCell().SetString(kb.Town)
			row.AddCell().SetString(r.BusinessType)
			row.AddCell().SetString(r.Category)
			row.AddCell().SetFloat(r.OpportunityScore)
			row.AddCell().SetString(r.Thesis)
			row.AddCell().SetString(r.GapReason)
			row.AddCell().SetFloat(r.EstimatedRental)
			row.AddCell().SetString(strings.Join(r.SuggestedLocations, "; "))
			row.AddCell().SetFloat(r.Financials.UpfrontCost)
			row.AddCell().SetFloat(r.Financials.MonthlyCost)
			row.AddCell().SetFloat(r.Financials.MonthlyRevenueAvg)
		}
	}
	return nil
}

func writeTendersSheet(f *xlsx.File, kbs []model.TownKnowledgeBase) error {
	sheet, err := f.AddSheet(SheetTenders)
	if err != nil {
		return eris.Wrap(err, "export: add tenders sheet")
	}
	addHeader(sheet, "Town", "Block", "Street", "Closing Date", "Status", "Area (sqft)")

	for _, kb := range kbs {
		for _, tender := range kb.CurrentAnalysis.ActiveTenders {
			row := sheet.AddRow()
			row.AddCell().SetString(kb.Town)
			row.AddCell().SetString(tender.Block)
			row.AddCell().SetString(tender.Street)
			row.AddCell().SetString(tender.ClosingDate)
			row.AddCell().SetString(tender.Status)
			row.AddCell().SetFloat(tender.AreaSqft)
		}
	}
	return nil
}

func writeChangelogSheet(f *xlsx.File, kbs []model.TownKnowledgeBase) error {
	sheet, err := f.AddSheet(SheetChangelog)
	if err != nil {
		return eris.Wrap(err, "export: add changelog sheet")
	}
	addHeader(sheet, "Town", "Date", "Category", "Change", "Significance", "Trend")

	for _, kb := range kbs {
		for _, d := range kb.Changelog {
			row := sheet.AddRow()
			row.AddCell().SetString(kb.Town)
			row.AddCell().SetString(d.Date)
			row.AddCell().SetString(d.Category)
			row.AddCell().SetString(d.Change)
			row.AddCell().SetString(string(d.Significance))
			row.AddCell().SetString(string(d.TrendDirection))
		}
	}
	return nil
}

func writeRunsSheet(f *xlsx.File, runs []model.Run) error {
	sheet, err := f.AddSheet(SheetRuns)
	if err != nil {
		return eris.Wrap(err, "export: add runs sheet")
	}
	addHeader(sheet,
		"Run ID", "Town", "Status", "Created", "Summary",
		"Deltas", "High Deltas", "Verified", "Failed", "Duration (ms)", "Error",
	)

	for _, r := range runs {
		row := sheet.AddRow()
		row.AddCell().SetString(r.ID)
		row.AddCell().SetString(r.Town)
		row.AddCell().SetString(string(r.Status))
		row.AddCell().SetString(r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		if r.Result != nil {
			row.AddCell().SetString(r.Result.Summary)
			row.AddCell().SetInt(r.Result.DeltaCount)
			row.AddCell().SetInt(r.Result.HighDeltas)
			row.AddCell().SetInt(r.Result.VerifiedCalls)
			row.AddCell().SetInt(r.Result.FailedCalls)
			row.AddCell().SetInt(int(r.Result.DurationMS))
		} else {
			for range 6 {
				row.AddCell()
			}
		}
		row.AddCell().SetString(r.Error)
	}
	return nil
}

func formatConfidence(conf map[string]float64) string {
	if len(conf) == 0 {
		return ""
	}
	parts := make([]string, 0, len(conf))
	for _, cat := range []string{
		model.CategoryDemographics,
		model.CategoryTenders,
		model.CategoryRental,
		model.CategoryMarketIntel,
		model.CategoryWebSearch,
	} {
		if v, ok := conf[cat]; ok {
			parts = append(parts, fmt.Sprintf("%s=%.1f", cat, v))
		}
	}
	return strings.Join(parts, ", ")
}
