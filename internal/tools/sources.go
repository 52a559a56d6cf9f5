package tools

import (
	"context"
	"net/url"

	"github.com/heartland-scout/scout-cli/internal/model"
)

const (
	singstatTableURL       = "https://tablebuilder.singstat.gov.sg/api/table/tabledata"
	singstatPopulationPage = "https://www.singstat.gov.sg/find-data/search-by-theme/population/geographic-distribution/latest-data"
	singstatIncomePage     = "https://www.singstat.gov.sg/find-data/search-by-theme/households/household-income"
	hdbTendersURL          = "https://www.hdb.gov.sg/business/commercial/commercial-properties/tender"
	uraRentalURL           = "https://www.ura.gov.sg/property-market-information/pmiResidentialRentalSearch"
	googleSearchURL        = "https://www.google.com/search"

	// Table 17564: resident population by planning area/subzone and dwelling type.
	singstatCensusTable = "17564"
	// Table 17009: resident households by planning area and monthly income.
	singstatIncomeTable = "17009"

	htmlPreviewLimit   = 10000
	searchPreviewLimit = 5000
)

// SingstatDemographics fetches census data for a planning area from the
// SingStat Table Builder API.
func (t *httpTools) SingstatDemographics(ctx context.Context, town string) model.Envelope {
	env := t.get(ctx, SourceSingstatCensus, t.endpoints.SingstatTable+"?id="+singstatCensusTable, 0)
	if !env.OK() {
		// Keep a citable landing page for provenance when the API call fails.
		env.RawURL = singstatPopulationPage
	}
	env.Town = town
	return env
}

// SingstatIncome fetches household income data from the SingStat Table
// Builder API.
func (t *httpTools) SingstatIncome(ctx context.Context, town string) model.Envelope {
	env := t.get(ctx, SourceSingstatIncome, t.endpoints.SingstatTable+"?id="+singstatIncomeTable, 0)
	if !env.OK() {
		env.RawURL = singstatIncomePage
	}
	env.Town = town
	return env
}

// HDBTenders fetches the HDB commercial property tenders listing.
func (t *httpTools) HDBTenders(ctx context.Context, town string) model.Envelope {
	env := t.get(ctx, SourceHDBTenders, t.endpoints.HDBTenders, htmlPreviewLimit)
	env.Town = town
	return env
}

// URARental fetches the URA residential rental search page.
func (t *httpTools) URARental(ctx context.Context, town string) model.Envelope {
	env := t.get(ctx, SourceURARental, t.endpoints.URARental, htmlPreviewLimit)
	env.Town = town
	return env
}

// SearchWeb fetches a Google results page for the query.
func (t *httpTools) SearchWeb(ctx context.Context, query string) model.Envelope {
	env := t.get(ctx, SourceWebSearch, t.endpoints.GoogleSearch+"?q="+url.QueryEscape(query), searchPreviewLimit)
	env.Query = query
	return env
}
