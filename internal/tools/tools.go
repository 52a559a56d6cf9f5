// Package tools implements the research tool clients for Singapore
// government open data and web search. Every call returns a provenance
// envelope; fetch failures are recorded in the envelope as UNAVAILABLE with
// a short machine-readable error code and are never raised as errors.
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/heartland-scout/scout-cli/internal/fetcher"
	"github.com/heartland-scout/scout-cli/internal/model"
)

// Source identifiers. The verifier classifies envelopes into categories by
// substring match on these.
const (
	SourceSingstatCensus = "singstat_census"
	SourceSingstatIncome = "singstat_income"
	SourceHDBTenders     = "hdb_tenders"
	SourceURARental      = "ura_rental"
	SourceWebSearch      = "web_search"
)

// Client is the research tool surface consumed by the scout agents.
type Client interface {
	SingstatDemographics(ctx context.Context, town string) model.Envelope
	SingstatIncome(ctx context.Context, town string) model.Envelope
	HDBTenders(ctx context.Context, town string) model.Envelope
	URARental(ctx context.Context, town string) model.Envelope
	SearchWeb(ctx context.Context, query string) model.Envelope
}

// Option configures the client.
type Option func(*httpTools)

// WithTimeout overrides the per-request timeout used for error codes.
func WithTimeout(d time.Duration) Option {
	return func(t *httpTools) {
		t.timeout = d
	}
}

// WithEndpoints overrides the source endpoints, used in tests.
func WithEndpoints(e Endpoints) Option {
	return func(t *httpTools) {
		t.endpoints = e
	}
}

// Endpoints holds the source URLs queried by the client.
type Endpoints struct {
	SingstatTable string
	HDBTenders    string
	URARental     string
	GoogleSearch  string
}

type httpTools struct {
	fetch     *fetcher.HTTPFetcher
	timeout   time.Duration
	endpoints Endpoints
}

// New creates the production tool client backed by the shared rate-limited
// fetcher.
func New(f *fetcher.HTTPFetcher, opts ...Option) Client {
	t := &httpTools{
		fetch:   f,
		timeout: 15 * time.Second,
		endpoints: Endpoints{
			SingstatTable: singstatTableURL,
			HDBTenders:    hdbTendersURL,
			URARental:     uraRentalURL,
			GoogleSearch:  googleSearchURL,
		},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// errCode maps a fetch error to the short machine-readable code recorded in
// the envelope.
func (t *httpTools) errCode(err error) string {
	if fetcher.IsTimeout(err) {
		return fmt.Sprintf("timeout_%ds", int(t.timeout.Seconds()))
	}
	var se *fetcher.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("http_%d", se.Code)
	}
	return err.Error()
}

// get runs one fetch and folds the outcome into an envelope.
func (t *httpTools) get(ctx context.Context, sourceID, rawURL string, truncate int) model.Envelope {
	env := model.Envelope{
		SourceID:    sourceID,
		FetchStatus: model.FetchUnavailable,
		RawURL:      rawURL,
	}

	res, err := t.fetch.Get(ctx, rawURL)
	if err != nil {
		env.Error = t.errCode(err)
		zap.L().Info("tool fetch failed",
			zap.String("source", sourceID),
			zap.String("error", env.Error),
		)
		return env
	}

	body := res.Body
	if truncate > 0 && len(body) > truncate {
		body = body[:truncate]
	}
	now := time.Now().UTC()
	env.FetchStatus = model.FetchVerified
	env.Data = body
	env.RawURL = res.FinalURL
	env.FetchedAt = &now

	zap.L().Info("tool fetch ok",
		zap.String("source", sourceID),
		zap.Int("bytes", len(body)),
	)
	return env
}
