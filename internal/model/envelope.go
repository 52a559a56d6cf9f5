package model

import "time"

// FetchStatus classifies the provenance of a single tool fetch.
type FetchStatus string

const (
	FetchVerified    FetchStatus = "VERIFIED"
	FetchStale       FetchStatus = "STALE"
	FetchAIEstimated FetchStatus = "AI_ESTIMATED"
	FetchUnavailable FetchStatus = "UNAVAILABLE"
)

// Envelope wraps every research tool result with provenance. Tools never
// return errors; a failed fetch is an envelope with status UNAVAILABLE and a
// short machine-readable error code. Envelopes are read-only once returned.
type Envelope struct {
	SourceID    string      `json:"source_id"`
	FetchStatus FetchStatus `json:"fetch_status"`
	Data        string      `json:"data,omitempty"`
	RawURL      string      `json:"raw_url,omitempty"`
	Error       string      `json:"error,omitempty"`
	FetchedAt   *time.Time  `json:"fetched_at,omitempty"`
	Town        string      `json:"town,omitempty"`
	Query       string      `json:"query,omitempty"`
}

// OK reports whether the fetch produced usable data.
func (e Envelope) OK() bool {
	return e.FetchStatus != FetchUnavailable
}

// Unavailable builds a failed envelope for the given source and error code.
func Unavailable(sourceID, rawURL, errCode string) Envelope {
	return Envelope{
		SourceID:    sourceID,
		FetchStatus: FetchUnavailable,
		RawURL:      rawURL,
		Error:       errCode,
	}
}
