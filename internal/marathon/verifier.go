package marathon

import (
	"strings"
	"time"

	"github.com/heartland-scout/scout-cli/internal/model"
)

// categorize maps a source identifier to a data category by substring match
// on known source-family tokens.
func categorize(sourceID string) string {
	switch {
	case strings.Contains(sourceID, "singstat"):
		return model.CategoryDemographics
	case strings.Contains(sourceID, "hdb"):
		return model.CategoryTenders
	case strings.Contains(sourceID, "ura"):
		return model.CategoryRental
	case strings.Contains(sourceID, "web_search"):
		return model.CategoryWebSearch
	default:
		return model.CategoryOther
	}
}

// Verify cross-references every tool envelope collected during a cycle.
// A category is UNAVAILABLE if any of its contributing sources failed, else
// it carries the last-seen status. Deterministic and side-effect free.
func Verify(envelopes []model.Envelope, now time.Time) (model.VerificationReport, []model.FetchFailure) {
	ts := now.UTC().Format(time.RFC3339)

	report := model.VerificationReport{
		Timestamp:  ts,
		TotalCalls: len(envelopes),
		Categories: make(map[string]model.CategoryVerdict),
	}
	var failures []model.FetchFailure

	for _, env := range envelopes {
		if env.OK() {
			report.VerifiedCount++
		} else {
			report.FailedCount++
			failures = append(failures, model.FetchFailure{
				SourceID:  env.SourceID,
				Error:     env.Error,
				RawURL:    env.RawURL,
				Timestamp: ts,
			})
		}

		cat := categorize(env.SourceID)
		verdict := report.Categories[cat]
		if verdict.Status != model.FetchUnavailable || len(verdict.Sources) == 0 {
			verdict.Status = env.FetchStatus
		}
		verdict.Sources = append(verdict.Sources, model.SourceStatus{
			SourceID: env.SourceID,
			Status:   env.FetchStatus,
			Error:    env.Error,
		})
		if !env.OK() {
			verdict.Status = model.FetchUnavailable
		}
		report.Categories[cat] = verdict
	}

	return report, failures
}
