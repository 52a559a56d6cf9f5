package marathon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartland-scout/scout-cli/internal/model"
)

func strategistFixture() (*model.AreaAnalysis, []model.Delta) {
	analysis := &model.AreaAnalysis{
		Town:            "Punggol",
		CommercialPulse: "busy",
		Recommendations: []model.Recommendation{
			{BusinessType: "Old cafe", OpportunityScore: 50},
		},
	}
	deltas := []model.Delta{
		{Category: model.CategoryTenders, Significance: model.SignificanceHigh},
		{Category: model.CategoryMarketIntel, Significance: model.SignificanceLow},
	}
	return analysis, deltas
}

func TestStrategistReplacesRecommendations(t *testing.T) {
	llm := &fakeLLM{responses: map[string]string{
		"strategist": `[
			{"businessType": "Bakery", "opportunityScore": 85},
			{"businessType": "Gym", "opportunityScore": 70}
		]`,
	}}
	s := NewStrategist(llm)
	analysis, deltas := strategistFixture()

	suffix, err := s.Run(context.Background(), analysis, deltas, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, " Strategist updated 2 recommendations.", suffix)
	require.Len(t, analysis.Recommendations, 2)
	assert.Equal(t, "Bakery", analysis.Recommendations[0].BusinessType)
}

func TestStrategistTruncatesToThree(t *testing.T) {
	llm := &fakeLLM{responses: map[string]string{
		"strategist": `[
			{"businessType": "a"}, {"businessType": "b"},
			{"businessType": "c"}, {"businessType": "d"}
		]`,
	}}
	s := NewStrategist(llm)
	analysis, deltas := strategistFixture()

	_, err := s.Run(context.Background(), analysis, deltas, time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, analysis.Recommendations, model.NumRecommendations)
}

func TestStrategistKeepsRecommendationsOnParseFailure(t *testing.T) {
	llm := &fakeLLM{responses: map[string]string{
		"strategist": "I'd rather write prose.",
	}}
	s := NewStrategist(llm)
	analysis, deltas := strategistFixture()

	suffix, err := s.Run(context.Background(), analysis, deltas, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, analysis.Recommendations, 1)
	assert.Equal(t, "Old cafe", analysis.Recommendations[0].BusinessType)
	assert.Equal(t, " Strategist updated 1 recommendations.", suffix)
}

func TestStrategistEmptyArrayKeepsRecommendations(t *testing.T) {
	llm := &fakeLLM{responses: map[string]string{"strategist": "[]"}}
	s := NewStrategist(llm)
	analysis, deltas := strategistFixture()

	_, err := s.Run(context.Background(), analysis, deltas, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "Old cafe", analysis.Recommendations[0].BusinessType)
}

func TestStrategistPrependsPulseEvent(t *testing.T) {
	llm := &fakeLLM{responses: map[string]string{"strategist": "[]"}}
	s := NewStrategist(llm)
	analysis, deltas := strategistFixture()
	analysis.PulseTimeline = []model.PulseEvent{{Event: "older event"}}

	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	_, err := s.Run(context.Background(), analysis, deltas, now)
	require.NoError(t, err)

	require.Len(t, analysis.PulseTimeline, 2)
	assert.Equal(t, "Strategy re-evaluated due to 1 significant change(s)", analysis.PulseTimeline[0].Event)
	assert.Equal(t, "positive", analysis.PulseTimeline[0].Impact)
	assert.Equal(t, "older event", analysis.PulseTimeline[1].Event)
}

func TestStrategistTimelineCap(t *testing.T) {
	llm := &fakeLLM{responses: map[string]string{"strategist": "[]"}}
	s := NewStrategist(llm)
	analysis, deltas := strategistFixture()
	analysis.PulseTimeline = make([]model.PulseEvent, model.MaxTimelineEvents)

	_, err := s.Run(context.Background(), analysis, deltas, time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, analysis.PulseTimeline, model.MaxTimelineEvents)
	assert.Contains(t, analysis.PulseTimeline[0].Event, "Strategy re-evaluated")
}

func TestStrategistTransportFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("overloaded")}
	s := NewStrategist(llm)
	analysis, deltas := strategistFixture()

	_, err := s.Run(context.Background(), analysis, deltas, time.Now().UTC())
	require.Error(t, err)
}
