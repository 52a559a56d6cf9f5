package marathon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/heartland-scout/scout-cli/internal/model"
	"github.com/heartland-scout/scout-cli/internal/progress"
	"github.com/heartland-scout/scout-cli/internal/tools"
)

// ScoutResult accumulates the outputs of the parallel research tasks.
// Lists only ever grow by append, so merging partial results is associative
// and order of task completion does not matter.
type ScoutResult struct {
	Findings  []model.Finding
	Envelopes []model.Envelope
	Sources   []model.GroundingSource
}

// mergeResults concatenates partial scout results into one accumulator.
func mergeResults(parts ...*ScoutResult) *ScoutResult {
	out := &ScoutResult{}
	for _, p := range parts {
		if p == nil {
			continue
		}
		out.Findings = append(out.Findings, p.Findings...)
		out.Envelopes = append(out.Envelopes, p.Envelopes...)
		out.Sources = append(out.Sources, p.Sources...)
	}
	return out
}

// Scout runs the three research agents concurrently and fans their outputs
// in. Tool failures degrade to UNAVAILABLE envelopes; a model transport
// failure in any agent fails the whole stage.
type Scout struct {
	tools         tools.Client
	llm           LLM
	previewBudget int
	sink          progress.Sink
}

// NewScout wires the scout stage.
func NewScout(tc tools.Client, llm LLM, previewBudget int, sink progress.Sink) *Scout {
	if sink == nil {
		sink = progress.NopSink{}
	}
	if previewBudget <= 0 {
		previewBudget = 2000
	}
	return &Scout{tools: tc, llm: llm, previewBudget: previewBudget, sink: sink}
}

type agentFn func(ctx context.Context, town string, now time.Time) (model.Finding, error)

// Run executes the fan-out for one town. The directive is advisory here: all
// three agents always run, and the directive shapes logging only. Skipped
// categories would still produce valid empty accumulators downstream.
func (s *Scout) Run(ctx context.Context, runID, town string, directive model.ResearchDirective) (*ScoutResult, error) {
	now := time.Now().UTC()

	zap.L().Info("scout fan-out",
		zap.String("town", town),
		zap.String("scope", directive.Scope),
		zap.Strings("categories", directive.Categories),
	)

	agents := []struct {
		name       string
		categories []string
		fn         agentFn
	}{
		{model.AgentDemographics, []string{model.CategoryDemographics}, s.demographicsAgent},
		{model.AgentCommercial, []string{model.CategoryTenders, model.CategoryRental}, s.commercialAgent},
		{model.AgentMarketIntel, []string{model.CategoryMarketIntel}, s.marketIntelAgent},
	}

	parts := make([]*ScoutResult, len(agents))
	g, gctx := errgroup.WithContext(ctx)
	for i, agent := range agents {
		g.Go(func() error {
			msg := fmt.Sprintf("Researching %s for %s...", agent.name, town)
			if directiveSelects(directive, agent.categories) {
				msg = fmt.Sprintf("Researching %s for %s (flagged stale)...", agent.name, town)
			}
			s.sink.Publish(runID, progress.Event{
				Type:    progress.EventAgentLog,
				Stage:   agent.name,
				Message: msg,
			})

			f, err := agent.fn(gctx, town, now)
			if err != nil {
				s.sink.Publish(runID, progress.Event{
					Type:    progress.EventStageFailed,
					Stage:   agent.name,
					Message: err.Error(),
				})
				return err
			}

			part := &ScoutResult{
				Findings:  []model.Finding{f},
				Envelopes: f.Envelopes,
			}
			for _, env := range f.Envelopes {
				if env.RawURL != "" {
					part.Sources = append(part.Sources, model.GroundingSource{
						Title: env.SourceID,
						URI:   env.RawURL,
					})
				}
			}
			parts[i] = part

			s.sink.Publish(runID, progress.Event{
				Type:    progress.EventAgentLog,
				Stage:   agent.name,
				Message: fmt.Sprintf("%s complete: %d tool calls", agent.name, len(f.Envelopes)),
				Preview: truncate(f.Narrative, 200),
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeResults(parts...), nil
}

func directiveSelects(d model.ResearchDirective, categories []string) bool {
	for _, c := range categories {
		if d.Includes(c) {
			return true
		}
	}
	return false
}
