// Package marathon implements the research pipeline: a per-town cycle of
// observation, parallel scouting, verification, delta detection, knowledge
// integration, and conditional strategy re-evaluation.
package marathon

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/heartland-scout/scout-cli/internal/model"
	"github.com/heartland-scout/scout-cli/internal/progress"
	"github.com/heartland-scout/scout-cli/internal/store"
	"github.com/heartland-scout/scout-cli/internal/tools"
)

// Pipeline wires the marathon stages over a store, a tool client, and a
// model client.
type Pipeline struct {
	store store.Store
	tools tools.Client
	llm   LLM
	sink  progress.Sink

	scout      *Scout
	integrator *Integrator
	strategist *Strategist
}

// PipelineOption configures the pipeline.
type PipelineOption func(*pipelineConfig)

type pipelineConfig struct {
	sink            progress.Sink
	narrativeBudget int
	previewBudget   int
}

// WithSink routes pipeline progress events to the given sink.
func WithSink(sink progress.Sink) PipelineOption {
	return func(c *pipelineConfig) { c.sink = sink }
}

// WithNarrativeBudget caps agent narrative characters fed to the integrator.
func WithNarrativeBudget(n int) PipelineOption {
	return func(c *pipelineConfig) { c.narrativeBudget = n }
}

// WithPreviewBudget caps tool data preview characters fed to the scout
// agents.
func WithPreviewBudget(n int) PipelineOption {
	return func(c *pipelineConfig) { c.previewBudget = n }
}

// NewPipeline assembles the pipeline stages.
func NewPipeline(st store.Store, tc tools.Client, llm LLM, opts ...PipelineOption) *Pipeline {
	cfg := pipelineConfig{sink: progress.NopSink{}}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.sink == nil {
		cfg.sink = progress.NopSink{}
	}
	return &Pipeline{
		store:      st,
		tools:      tc,
		llm:        llm,
		sink:       cfg.sink,
		scout:      NewScout(tc, llm, cfg.previewBudget, cfg.sink),
		integrator: NewIntegrator(llm, cfg.narrativeBudget, cfg.sink),
		strategist: NewStrategist(llm),
	}
}

// stageTracker records stage outcomes and mirrors them to the run row and
// the progress stream.
type stageTracker struct {
	p      *Pipeline
	runID  string
	stages []model.StageResult
}

// run executes one stage. The run row is moved to the stage's status before
// the stage body runs, and the stage result is recorded either way. A status
// write failure is logged but does not abort the cycle.
func (t *stageTracker) run(ctx context.Context, name string, status model.RunStatus, fn func() error) error {
	if err := t.p.store.UpdateRunStatus(ctx, t.runID, status); err != nil {
		zap.L().Warn("run status update failed",
			zap.String("run_id", t.runID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
	t.p.sink.Publish(t.runID, progress.Event{
		Type:  progress.EventStageStarted,
		Stage: name,
	})

	start := time.Now()
	err := fn()
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		t.stages = append(t.stages, model.StageResult{
			Name:       name,
			Status:     model.StageStatusFailed,
			DurationMS: elapsed,
			Error:      err.Error(),
		})
		t.p.sink.Publish(t.runID, progress.Event{
			Type:    progress.EventStageFailed,
			Stage:   name,
			Message: err.Error(),
		})
		return err
	}

	t.stages = append(t.stages, model.StageResult{
		Name:       name,
		Status:     model.StageStatusComplete,
		DurationMS: elapsed,
	})
	t.p.sink.Publish(t.runID, progress.Event{
		Type:  progress.EventStageCompleted,
		Stage: name,
	})
	return nil
}

func (t *stageTracker) skip(name string) {
	t.stages = append(t.stages, model.StageResult{
		Name:   name,
		Status: model.StageStatusSkipped,
	})
}

// RunCycle executes one full marathon cycle for a town. On any stage error
// the run row is marked failed and the knowledge base is left untouched; the
// knowledge base and snapshot are only written after every stage succeeds.
func (p *Pipeline) RunCycle(ctx context.Context, town string) (*model.CycleResult, error) {
	started := time.Now()
	now := started.UTC()

	run, err := p.store.CreateRun(ctx, town)
	if err != nil {
		return nil, eris.Wrapf(err, "marathon: create run for %s", town)
	}
	zap.L().Info("marathon cycle started",
		zap.String("run_id", run.ID),
		zap.String("town", town),
	)

	t := &stageTracker{p: p, runID: run.ID}
	cycle, err := p.runStages(ctx, t, run.ID, town, now)
	if err != nil {
		if ferr := p.store.FailRun(ctx, run.ID, err.Error()); ferr != nil {
			zap.L().Error("fail-run write failed", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		p.sink.Publish(run.ID, progress.Event{
			Type:    progress.EventRunFailed,
			Message: err.Error(),
		})
		zap.L().Error("marathon cycle failed",
			zap.String("run_id", run.ID),
			zap.String("town", town),
			zap.Error(err),
		)
		return nil, err
	}

	result := &model.RunResult{
		Summary:       cycle.Summary,
		Scope:         cycle.Directive.Scope,
		DeltaCount:    len(cycle.Deltas),
		HighDeltas:    countHigh(cycle.Deltas),
		VerifiedCalls: cycle.Verification.VerifiedCount,
		FailedCalls:   cycle.Verification.FailedCount,
		StrategistRan: cycle.StrategistRan,
		TotalRuns:     cycle.KnowledgeBase.TotalRuns,
		Stages:        t.stages,
		DurationMS:    time.Since(started).Milliseconds(),
	}
	if err := p.store.CompleteRun(ctx, run.ID, result); err != nil {
		return nil, eris.Wrapf(err, "marathon: complete run %s", run.ID)
	}

	p.sink.Publish(run.ID, progress.Event{
		Type:    progress.EventRunCompleted,
		Message: cycle.Summary,
	})
	zap.L().Info("marathon cycle complete",
		zap.String("run_id", run.ID),
		zap.String("town", town),
		zap.String("summary", cycle.Summary),
		zap.Int64("duration_ms", result.DurationMS),
	)

	cycle.Stages = t.stages
	return cycle, nil
}

// runStages drives the stage sequence and assembles the in-memory cycle
// result. Persistence of the run row itself is handled by the caller.
func (p *Pipeline) runStages(ctx context.Context, t *stageTracker, runID, town string, now time.Time) (*model.CycleResult, error) {
	cycle := &model.CycleResult{RunID: runID, Town: town}

	var kb *model.TownKnowledgeBase
	err := t.run(ctx, "observer", model.RunStatusObserving, func() error {
		var err error
		kb, err = p.store.GetKnowledgeBase(ctx, town)
		if err != nil {
			return eris.Wrapf(err, "marathon: load knowledge base for %s", town)
		}
		cycle.Directive = Observe(kb, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var scouted *ScoutResult
	err = t.run(ctx, "scout", model.RunStatusScouting, func() error {
		var err error
		scouted, err = p.scout.Run(ctx, runID, town, cycle.Directive)
		return err
	})
	if err != nil {
		return nil, err
	}

	var failures []model.FetchFailure
	err = t.run(ctx, "verifier", model.RunStatusVerifying, func() error {
		cycle.Verification, failures = Verify(scouted.Envelopes, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = t.run(ctx, "delta_detector", model.RunStatusDetecting, func() error {
		cycle.Deltas = DetectDeltas(kb, scouted.Findings, failures, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = t.run(ctx, "knowledge_integrator", model.RunStatusIntegrating, func() error {
		analysis, newKB, summary, err := p.integrator.Run(ctx, IntegrateInput{
			RunID:        runID,
			Town:         town,
			KB:           kb,
			Findings:     scouted.Findings,
			Sources:      scouted.Sources,
			Verification: cycle.Verification,
			Deltas:       cycle.Deltas,
			Now:          now,
		})
		if err != nil {
			return err
		}
		cycle.Analysis = analysis
		cycle.KnowledgeBase = newKB
		cycle.Summary = summary
		return nil
	})
	if err != nil {
		return nil, err
	}

	if model.HasHigh(cycle.Deltas) {
		err = t.run(ctx, "strategist", model.RunStatusStrategizing, func() error {
			suffix, err := p.strategist.Run(ctx, cycle.Analysis, cycle.Deltas, now)
			if err != nil {
				return err
			}
			cycle.Summary += suffix
			cycle.StrategistRan = true
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		t.skip("strategist")
	}

	err = t.run(ctx, "persist", model.RunStatusPersisting, func() error {
		cycle.KnowledgeBase.CurrentAnalysis = *cycle.Analysis
		if err := p.store.PutKnowledgeBase(ctx, cycle.KnowledgeBase); err != nil {
			return eris.Wrapf(err, "marathon: persist knowledge base for %s", town)
		}
		snap := &model.Snapshot{
			RunID:        runID,
			Town:         town,
			Date:         now.Format("2006-01-02"),
			Findings:     scouted.Findings,
			Envelopes:    scouted.Envelopes,
			Failures:     failures,
			Verification: cycle.Verification,
			RunSummary:   cycle.Summary,
		}
		if err := p.store.SaveSnapshot(ctx, snap); err != nil {
			return eris.Wrapf(err, "marathon: save snapshot for %s", town)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cycle, nil
}

func countHigh(deltas []model.Delta) int {
	n := 0
	for _, d := range deltas {
		if d.Significance == model.SignificanceHigh {
			n++
		}
	}
	return n
}

// SweepResult summarizes one town's outcome within a sweep.
type SweepResult struct {
	Town    string `json:"town"`
	RunID   string `json:"run_id,omitempty"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Sweep runs a cycle for every registered town sequentially. A failed town
// does not stop the sweep; its error is recorded in the result list.
func (p *Pipeline) Sweep(ctx context.Context) ([]SweepResult, error) {
	towns := model.Towns()
	results := make([]SweepResult, 0, len(towns))

	zap.L().Info("sweep started", zap.Int("towns", len(towns)))
	for _, town := range towns {
		if err := ctx.Err(); err != nil {
			return results, eris.Wrap(err, "marathon: sweep interrupted")
		}

		cycle, err := p.RunCycle(ctx, town)
		if err != nil {
			results = append(results, SweepResult{Town: town, Error: err.Error()})
			continue
		}
		results = append(results, SweepResult{
			Town:    town,
			RunID:   cycle.RunID,
			Summary: cycle.Summary,
		})
	}

	zap.L().Info("sweep complete",
		zap.Int("towns", len(towns)),
		zap.Int("failed", countSweepFailures(results)),
	)
	return results, nil
}

func countSweepFailures(results []SweepResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}
