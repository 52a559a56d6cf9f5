package model

import "time"

// RunStatus represents the current state of a marathon cycle.
type RunStatus string

const (
	RunStatusRunning      RunStatus = "running"
	RunStatusObserving    RunStatus = "observing"
	RunStatusScouting     RunStatus = "scouting"
	RunStatusVerifying    RunStatus = "verifying"
	RunStatusDetecting    RunStatus = "detecting_deltas"
	RunStatusIntegrating  RunStatus = "integrating"
	RunStatusStrategizing RunStatus = "strategizing"
	RunStatusPersisting   RunStatus = "persisting"
	RunStatusCompleted    RunStatus = "completed"
	RunStatusFailed       RunStatus = "failed"
)

// Run represents a single marathon cycle for one town.
type Run struct {
	ID        string     `json:"id"`
	Town      string     `json:"town"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a completed cycle.
type RunResult struct {
	Summary       string        `json:"summary"`
	Scope         string        `json:"scope"`
	DeltaCount    int           `json:"delta_count"`
	HighDeltas    int           `json:"high_deltas"`
	VerifiedCalls int           `json:"verified_calls"`
	FailedCalls   int           `json:"failed_calls"`
	StrategistRan bool          `json:"strategist_ran"`
	TotalRuns     int           `json:"total_runs"`
	Stages        []StageResult `json:"stages"`
	DurationMS    int64         `json:"duration_ms"`
}

// StageStatus represents the current state of a pipeline stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
	StageStatusSkipped  StageStatus = "skipped"
)

// StageResult holds the outcome of one pipeline stage.
type StageResult struct {
	Name       string         `json:"name"`
	Status     StageStatus    `json:"status"`
	DurationMS int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// CycleResult is the in-memory output of one marathon cycle.
type CycleResult struct {
	RunID          string              `json:"run_id"`
	Town           string              `json:"town"`
	Directive      ResearchDirective   `json:"directive"`
	Analysis       *AreaAnalysis       `json:"analysis,omitempty"`
	KnowledgeBase  *TownKnowledgeBase  `json:"knowledge_base,omitempty"`
	Deltas         []Delta             `json:"deltas"`
	Verification   VerificationReport  `json:"verification"`
	Summary        string              `json:"summary"`
	StrategistRan  bool                `json:"strategist_ran"`
	Stages         []StageResult       `json:"stages"`
}

// Snapshot is the per-cycle audit record of raw pipeline inputs.
type Snapshot struct {
	ID            int64              `json:"id,omitempty"`
	RunID         string             `json:"run_id"`
	Town          string             `json:"town"`
	Date          string             `json:"date"`
	Findings      []Finding          `json:"findings"`
	Envelopes     []Envelope         `json:"tool_calls"`
	Failures      []FetchFailure     `json:"fetch_failures"`
	Verification  VerificationReport `json:"verification_report"`
	RunSummary    string             `json:"run_summary"`
	CreatedAt     time.Time          `json:"created_at"`
}
