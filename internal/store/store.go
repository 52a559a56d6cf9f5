// Package store persists town knowledge bases, run history, and daily
// snapshots. Three implementations share one interface: in-memory for tests
// and development, SQLite for single-machine use, Postgres for deployments.
package store

import (
	"context"

	"github.com/heartland-scout/scout-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Town   string          `json:"town,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the marathon pipeline. A
// missing knowledge base is reported as (nil, nil), not an error: cold start
// is a normal condition.
type Store interface {
	// Knowledge bases
	GetKnowledgeBase(ctx context.Context, town string) (*model.TownKnowledgeBase, error)
	PutKnowledgeBase(ctx context.Context, kb *model.TownKnowledgeBase) error
	DeleteKnowledgeBase(ctx context.Context, town string) error
	ListKnowledgeBases(ctx context.Context) ([]model.TownKnowledgeBase, error)

	// Runs
	CreateRun(ctx context.Context, town string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, errText string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Snapshots
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error
	ListSnapshots(ctx context.Context, town string, limit int) ([]model.Snapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
