package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartland-scout/scout-cli/internal/model"
)

func TestMemoryKnowledgeBaseIsolation(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	kb := &model.TownKnowledgeBase{Town: "Punggol", TotalRuns: 1}
	require.NoError(t, s.PutKnowledgeBase(ctx, kb))

	// Mutating the caller's copy must not affect the stored value.
	kb.TotalRuns = 99
	got, err := s.GetKnowledgeBase(ctx, "Punggol")
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalRuns)
}

func TestMemoryMissingKnowledgeBaseIsNil(t *testing.T) {
	s := NewMemory()
	kb, err := s.GetKnowledgeBase(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.Nil(t, kb)
}

func TestMemoryRunLifecycle(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "Bedok")
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusIntegrating))
	require.NoError(t, s.CompleteRun(ctx, run.ID, &model.RunResult{Summary: "ok"}))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Equal(t, "ok", got.Result.Summary)

	require.Error(t, s.UpdateRunStatus(ctx, "missing", model.RunStatusRunning))
}

func TestMemoryListRunsOrderAndPaging(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	var ids []string
	for range 3 {
		r, err := s.CreateRun(ctx, "Tampines")
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	runs, err := s.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = s.ListRuns(ctx, RunFilter{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, runs)

	runs, err = s.ListRuns(ctx, RunFilter{Town: "Tampines"})
	require.NoError(t, err)
	assert.Len(t, runs, len(ids))
}

func TestMemorySnapshots(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	first := &model.Snapshot{RunID: "r1", Town: "Yishun", Date: "2026-08-24"}
	second := &model.Snapshot{RunID: "r2", Town: "Yishun", Date: "2026-08-25"}
	require.NoError(t, s.SaveSnapshot(ctx, first))
	require.NoError(t, s.SaveSnapshot(ctx, second))
	assert.Greater(t, second.ID, first.ID)

	snaps, err := s.ListSnapshots(ctx, "Yishun", 1)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "r2", snaps[0].RunID, "newest first")
}
