package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartland-scout/scout-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_GetKnowledgeBase_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM knowledge_bases WHERE town = \$1`).
		WithArgs("Punggol").
		WillReturnError(pgx.ErrNoRows)

	kb, err := s.GetKnowledgeBase(context.Background(), "Punggol")
	require.NoError(t, err)
	assert.Nil(t, kb)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetKnowledgeBase_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	stored := model.TownKnowledgeBase{Town: "Tampines", TotalRuns: 4}
	data, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT data FROM knowledge_bases WHERE town = \$1`).
		WithArgs("Tampines").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(data))

	kb, err := s.GetKnowledgeBase(context.Background(), "Tampines")
	require.NoError(t, err)
	require.NotNil(t, kb)
	assert.Equal(t, "Tampines", kb.Town)
	assert.Equal(t, 4, kb.TotalRuns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutKnowledgeBase_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(town\) DO UPDATE`).
		WithArgs("Bedok", pgxmock.AnyArg(), 7, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.PutKnowledgeBase(context.Background(), &model.TownKnowledgeBase{Town: "Bedok", TotalRuns: 7})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutKnowledgeBase_RequiresTown(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.PutKnowledgeBase(context.Background(), &model.TownKnowledgeBase{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a town")
}

func TestPostgresStore_DeleteKnowledgeBase_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM knowledge_bases WHERE town = \$1`).
		WithArgs("Yishun").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteKnowledgeBase(context.Background(), "Yishun")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "Hougang", string(model.RunStatusRunning), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "Hougang")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "Hougang", run.Town)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1`).
		WithArgs(string(model.RunStatusScouting), pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing-run", model.RunStatusScouting)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET result = \$1, status = \$2`).
		WithArgs(pgxmock.AnyArg(), string(model.RunStatusCompleted), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(context.Background(), "run-1", &model.RunResult{Summary: "done", DeltaCount: 2})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	result, err := json.Marshal(&model.RunResult{Summary: "ok"})
	require.NoError(t, err)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, town, status, result, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-9").
		WillReturnRows(pgxmock.NewRows([]string{"id", "town", "status", "result", "error", "created_at", "updated_at"}).
			AddRow("run-9", "Jurong East", model.RunStatusCompleted, result, (*string)(nil), now, now))

	run, err := s.GetRun(context.Background(), "run-9")
	require.NoError(t, err)
	assert.Equal(t, "Jurong East", run.Town)
	require.NotNil(t, run.Result)
	assert.Equal(t, "ok", run.Result.Summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, town, status, result, error, created_at, updated_at FROM runs WHERE 1=1 AND status = \$1 AND town = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs(string(model.RunStatusFailed), "Woodlands", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "town", "status", "result", "error", "created_at", "updated_at"}).
			AddRow("run-2", "Woodlands", model.RunStatusFailed, []byte(nil), ptr("boom"), now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{
		Status: model.RunStatusFailed,
		Town:   "Woodlands",
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "boom", runs[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO snapshots`).
		WithArgs("run-3", "Sengkang", "2026-08-25", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	snap := &model.Snapshot{RunID: "run-3", Town: "Sengkang", Date: "2026-08-25"}
	err := s.SaveSnapshot(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, int64(42), snap.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr(s string) *string { return &s }
