package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/heartland-scout/scout-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS knowledge_bases (
	town       TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	total_runs INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	town       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	town       TEXT NOT NULL,
	date       TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_town ON runs(town);
CREATE INDEX IF NOT EXISTS idx_snapshots_town ON snapshots(town);
CREATE INDEX IF NOT EXISTS idx_snapshots_run_id ON snapshots(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetKnowledgeBase(ctx context.Context, town string) (*model.TownKnowledgeBase, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM knowledge_bases WHERE town = ?`, town,
	)
	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get knowledge base %s", town)
	}
	var kb model.TownKnowledgeBase
	if err := json.Unmarshal([]byte(data), &kb); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal knowledge base %s", town)
	}
	return &kb, nil
}

func (s *SQLiteStore) PutKnowledgeBase(ctx context.Context, kb *model.TownKnowledgeBase) error {
	if kb == nil || kb.Town == "" {
		return eris.New("sqlite: knowledge base requires a town")
	}
	data, err := json.Marshal(kb)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal knowledge base")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO knowledge_bases (town, data, total_runs, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(town) DO UPDATE SET data = excluded.data, total_runs = excluded.total_runs, updated_at = excluded.updated_at`,
		kb.Town, string(data), kb.TotalRuns, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put knowledge base %s", kb.Town)
}

func (s *SQLiteStore) DeleteKnowledgeBase(ctx context.Context, town string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM knowledge_bases WHERE town = ?`, town,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete knowledge base %s", town)
	}
	return checkRowsAffected(res, "knowledge base", town)
}

func (s *SQLiteStore) ListKnowledgeBases(ctx context.Context) ([]model.TownKnowledgeBase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM knowledge_bases ORDER BY town`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list knowledge bases")
	}
	defer rows.Close()

	var kbs []model.TownKnowledgeBase
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan knowledge base")
		}
		var kb model.TownKnowledgeBase
		if err := json.Unmarshal([]byte(data), &kb); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal knowledge base")
		}
		kbs = append(kbs, kb)
	}
	return kbs, eris.Wrap(rows.Err(), "sqlite: list knowledge bases iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, town string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, town, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, town, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Town:      town,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(model.RunStatusCompleted), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errText string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), errText, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, town, status, result, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, town, status, result, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Town != "" {
		query += ` AND town = ?`
		args = append(args, filter.Town)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if snap == nil {
		return eris.New("sqlite: nil snapshot")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (run_id, town, date, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		snap.RunID, snap.Town, snap.Date, string(data), now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert snapshot")
	}
	id, err := res.LastInsertId()
	if err == nil {
		snap.ID = id
	}
	return nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, town string, limit int) ([]model.Snapshot, error) {
	query := `SELECT id, data, created_at FROM snapshots`
	var args []any
	if town != "" {
		query += ` WHERE town = ?`
		args = append(args, town)
	}
	query += ` ORDER BY created_at DESC`
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		var id int64
		var data string
		var createdAt time.Time
		if err := rows.Scan(&id, &data, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		var snap model.Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
		}
		snap.ID = id
		snap.CreatedAt = createdAt
		snaps = append(snaps, snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var resultJSON, errText sql.NullString

	err := row.Scan(&r.ID, &r.Town, &r.Status, &resultJSON, &errText, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if resultJSON.Valid && resultJSON.String != "" {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	if errText.Valid {
		r.Error = errText.String
	}
	return &r, nil
}
