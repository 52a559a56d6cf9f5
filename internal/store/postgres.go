package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/heartland-scout/scout-cli/internal/db"
	"github.com/heartland-scout/scout-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS knowledge_bases (
	town       TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	total_runs INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	town       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	town       TEXT NOT NULL,
	date       TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_town ON runs(town);
CREATE INDEX IF NOT EXISTS idx_snapshots_town ON snapshots(town);
CREATE INDEX IF NOT EXISTS idx_snapshots_run_id ON snapshots(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetKnowledgeBase(ctx context.Context, town string) (*model.TownKnowledgeBase, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM knowledge_bases WHERE town = $1`, town,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get knowledge base %s", town)
	}
	var kb model.TownKnowledgeBase
	if err := json.Unmarshal(data, &kb); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal knowledge base %s", town)
	}
	return &kb, nil
}

func (s *PostgresStore) PutKnowledgeBase(ctx context.Context, kb *model.TownKnowledgeBase) error {
	if kb == nil || kb.Town == "" {
		return eris.New("postgres: knowledge base requires a town")
	}
	data, err := json.Marshal(kb)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal knowledge base")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO knowledge_bases (town, data, total_runs, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (town) DO UPDATE SET data = EXCLUDED.data, total_runs = EXCLUDED.total_runs, updated_at = EXCLUDED.updated_at`,
		kb.Town, data, kb.TotalRuns, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put knowledge base %s", kb.Town)
}

func (s *PostgresStore) DeleteKnowledgeBase(ctx context.Context, town string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM knowledge_bases WHERE town = $1`, town,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete knowledge base %s", town)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("knowledge base not found: %s", town)
	}
	return nil
}

func (s *PostgresStore) ListKnowledgeBases(ctx context.Context) ([]model.TownKnowledgeBase, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM knowledge_bases ORDER BY town`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list knowledge bases")
	}
	defer rows.Close()

	var kbs []model.TownKnowledgeBase
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan knowledge base")
		}
		var kb model.TownKnowledgeBase
		if err := json.Unmarshal(data, &kb); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal knowledge base")
		}
		kbs = append(kbs, kb)
	}
	return kbs, eris.Wrap(rows.Err(), "postgres: list knowledge bases iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context, town string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, town, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, town, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Town:      town,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(model.RunStatusCompleted), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errText string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), errText, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, town, status, result, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	return r, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, town, status, result, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.Town != "" {
		args = append(args, filter.Town)
		query += ` AND town = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if snap == nil {
		return eris.New("postgres: nil snapshot")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot")
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO snapshots (run_id, town, date, data, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		snap.RunID, snap.Town, snap.Date, data, time.Now().UTC(),
	).Scan(&snap.ID)
	return eris.Wrap(err, "postgres: insert snapshot")
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, town string, limit int) ([]model.Snapshot, error) {
	query := `SELECT id, data, created_at FROM snapshots`
	var args []any
	if town != "" {
		args = append(args, town)
		query += ` WHERE town = $1`
	}
	query += ` ORDER BY created_at DESC`
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		var id int64
		var data []byte
		var createdAt time.Time
		if err := rows.Scan(&id, &data, &createdAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		var snap model.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
		}
		snap.ID = id
		snap.CreatedAt = createdAt
		snaps = append(snaps, snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func scanPgRun(row scannable) (*model.Run, error) {
	var r model.Run
	var resultJSON []byte
	var errText *string

	err := row.Scan(&r.ID, &r.Town, &r.Status, &resultJSON, &errText, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(resultJSON) > 0 {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	if errText != nil {
		r.Error = *errText
	}
	return &r, nil
}
