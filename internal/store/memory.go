package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/heartland-scout/scout-cli/internal/model"
)

// MemoryStore is the in-memory Store used by tests and `--store memory`
// development runs. Values are deep-copied through JSON-free struct copies
// where cheap; callers must not rely on pointer identity.
type MemoryStore struct {
	mu        sync.RWMutex
	kbs       map[string]model.TownKnowledgeBase
	runs      map[string]model.Run
	snapshots []model.Snapshot
	nextSnap  int64
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		kbs:  make(map[string]model.TownKnowledgeBase),
		runs: make(map[string]model.Run),
	}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func (s *MemoryStore) GetKnowledgeBase(_ context.Context, town string) (*model.TownKnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kb, ok := s.kbs[town]
	if !ok {
		return nil, nil
	}
	out := kb
	return &out, nil
}

func (s *MemoryStore) PutKnowledgeBase(_ context.Context, kb *model.TownKnowledgeBase) error {
	if kb == nil || kb.Town == "" {
		return eris.New("memory: knowledge base requires a town")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kbs[kb.Town] = *kb
	return nil
}

func (s *MemoryStore) DeleteKnowledgeBase(_ context.Context, town string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.kbs[town]; !ok {
		return eris.Errorf("knowledge base not found: %s", town)
	}
	delete(s.kbs, town)
	return nil
}

func (s *MemoryStore) ListKnowledgeBases(context.Context) ([]model.TownKnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TownKnowledgeBase, 0, len(s.kbs))
	for _, kb := range s.kbs {
		out = append(out, kb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Town < out[j].Town })
	return out, nil
}

func (s *MemoryStore) CreateRun(_ context.Context, town string) (*model.Run, error) {
	now := time.Now().UTC()
	run := model.Run{
		ID:        uuid.New().String(),
		Town:      town,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	out := run
	return &out, nil
}

func (s *MemoryStore) UpdateRunStatus(_ context.Context, runID string, status model.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return eris.Errorf("run not found: %s", runID)
	}
	run.Status = status
	run.UpdatedAt = time.Now().UTC()
	s.runs[runID] = run
	return nil
}

func (s *MemoryStore) CompleteRun(_ context.Context, runID string, result *model.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return eris.Errorf("run not found: %s", runID)
	}
	run.Status = model.RunStatusCompleted
	run.Result = result
	run.UpdatedAt = time.Now().UTC()
	s.runs[runID] = run
	return nil
}

func (s *MemoryStore) FailRun(_ context.Context, runID string, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return eris.Errorf("run not found: %s", runID)
	}
	run.Status = model.RunStatusFailed
	run.Error = errText
	run.UpdatedAt = time.Now().UTC()
	s.runs[runID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	out := run
	return &out, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, filter RunFilter) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []model.Run
	for _, r := range s.runs {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Town != "" && r.Town != filter.Town {
			continue
		}
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(runs) {
			return nil, nil
		}
		runs = runs[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snap *model.Snapshot) error {
	if snap == nil {
		return eris.New("memory: nil snapshot")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSnap++
	copied := *snap
	copied.ID = s.nextSnap
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	s.snapshots = append(s.snapshots, copied)
	snap.ID = copied.ID
	return nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context, town string, limit int) ([]model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Snapshot
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if town != "" && s.snapshots[i].Town != town {
			continue
		}
		out = append(out, s.snapshots[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
