package runstore

import (
	"context"
	"sort"
	"sync"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
)

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]RunRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{runs: make(map[string]RunRecord)}
}

func (m *Memory) StartRun(ctx context.Context, run RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = cloneRun(run)
	return nil
}

func (m *Memory) FinishRun(ctx context.Context, run RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return errors.Wrapf(ErrRunNotFound, "finish run %s", run.ID)
	}
	m.runs[run.ID] = cloneRun(run)
	return nil
}

func (m *Memory) ListRuns(ctx context.Context, dagID string, limit int) ([]RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		if dagID == "" || r.DAGID == dagID {
			r.Tasks = nil
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, errors.Wrapf(ErrRunNotFound, "%s", id)
	}
	r = cloneRun(r)
	return &r, nil
}

func (m *Memory) Close() error { return nil }

func cloneRun(r RunRecord) RunRecord {
	r.Tasks = append([]TaskRecord(nil), r.Tasks...)
	return r
}
