package storage

import (
	"context"
	"sort"
	"sync"

	"holofit/internal/record"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]record.FitRun
	history     map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]record.FitRun)
	s.history = make(map[string][]float64)
	return nil
}

func (s *MemoryStore) SaveFitRun(_ context.Context, run record.FitRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = copyFitRun(run)
	return nil
}

func (s *MemoryStore) GetFitRun(_ context.Context, id string) (record.FitRun, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return record.FitRun{}, false, nil
	}
	return copyFitRun(run), true, nil
}

func (s *MemoryStore) ListFitRuns(_ context.Context) ([]record.FitRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.FitRun, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, copyFitRun(run))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtUTC != out[j].CreatedAtUTC {
			return out[i].CreatedAtUTC < out[j].CreatedAtUTC
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SaveResidualHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := append([]float64(nil), history...)
	s.history[runID] = copied
	return nil
}

func (s *MemoryStore) GetResidualHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	copied := append([]float64(nil), history...)
	return copied, true, nil
}

func copyFitRun(run record.FitRun) record.FitRun {
	out := run
	out.InitialGuess = copyFloatMap(run.InitialGuess)
	out.BestParams = copyFloatMap(run.BestParams)
	return out
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
