package sink

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// InMemory is a trivial in-process RunSink useful for tests and examples.
// Runs are stored as JSON so later mutation of a saved run by the caller is
// never observed, and every Get decodes a fresh copy.
type InMemory struct {
	mu   sync.RWMutex
	runs map[string][]byte // run id -> encoded run
}

var _ core.RunSink = (*InMemory)(nil)

// NewInMemory returns an empty in-memory sink.
func NewInMemory() *InMemory {
	return &InMemory{runs: make(map[string][]byte)}
}

// Save stores (or overwrites) the run under its id.
func (s *InMemory) Save(_ context.Context, run *core.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = data
	return nil
}

// Get returns a copy of the run or ErrNotFound.
func (s *InMemory) Get(id string) (*core.Run, error) {
	s.mu.RLock()
	data, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var run core.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns the saved run ids, sorted.
func (s *InMemory) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Multi saves a run to every sink in order, stopping at the first error.
type Multi []core.RunSink

var _ core.RunSink = Multi(nil)

// Save implements core.RunSink.
func (m Multi) Save(ctx context.Context, run *core.Run) error {
	for _, s := range m {
		if err := s.Save(ctx, run); err != nil {
			return err
		}
	}
	return nil
}
