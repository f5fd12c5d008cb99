// Package belief holds the append-only decision history of every agent.
package belief

import (
	"slices"
	"sync"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// InMemoryStore is a process-local BeliefStore.
//
// Concurrency: protected by RWMutex. Reads may run while other agents'
// histories are appended; every read returns a copy so callers never share
// backing arrays with the store.
type InMemoryStore struct {
	mu      sync.RWMutex
	history map[core.AgentID][]core.Decision // agent -> decisions, index == round
}

var _ core.BeliefStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{history: make(map[core.AgentID][]core.Decision)}
}

// Latest returns the agent's most recent decision.
func (s *InMemoryStore) Latest(id core.AgentID) (core.Decision, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[id]
	if len(h) == 0 {
		return core.Decision{}, false
	}
	return h[len(h)-1], true
}

// At returns the latest decision written at a round <= round.
func (s *InMemoryStore) At(id core.AgentID, round int) (core.Decision, bool) {
	if round < 0 {
		return core.Decision{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[id]
	if len(h) == 0 {
		return core.Decision{}, false
	}
	if round >= len(h) {
		round = len(h) - 1
	}
	return h[round], true
}

// History returns a copy of the agent's decisions in round order.
func (s *InMemoryStore) History(id core.AgentID) []core.Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history[id])
}

// LastRound returns the last round written for id, or -1.
func (s *InMemoryStore) LastRound(id core.AgentID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history[id]) - 1
}

// Append records d as the agent's decision for round. Writes must arrive in
// order starting at round 0; anything else fails with
// *core.OutOfOrderWriteError and leaves the store unchanged.
func (s *InMemoryStore) Append(id core.AgentID, round int, d core.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := len(s.history[id])
	if round != want {
		return &core.OutOfOrderWriteError{Agent: id, Want: want, Got: round}
	}
	d.Round = round
	s.history[id] = append(s.history[id], d)
	return nil
}

// Agents returns the ids with at least one decision, ascending.
func (s *InMemoryStore) Agents() []core.AgentID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]core.AgentID, 0, len(s.history))
	for id := range s.history {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
