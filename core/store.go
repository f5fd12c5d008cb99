package core

import "context"

// BeliefStore is the append-only per-agent history of decisions.
//
// Contract:
//   - Append only accepts round == last written round + 1 (round 0 first)
//     and leaves the store unchanged on failure
//   - At returns the latest decision written at a round <= round
//   - History returns a defensive copy in round order
type BeliefStore interface {
	Latest(id AgentID) (Decision, bool)
	At(id AgentID, round int) (Decision, bool)
	History(id AgentID) []Decision
	Append(id AgentID, round int, d Decision) error
}

// RunSink persists sealed runs (files, databases, memory).
type RunSink interface {
	Save(ctx context.Context, run *Run) error
}
