// Package observe builds the per-agent view of neighbour decisions.
package observe

import (
	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// Aggregator reads neighbour decisions from a belief store. It holds no
// state of its own; Observe is a pure function of the graph, the store
// contents and the round.
type Aggregator struct {
	graph core.Graph
	store core.BeliefStore
}

// New creates an aggregator over graph and store.
func New(graph core.Graph, store core.BeliefStore) *Aggregator {
	return &Aggregator{graph: graph, store: store}
}

// Observe returns what id sees before deciding at round: one entry per
// neighbour, ascending, holding the neighbour's decision as of round-1.
// Neighbours without a decision yet are kept with Observed=false.
func (a *Aggregator) Observe(id core.AgentID, round int) core.ObservationSet {
	nbrs := a.graph.Neighbors(id)
	set := core.ObservationSet{
		Agent:   id,
		Round:   round,
		Entries: make([]core.Observation, 0, len(nbrs)),
	}
	for _, n := range nbrs {
		obs := core.Observation{Neighbor: n}
		if d, ok := a.store.At(n, round-1); ok {
			obs.Observed = true
			obs.Round = d.Round
			obs.Choice = d.Choice
			obs.Justification = d.Justification
			obs.Status = d.Status
			if d.Payoff != nil {
				p := *d.Payoff
				obs.Payoff = &p
			}
		}
		set.Entries = append(set.Entries, obs)
	}
	return set
}

// ObserveAll computes every agent's observation set for round. It must be
// called before any decision of that round is appended.
func (a *Aggregator) ObserveAll(round int) []core.ObservationSet {
	nodes := a.graph.Nodes()
	out := make([]core.ObservationSet, len(nodes))
	for i, id := range nodes {
		out[i] = a.Observe(id, round)
	}
	return out
}
