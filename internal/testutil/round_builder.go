package testutil

import (
	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// RoundBuilder provides a fluent helper for constructing round records in
// tests.
// Example:
//
//	rec := NewRoundBuilder(1).Choices("A", "B", "A").Fault(1, "boom").Build()
//
// Round 0 decisions get status prior, later rounds status ok. Faults are
// counted when Build is called.
type RoundBuilder struct {
	round   int
	entries []core.AgentRound
}

// NewRoundBuilder creates a builder for the given round number.
func NewRoundBuilder(round int) *RoundBuilder { return &RoundBuilder{round: round} }

// Choices appends one agent per choice, numbered after the existing ones (chainable).
func (b *RoundBuilder) Choices(choices ...string) *RoundBuilder {
	status := core.StatusOK
	if b.round == 0 {
		status = core.StatusPrior
	}
	for _, c := range choices {
		b.entries = append(b.entries, core.AgentRound{
			Agent:    core.AgentID(len(b.entries)),
			Decision: core.Decision{Round: b.round, Choice: c, Status: status},
		})
	}
	return b
}

// Justify sets the justification of an agent's decision (chainable).
func (b *RoundBuilder) Justify(agent core.AgentID, text string) *RoundBuilder {
	b.entries[agent].Decision.Justification = text
	return b
}

// Fault marks an agent's decision as failed with the given reason (chainable).
func (b *RoundBuilder) Fault(agent core.AgentID, reason string) *RoundBuilder {
	d := &b.entries[agent].Decision
	d.Status = core.StatusFailed
	d.Fault = reason
	return b
}

// Payoff sets the payoff of an agent's decision (chainable).
func (b *RoundBuilder) Payoff(agent core.AgentID, p float64) *RoundBuilder {
	b.entries[agent].Decision.Payoff = &p
	return b
}

// Observe records that agent saw the given neighbours' decisions from the
// previous round (chainable).
func (b *RoundBuilder) Observe(agent core.AgentID, obs ...core.Observation) *RoundBuilder {
	b.entries[agent].Observations = core.ObservationSet{Agent: agent, Round: b.round, Entries: obs}
	return b
}

// Build returns the record with fault counts filled in.
func (b *RoundBuilder) Build() core.RoundRecord {
	rec := core.RoundRecord{Round: b.round, Entries: append([]core.AgentRound(nil), b.entries...)}
	for _, e := range rec.Entries {
		if e.Decision.Status == core.StatusFailed {
			rec.Faults++
		}
	}
	if n := len(rec.Entries); n > 0 {
		rec.FaultFraction = float64(rec.Faults) / float64(n)
	}
	return rec
}
