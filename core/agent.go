package core

import (
	"context"
	"math/rand/v2"
)

// AgentID identifies an agent. Agents of an n-node graph are numbered 0..n-1.
type AgentID int

// Agent is a participant node in the network. The agent's private belief
// trace lives in the BeliefStore; the engine is its sole writer.
type Agent struct {
	ID     AgentID
	Policy Policy
}

// DecisionInput is everything a policy may look at when deciding.
//
// Observations holds the neighbours' decisions from earlier rounds only and
// History the agent's own committed decisions in round order. Rand is a
// stream owned by this (agent, round) pair; policies must not retain it.
type DecisionInput struct {
	Agent        AgentID
	Round        int
	Observations ObservationSet
	History      []Decision
	Params       map[string]any
	Rand         *rand.Rand
}

// Current returns the agent's most recent committed decision, if any.
func (in DecisionInput) Current() (Decision, bool) {
	if len(in.History) == 0 {
		return Decision{}, false
	}
	return in.History[len(in.History)-1], true
}

// Policy is the capability an agent needs to take part in a round.
//
// Implementations must be total: return a Decision or an error. Any error is
// treated as a per-agent fault by the engine and never aborts the round on
// its own. Implementations must be safe for concurrent use because the
// engine calls Decide for many agents in parallel.
type Policy interface {
	Decide(ctx context.Context, in DecisionInput) (Decision, error)
}

// PolicyFunc adapts an ordinary function to the Policy interface.
type PolicyFunc func(ctx context.Context, in DecisionInput) (Decision, error)

// Decide implements Policy.
func (f PolicyFunc) Decide(ctx context.Context, in DecisionInput) (Decision, error) {
	return f(ctx, in)
}

// PriorPolicy is implemented by policies able to supply an agent's round-0
// belief. Configured priors take precedence over policy priors.
type PriorPolicy interface {
	Prior(agent AgentID, rng *rand.Rand) (Decision, error)
}

// PayoffFunc scores a committed decision. It draws from the deciding agent's
// stream so payoffs are reproducible for a fixed seed. ok=false leaves
// Decision.Payoff unset.
type PayoffFunc func(agent AgentID, d Decision, rng *rand.Rand) (payoff float64, ok bool)
