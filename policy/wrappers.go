package policy

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// ErrInjectedFault is the default error returned by Faulty.
var ErrInjectedFault = errors.New("injected fault")

// Shock replaces the inner policy's decision with a fixed piece of
// information for the selected agents from Round on. An empty Agents list
// selects every agent.
type Shock struct {
	Inner         core.Policy
	Round         int
	Agents        []core.AgentID
	Choice        string
	Justification string
}

var _ core.Policy = (*Shock)(nil)

// Decide implements core.Policy.
func (s *Shock) Decide(ctx context.Context, in core.DecisionInput) (core.Decision, error) {
	if in.Round >= s.Round && selects(s.Agents, in.Agent) {
		return core.Decision{Round: in.Round, Choice: s.Choice, Justification: s.Justification, Status: core.StatusOK}, nil
	}
	return s.Inner.Decide(ctx, in)
}

// Prior forwards to the inner policy when it supplies priors.
func (s *Shock) Prior(agent core.AgentID, rng *rand.Rand) (core.Decision, error) {
	return innerPrior(s.Inner, agent, rng)
}

// Faulty makes the selected agents fail from FromRound on. Delay, when set,
// is waited out (or until ctx ends) before failing, which lets tests exercise
// decision timeouts. An empty Agents list selects every agent.
type Faulty struct {
	Inner     core.Policy
	Agents    []core.AgentID
	FromRound int
	Err       error
	Delay     time.Duration
}

var _ core.Policy = (*Faulty)(nil)

// Decide implements core.Policy.
func (f *Faulty) Decide(ctx context.Context, in core.DecisionInput) (core.Decision, error) {
	if in.Round < f.FromRound || !selects(f.Agents, in.Agent) {
		return f.Inner.Decide(ctx, in)
	}
	if f.Delay > 0 {
		t := time.NewTimer(f.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return core.Decision{}, ctx.Err()
		case <-t.C:
		}
	}
	if f.Err != nil {
		return core.Decision{}, f.Err
	}
	return core.Decision{}, ErrInjectedFault
}

// Prior forwards to the inner policy when it supplies priors.
func (f *Faulty) Prior(agent core.AgentID, rng *rand.Rand) (core.Decision, error) {
	return innerPrior(f.Inner, agent, rng)
}

func selects(agents []core.AgentID, id core.AgentID) bool {
	return len(agents) == 0 || slices.Contains(agents, id)
}

func innerPrior(inner core.Policy, agent core.AgentID, rng *rand.Rand) (core.Decision, error) {
	if p, ok := inner.(core.PriorPolicy); ok {
		return p.Prior(agent, rng)
	}
	return core.Decision{}, core.ErrNoPrior
}
