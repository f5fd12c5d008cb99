package policy

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// ErrNoCurrentChoice is returned by policies that need the agent's current
// belief when the agent has none.
var ErrNoCurrentChoice = errors.New("agent has no current choice")

// Scripted adapts a pure choice function into a Policy. The returned
// decision carries the choice with status ok.
func Scripted(fn func(in core.DecisionInput) string) core.Policy {
	return core.PolicyFunc(func(_ context.Context, in core.DecisionInput) (core.Decision, error) {
		return core.Decision{Round: in.Round, Choice: fn(in), Status: core.StatusOK}, nil
	})
}

// Constant always answers Choice. It also supplies Choice as the prior.
type Constant struct {
	Choice        string
	Justification string
}

var (
	_ core.Policy      = Constant{}
	_ core.PriorPolicy = Constant{}
)

// Decide implements core.Policy.
func (c Constant) Decide(_ context.Context, in core.DecisionInput) (core.Decision, error) {
	return core.Decision{Round: in.Round, Choice: c.Choice, Justification: c.Justification, Status: core.StatusOK}, nil
}

// Prior implements core.PriorPolicy.
func (c Constant) Prior(core.AgentID, *rand.Rand) (core.Decision, error) {
	return core.Decision{Choice: c.Choice, Justification: c.Justification, Status: core.StatusPrior}, nil
}

// Stubborn never changes its mind: it repeats the agent's current choice.
type Stubborn struct{}

var _ core.Policy = Stubborn{}

// Decide implements core.Policy.
func (Stubborn) Decide(_ context.Context, in core.DecisionInput) (core.Decision, error) {
	cur, ok := in.Current()
	if !ok {
		return core.Decision{}, ErrNoCurrentChoice
	}
	return core.Decision{Round: in.Round, Choice: cur.Choice, Justification: cur.Justification, Status: core.StatusOK}, nil
}

// Sequence plays a fixed script: round r answers Choices[r-1], repeating the
// last entry once the script runs out.
type Sequence struct {
	Choices []string
}

var _ core.Policy = Sequence{}

// Decide implements core.Policy.
func (s Sequence) Decide(_ context.Context, in core.DecisionInput) (core.Decision, error) {
	if len(s.Choices) == 0 {
		return core.Decision{}, errors.New("empty sequence")
	}
	i := min(max(in.Round-1, 0), len(s.Choices)-1)
	return core.Decision{Round: in.Round, Choice: s.Choices[i], Status: core.StatusOK}, nil
}

// MajorityCopy adopts the choice held by a strict majority of the observed
// neighbours. Without a strict majority, including ties, the agent keeps its
// current choice.
type MajorityCopy struct{}

var _ core.Policy = MajorityCopy{}

// Decide implements core.Policy.
func (MajorityCopy) Decide(_ context.Context, in core.DecisionInput) (core.Decision, error) {
	observed := in.Observations.Observed()
	counts := in.Observations.Counts()
	for _, o := range observed {
		if 2*counts[o.Choice] > len(observed) {
			return core.Decision{Round: in.Round, Choice: o.Choice, Justification: o.Justification, Status: core.StatusOK}, nil
		}
	}
	cur, ok := in.Current()
	if !ok {
		return core.Decision{}, ErrNoCurrentChoice
	}
	return core.Decision{Round: in.Round, Choice: cur.Choice, Justification: cur.Justification, Status: core.StatusOK}, nil
}

// Voter copies a uniformly chosen observed neighbour with probability P and
// otherwise keeps its current choice. All randomness comes from in.Rand.
type Voter struct {
	P float64
}

var _ core.Policy = Voter{}

// Decide implements core.Policy.
func (v Voter) Decide(_ context.Context, in core.DecisionInput) (core.Decision, error) {
	if in.Rand == nil {
		return core.Decision{}, errors.New("voter policy needs a random stream")
	}
	cur, ok := in.Current()
	if !ok {
		return core.Decision{}, ErrNoCurrentChoice
	}
	observed := in.Observations.Observed()
	if len(observed) > 0 && in.Rand.Float64() < v.P {
		o := observed[in.Rand.IntN(len(observed))]
		return core.Decision{Round: in.Round, Choice: o.Choice, Justification: o.Justification, Status: core.StatusOK}, nil
	}
	return core.Decision{Round: in.Round, Choice: cur.Choice, Justification: cur.Justification, Status: core.StatusOK}, nil
}
