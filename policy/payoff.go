package policy

import (
	"math/rand/v2"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// TechnologyPayoff scores the two-technology learning game. Technology A is
// known to pay 1 with probability 0.5. Technology B pays 1 with probability
// HQChance when it is of high quality and 1-HQChance otherwise. Any other
// choice earns nothing.
type TechnologyPayoff struct {
	HQChance    float64
	HighQuality bool
	Baseline    string // defaults to "A"
	Candidate   string // defaults to "B"
}

// Correct returns the choice a fully informed agent would make.
func (p TechnologyPayoff) Correct() string {
	if p.chance() > 0.5 {
		return p.candidate()
	}
	return p.baseline()
}

// Func returns the payoff as a core.PayoffFunc.
func (p TechnologyPayoff) Func() core.PayoffFunc {
	return func(_ core.AgentID, d core.Decision, rng *rand.Rand) (float64, bool) {
		var chance float64
		switch d.Choice {
		case p.candidate():
			chance = p.chance()
		case p.baseline():
			chance = 0.5
		default:
			return 0, true
		}
		if rng.Float64() < chance {
			return 1, true
		}
		return 0, true
	}
}

func (p TechnologyPayoff) chance() float64 {
	if p.HighQuality {
		return p.HQChance
	}
	return 1 - p.HQChance
}

func (p TechnologyPayoff) baseline() string {
	if p.Baseline == "" {
		return "A"
	}
	return p.Baseline
}

func (p TechnologyPayoff) candidate() string {
	if p.Candidate == "" {
		return "B"
	}
	return p.Candidate
}
