package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundRecord_CloneIsDeep(t *testing.T) {
	p := 1.0
	rec := RoundRecord{Round: 1, Entries: []AgentRound{{
		Agent: 0,
		Observations: ObservationSet{Agent: 0, Round: 1, Entries: []Observation{
			{Neighbor: 1, Observed: true, Choice: "A", Payoff: &p},
		}},
		Decision: Decision{Round: 1, Choice: "B", Payoff: &p, Status: StatusOK},
	}}}

	c := rec.Clone()
	*c.Entries[0].Decision.Payoff = 0
	c.Entries[0].Observations.Entries[0].Choice = "Z"
	c.Entries[0].Decision.Choice = "Z"

	assert.Equal(t, 1.0, p)
	assert.Equal(t, "A", rec.Entries[0].Observations.Entries[0].Choice)
	assert.Equal(t, []string{"B"}, rec.Choices())
	assert.Equal(t, []string{"Z"}, c.Choices())
}

func TestRunStatus_Terminal(t *testing.T) {
	assert.False(t, RunInitializing.Terminal())
	assert.False(t, RunRunning.Terminal())
	assert.True(t, RunCompleted.Terminal())
	assert.True(t, RunAborted.Terminal())
}

func TestDecisionInput_Current(t *testing.T) {
	_, ok := DecisionInput{}.Current()
	assert.False(t, ok)

	in := DecisionInput{History: []Decision{{Choice: "A"}, {Choice: "B"}}}
	cur, ok := in.Current()
	assert.True(t, ok)
	assert.Equal(t, "B", cur.Choice)
}

func TestSummary_ConvergenceSeries(t *testing.T) {
	s := Summary{Rounds: []RoundSummary{{ConvergenceFraction: 0.5}, {ConvergenceFraction: 1}}}
	assert.Equal(t, []float64{0.5, 1}, s.ConvergenceSeries())
}
