package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

func TestRoundBuilder(t *testing.T) {
	rec := NewRoundBuilder(1).Choices("A", "B").Choices("A").Fault(1, "boom").Payoff(0, 1).Build()

	assert.Equal(t, []string{"A", "B", "A"}, rec.Choices())
	assert.Equal(t, 1, rec.Faults)
	assert.InDelta(t, 1.0/3, rec.FaultFraction, 1e-9)
	assert.Equal(t, core.StatusFailed, rec.Entries[1].Decision.Status)
	assert.Equal(t, core.AgentID(2), rec.Entries[2].Agent)
	assert.Equal(t, 1.0, *rec.Entries[0].Decision.Payoff)

	prior := NewRoundBuilder(0).Choices("A").Build()
	assert.Equal(t, core.StatusPrior, prior.Entries[0].Decision.Status)
}

func TestRunBuilder(t *testing.T) {
	run := NewRunBuilder("r").
		Seed(3).
		Aborted("stop").
		Rounds(NewRoundBuilder(0).Choices("A").Build(), NewRoundBuilder(1).Choices("A").Fault(0, "x").Build()).
		Build()

	assert.Equal(t, core.RunAborted, run.Status)
	assert.Equal(t, uint64(3), run.Provenance.Seed)
	assert.Equal(t, 1, run.Summary.RoundsExecuted)
	assert.Equal(t, 1, run.Summary.TotalFaults)
}
