package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaoloBova/llm-networks-misinformation/core"
	"github.com/PaoloBova/llm-networks-misinformation/internal/testutil"
	"github.com/PaoloBova/llm-networks-misinformation/topology"
)

func round(n int, faults int, choices ...string) core.RoundRecord {
	b := testutil.NewRoundBuilder(n).Choices(choices...)
	for i := range faults {
		b.Fault(core.AgentID(i), "injected")
	}
	return b.Build()
}

func TestRecorder_SequentialRounds(t *testing.T) {
	r := New()
	require.NoError(t, r.RecordRound(round(0, 0, "A", "B")))
	assert.Error(t, r.RecordRound(round(2, 0, "A", "A")))
	assert.Error(t, r.RecordRound(round(0, 0, "A", "A")))
	require.NoError(t, r.RecordRound(round(1, 0, "A", "A")))
	assert.Equal(t, 2, r.Len())
}

func TestRecorder_RecordIsCopied(t *testing.T) {
	r := New()
	rec := round(0, 0, "A")
	require.NoError(t, r.RecordRound(rec))
	rec.Entries[0].Decision.Choice = "mutated"
	assert.Equal(t, "A", r.Rounds()[0].Entries[0].Decision.Choice)
}

func TestRecorder_FinalizeTwiceFails(t *testing.T) {
	r := New()
	require.NoError(t, r.RecordRound(round(0, 0, "A", "A")))

	run, err := r.Finalize(core.RunMetadata{ID: "run-1", Status: core.RunCompleted})
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.True(t, r.Sealed())

	_, err = r.Finalize(core.RunMetadata{ID: "run-1"})
	assert.ErrorIs(t, err, core.ErrSealed)
	assert.ErrorIs(t, r.RecordRound(round(1, 0, "A", "A")), core.ErrSealed)
}

func TestSummarize(t *testing.T) {
	rounds := []core.RoundRecord{
		round(0, 0, "A", "A", "B", "A"),
		round(1, 1, "A", "A", "A", "A"),
		round(2, 0, "A", "A", "A", "A"),
	}
	s := Summarize(rounds, DefaultOptions)

	assert.Equal(t, 2, s.RoundsExecuted)
	assert.True(t, s.Converged)
	assert.Equal(t, "A", s.FinalChoice)
	assert.Equal(t, 1, s.TotalFaults)
	assert.Equal(t, []float64{0.75, 1, 1}, s.ConvergenceSeries())
	assert.Nil(t, s.Rounds[0].SwitchRate)
	require.NotNil(t, s.Rounds[1].SwitchRate)
	assert.InDelta(t, 0.25, *s.Rounds[1].SwitchRate, 1e-9)
	assert.Equal(t, map[string]float64{"A": 0.75, "B": 0.25}, s.Rounds[0].ChoiceFractions)
	assert.Nil(t, s.Rounds[0].CorrectProportion)
	assert.Nil(t, s.TimeBasedResilience)
}

func TestSummarize_NotConverged(t *testing.T) {
	s := Summarize([]core.RoundRecord{round(0, 0, "A", "B", "A", "B")}, DefaultOptions)
	assert.False(t, s.Converged)
	assert.Equal(t, "A", s.FinalChoice)

	loose := DefaultOptions
	loose.ConvergenceTolerance = 0.5
	assert.True(t, Summarize([]core.RoundRecord{round(0, 0, "A", "B", "A", "B")}, loose).Converged)
}

func TestSummarize_GroundTruth(t *testing.T) {
	g, err := topology.Build(core.TopologySpec{Family: core.FamilyRing, Size: 4})
	require.NoError(t, err)
	source := core.AgentID(0)

	rounds := []core.RoundRecord{
		round(0, 0, "42", "7", "7", "7"),
		round(1, 0, "42", "42", "7", "42"),
		round(2, 0, "42", "42", "42", "42"),
	}
	s := Summarize(rounds, Options{Truth: "42", Source: &source, Graph: g, ResilienceThreshold: 0.5})

	r1 := s.Rounds[1]
	require.NotNil(t, r1.CorrectProportion)
	assert.InDelta(t, 0.75, *r1.CorrectProportion, 1e-9)
	assert.Equal(t, []core.AgentID{0, 1, 3}, r1.CorrectAgents)
	assert.Equal(t, []core.AgentID{2}, r1.MisinformedAgents)
	assert.InDelta(t, 2.0/3.0, *r1.ConsensusScore, 1e-9)
	require.NotNil(t, r1.RecoveryRate)
	assert.InDelta(t, 3.0, *r1.RecoveryRate, 1e-9)
	assert.InDelta(t, 0.0, *s.Rounds[0].RecoveryRate, 1e-9)
	assert.Equal(t, 1, *r1.CascadeDepth)
	assert.InDelta(t, 0.75, *r1.CascadeBreadth, 1e-9)
	assert.InDelta(t, 0.75, *r1.TopologicalResilience, 1e-9)

	last := s.Rounds[2]
	assert.Equal(t, 2, *last.CascadeDepth)
	assert.InDelta(t, 1.0, *last.ConsensusScore, 1e-9)
	assert.InDelta(t, 1.0, *last.RecoveryRate, 1e-9)
	assert.Empty(t, last.MisinformedAgents)

	require.NotNil(t, s.TimeBasedResilience)
	// Round 0 sits at 0.25, so the leading run above 0.5 is empty.
	assert.InDelta(t, 0.0, *s.TimeBasedResilience, 1e-9)
}

func TestTally_TieBreak(t *testing.T) {
	_, modal, share := Tally(round(0, 0, "B", "A"))
	assert.Equal(t, "A", modal)
	assert.InDelta(t, 0.5, share, 1e-9)

	fractions, modal, share := Tally(core.RoundRecord{})
	assert.Empty(t, fractions)
	assert.Empty(t, modal)
	assert.Zero(t, share)
}

func TestChoiceSet(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, ChoiceSet([]core.RoundRecord{
		round(0, 0, "B", "A"),
		round(1, 0, "C", "A"),
	}))
}
