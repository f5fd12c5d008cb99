package policy

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

func input(agent core.AgentID, round int, current string, neighbours ...string) core.DecisionInput {
	in := core.DecisionInput{
		Agent:        agent,
		Round:        round,
		Observations: core.ObservationSet{Agent: agent, Round: round},
		Rand:         rand.New(rand.NewPCG(1, 2)),
	}
	if current != "" {
		in.History = []core.Decision{{Choice: current, Justification: "mine", Status: core.StatusPrior}}
	}
	for i, c := range neighbours {
		obs := core.Observation{Neighbor: core.AgentID(100 + i)}
		if c != "" {
			obs.Observed = true
			obs.Choice = c
		}
		in.Observations.Entries = append(in.Observations.Entries, obs)
	}
	return in
}

func TestMajorityCopy(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name       string
		current    string
		neighbours []string
		want       string
	}{
		{"adopts majority", "B", []string{"A", "A"}, "A"},
		{"tie keeps own", "A", []string{"A", "B"}, "A"},
		{"tie keeps own when in minority", "C", []string{"A", "B"}, "C"},
		{"plurality is not majority", "C", []string{"A", "A", "B", "D"}, "C"},
		{"unobserved entries ignored", "B", []string{"A", ""}, "A"},
		{"no neighbours", "B", nil, "B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := MajorityCopy{}.Decide(ctx, input(0, 1, tt.current, tt.neighbours...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Choice)
			assert.Equal(t, core.StatusOK, d.Status)
			assert.Equal(t, 1, d.Round)
		})
	}

	_, err := MajorityCopy{}.Decide(ctx, input(0, 1, "", "A", "B"))
	assert.ErrorIs(t, err, ErrNoCurrentChoice)
}

func TestConstantAndStubborn(t *testing.T) {
	ctx := context.Background()
	c := Constant{Choice: "42", Justification: "direct information"}
	d, err := c.Decide(ctx, input(0, 3, "7", "7", "7"))
	require.NoError(t, err)
	assert.Equal(t, "42", d.Choice)

	prior, err := c.Prior(0, nil)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPrior, prior.Status)
	assert.Equal(t, "42", prior.Choice)

	d, err = Stubborn{}.Decide(ctx, input(0, 3, "7", "1", "1"))
	require.NoError(t, err)
	assert.Equal(t, "7", d.Choice)
	assert.Equal(t, "mine", d.Justification)
}

func TestSequence(t *testing.T) {
	s := Sequence{Choices: []string{"A", "B"}}
	for round, want := range map[int]string{1: "A", 2: "B", 5: "B"} {
		d, err := s.Decide(context.Background(), input(0, round, "A"))
		require.NoError(t, err)
		assert.Equal(t, want, d.Choice)
	}
	_, err := Sequence{}.Decide(context.Background(), input(0, 1, "A"))
	assert.Error(t, err)
}

func TestScripted(t *testing.T) {
	p := Scripted(func(in core.DecisionInput) string { return "echo" })
	d, err := p.Decide(context.Background(), input(2, 4, ""))
	require.NoError(t, err)
	assert.Equal(t, core.Decision{Round: 4, Choice: "echo", Status: core.StatusOK}, d)
}

func TestVoter(t *testing.T) {
	ctx := context.Background()

	d, err := Voter{P: 1}.Decide(ctx, input(0, 1, "A", "B", "B"))
	require.NoError(t, err)
	assert.Equal(t, "B", d.Choice)

	d, err = Voter{P: 0}.Decide(ctx, input(0, 1, "A", "B", "B"))
	require.NoError(t, err)
	assert.Equal(t, "A", d.Choice)

	// Same stream, same answer.
	a, _ := Voter{P: 0.5}.Decide(ctx, input(0, 1, "A", "B", "C", "D"))
	b, _ := Voter{P: 0.5}.Decide(ctx, input(0, 1, "A", "B", "C", "D"))
	assert.Equal(t, a, b)

	in := input(0, 1, "A", "B")
	in.Rand = nil
	_, err = Voter{P: 1}.Decide(ctx, in)
	assert.Error(t, err)
}

func TestShock(t *testing.T) {
	s := &Shock{Inner: MajorityCopy{}, Round: 3, Agents: []core.AgentID{1}, Choice: "B", Justification: "breaking news"}
	ctx := context.Background()

	d, err := s.Decide(ctx, input(1, 2, "A", "A"))
	require.NoError(t, err)
	assert.Equal(t, "A", d.Choice)

	d, err = s.Decide(ctx, input(1, 3, "A", "A"))
	require.NoError(t, err)
	assert.Equal(t, "B", d.Choice)
	assert.Equal(t, "breaking news", d.Justification)

	d, err = s.Decide(ctx, input(0, 3, "A", "A"))
	require.NoError(t, err)
	assert.Equal(t, "A", d.Choice)

	_, err = s.Prior(1, nil)
	assert.ErrorIs(t, err, core.ErrNoPrior)
	withPrior := &Shock{Inner: Constant{Choice: "A"}}
	prior, err := withPrior.Prior(1, nil)
	require.NoError(t, err)
	assert.Equal(t, "A", prior.Choice)
}

func TestFaulty(t *testing.T) {
	ctx := context.Background()
	f := &Faulty{Inner: Constant{Choice: "A"}, Agents: []core.AgentID{2}}

	_, err := f.Decide(ctx, input(2, 1, "A"))
	assert.ErrorIs(t, err, ErrInjectedFault)

	d, err := f.Decide(ctx, input(1, 1, "A"))
	require.NoError(t, err)
	assert.Equal(t, "A", d.Choice)

	boom := errors.New("boom")
	late := &Faulty{Inner: Constant{Choice: "A"}, FromRound: 2, Err: boom}
	_, err = late.Decide(ctx, input(0, 1, "A"))
	assert.NoError(t, err)
	_, err = late.Decide(ctx, input(0, 2, "A"))
	assert.ErrorIs(t, err, boom)

	slow := &Faulty{Inner: Constant{Choice: "A"}, Delay: time.Minute}
	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = slow.Decide(tctx, input(0, 1, "A"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallBudget(t *testing.T) {
	b := NewCallBudget(2)
	require.NoError(t, b.Acquire())
	require.NoError(t, b.Acquire())
	assert.ErrorIs(t, b.Acquire(), ErrBudgetExhausted)
	assert.Equal(t, 2, b.Count())
	assert.Equal(t, 0, b.Remaining())

	unlimited := NewCallBudget(0)
	for i := 0; i < 10; i++ {
		require.NoError(t, unlimited.Acquire())
	}
	assert.Equal(t, -1, unlimited.Remaining())
}

func TestTechnologyPayoff(t *testing.T) {
	p := TechnologyPayoff{HQChance: 1, HighQuality: true}
	assert.Equal(t, "B", p.Correct())
	fn := p.Func()
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 20; i++ {
		v, ok := fn(0, core.Decision{Choice: "B"}, rng)
		require.True(t, ok)
		assert.Equal(t, 1.0, v)
	}

	low := TechnologyPayoff{HQChance: 1, HighQuality: false}
	assert.Equal(t, "A", low.Correct())
	v, _ := low.Func()(0, core.Decision{Choice: "B"}, rng)
	assert.Equal(t, 0.0, v)

	v, ok := p.Func()(0, core.Decision{Choice: "Z"}, rng)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestNew(t *testing.T) {
	p, err := New(KindConstant, map[string]any{"choice": "A"})
	require.NoError(t, err)
	assert.Equal(t, Constant{Choice: "A"}, p)

	p, err = New(KindSequence, map[string]any{"choices": []any{"A", "B"}})
	require.NoError(t, err)
	assert.Equal(t, Sequence{Choices: []string{"A", "B"}}, p)

	p, err = New(KindVoter, map[string]any{"p": 0.25})
	require.NoError(t, err)
	assert.Equal(t, Voter{P: 0.25}, p)

	p, err = New(KindMajority, nil)
	require.NoError(t, err)
	assert.Equal(t, MajorityCopy{}, p)

	for _, tc := range []struct {
		kind   string
		params map[string]any
	}{
		{"unknown", nil},
		{KindConstant, nil},
		{KindConstant, map[string]any{"choice": 3}},
		{KindSequence, map[string]any{"choices": "A"}},
		{KindVoter, map[string]any{"p": 2.0}},
		{KindDelegate, nil},
	} {
		_, err := New(tc.kind, tc.params)
		assert.Error(t, err, tc.kind)
	}
}
