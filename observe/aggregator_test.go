package observe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaoloBova/llm-networks-misinformation/belief"
	"github.com/PaoloBova/llm-networks-misinformation/core"
	"github.com/PaoloBova/llm-networks-misinformation/topology"
)

func TestAggregator_ObservesPreviousRound(t *testing.T) {
	g, err := topology.Build(core.TopologySpec{Family: core.FamilyRing, Size: 4})
	require.NoError(t, err)
	store := belief.NewInMemoryStore()
	for id := core.AgentID(0); id < 4; id++ {
		require.NoError(t, store.Append(id, 0, core.Decision{Choice: "A", Status: core.StatusPrior}))
	}
	// Agent 1 already decided round 1; agent 0 must still see its round-0 belief.
	require.NoError(t, store.Append(1, 1, core.Decision{Choice: "B", Status: core.StatusOK}))

	agg := New(g, store)
	set := agg.Observe(0, 1)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, core.AgentID(1), set.Entries[0].Neighbor)
	assert.Equal(t, "A", set.Entries[0].Choice)
	assert.Equal(t, 0, set.Entries[0].Round)
	assert.Equal(t, core.AgentID(3), set.Entries[1].Neighbor)

	next := agg.Observe(0, 2)
	assert.Equal(t, "B", next.Entries[0].Choice)
	assert.Equal(t, map[string]int{"A": 1, "B": 1}, next.Counts())
}

func TestAggregator_KeepsUnobservedNeighbours(t *testing.T) {
	g, err := topology.FromEdges(3, false, core.Edge{From: 0, To: 1}, core.Edge{From: 0, To: 2})
	require.NoError(t, err)
	store := belief.NewInMemoryStore()
	require.NoError(t, store.Append(2, 0, core.Decision{Choice: "B", Status: core.StatusPrior}))

	set := New(g, store).Observe(0, 1)
	require.Len(t, set.Entries, 2)
	assert.False(t, set.Entries[0].Observed)
	assert.True(t, set.Entries[1].Observed)
	assert.Len(t, set.Observed(), 1)
}

func TestAggregator_DirectedEdges(t *testing.T) {
	g, err := topology.FromEdges(2, true, core.Edge{From: 0, To: 1})
	require.NoError(t, err)
	store := belief.NewInMemoryStore()
	agg := New(g, store)

	assert.Equal(t, 1, agg.Observe(0, 1).Len())
	assert.Equal(t, 0, agg.Observe(1, 1).Len())
}

func TestAggregator_ObserveAllAscending(t *testing.T) {
	g, err := topology.Build(core.TopologySpec{Family: core.FamilyComplete, Size: 3})
	require.NoError(t, err)
	sets := New(g, belief.NewInMemoryStore()).ObserveAll(1)
	require.Len(t, sets, 3)
	for i, s := range sets {
		assert.Equal(t, core.AgentID(i), s.Agent)
		assert.Equal(t, 1, s.Round)
		assert.Equal(t, 2, s.Len())
	}
}
