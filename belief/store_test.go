package belief

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

func decision(choice string) core.Decision {
	return core.Decision{Choice: choice, Status: core.StatusOK}
}

func TestInMemoryStore_AppendAndRead(t *testing.T) {
	s := NewInMemoryStore()
	_, ok := s.Latest(0)
	assert.False(t, ok)

	require.NoError(t, s.Append(0, 0, decision("A")))
	require.NoError(t, s.Append(0, 1, decision("B")))

	latest, ok := s.Latest(0)
	require.True(t, ok)
	assert.Equal(t, "B", latest.Choice)
	assert.Equal(t, 1, latest.Round)

	at, ok := s.At(0, 0)
	require.True(t, ok)
	assert.Equal(t, "A", at.Choice)

	// Rounds past the last write resolve to the latest decision.
	at, ok = s.At(0, 5)
	require.True(t, ok)
	assert.Equal(t, "B", at.Choice)

	_, ok = s.At(0, -1)
	assert.False(t, ok)
	assert.Equal(t, 1, s.LastRound(0))
	assert.Equal(t, -1, s.LastRound(3))
}

func TestInMemoryStore_OutOfOrderLeavesStoreUnchanged(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Append(1, 0, decision("A")))

	err := s.Append(1, 2, decision("B"))
	var ooo *core.OutOfOrderWriteError
	require.ErrorAs(t, err, &ooo)
	assert.Equal(t, 1, ooo.Want)
	assert.Equal(t, 2, ooo.Got)
	assert.ErrorIs(t, err, core.ErrOutOfOrderWrite)

	err = s.Append(1, 0, decision("C"))
	assert.ErrorIs(t, err, core.ErrOutOfOrderWrite)

	h := s.History(1)
	require.Len(t, h, 1)
	assert.Equal(t, "A", h[0].Choice)

	assert.ErrorIs(t, s.Append(2, 1, decision("A")), core.ErrOutOfOrderWrite)
	assert.Equal(t, []core.AgentID{1}, s.Agents())
}

func TestInMemoryStore_HistoryIsACopy(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Append(0, 0, decision("A")))
	h := s.History(0)
	h[0].Choice = "mutated"
	latest, _ := s.Latest(0)
	assert.Equal(t, "A", latest.Choice)
}

func TestInMemoryStore_ConcurrentAgents(t *testing.T) {
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	for id := 0; id < 16; id++ {
		wg.Add(1)
		go func(id core.AgentID) {
			defer wg.Done()
			for r := 0; r < 10; r++ {
				assert.NoError(t, s.Append(id, r, decision("A")))
				_, _ = s.At((id+1)%16, r)
			}
		}(core.AgentID(id))
	}
	wg.Wait()
	assert.Len(t, s.Agents(), 16)
	for _, id := range s.Agents() {
		assert.Len(t, s.History(id), 10)
	}
}
