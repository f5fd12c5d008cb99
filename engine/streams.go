package engine

import (
	"math/rand/v2"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// payoffSalt separates payoff draws from the stream handed to policies.
const payoffSalt = 0x5bd1e995a2c3f0e7

// agentStream returns the stream owned by one (agent, round) pair. Streams
// depend only on the seed and the pair, never on scheduling order.
func agentStream(seed uint64, id core.AgentID, round int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, streamKey(id, round)))
}

func payoffStream(seed uint64, id core.AgentID, round int) *rand.Rand {
	return rand.New(rand.NewPCG(seed^payoffSalt, streamKey(id, round)))
}

func streamKey(id core.AgentID, round int) uint64 {
	return uint64(uint32(id))<<32 | uint64(uint32(round))
}
