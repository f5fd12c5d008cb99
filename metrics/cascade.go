package metrics

import (
	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// CascadeDepth is the largest hop distance from source to any adopter,
// travelling only through adopters. It is 0 when source has not adopted.
func CascadeDepth(g core.Graph, adopters []core.AgentID, source core.AgentID) int {
	adj := undirected(g)
	keep := mask(len(adj), adopters)
	if int(source) < 0 || int(source) >= len(adj) || !keep[source] {
		return 0
	}
	depth := 0
	for _, d := range bfs(adj, source, keep) {
		depth = max(depth, d)
	}
	return depth
}

// CascadeBreadth is the share of the network that adopted.
func CascadeBreadth(g core.Graph, adopters []core.AgentID) float64 {
	if g.Size() == 0 {
		return 0
	}
	return float64(len(dedupe(g.Size(), adopters))) / float64(g.Size())
}

// StructuralVirality is the mean pairwise distance within the subgraph
// induced by the adopters. Disconnected pairs count as distance 0.
func StructuralVirality(g core.Graph, adopters []core.AgentID) float64 {
	adj := undirected(g)
	nodes := dedupe(len(adj), adopters)
	if len(nodes) < 2 {
		return 0
	}
	keep := mask(len(adj), nodes)
	total := 0
	for _, s := range nodes {
		dist := bfs(adj, s, keep)
		for _, v := range nodes {
			if d := dist[v]; d > 0 {
				total += d
			}
		}
	}
	return float64(total) / float64(len(nodes)*(len(nodes)-1))
}

// FractionalResilience is the share of nodes holding the correct choice.
func FractionalResilience(g core.Graph, correct []core.AgentID) float64 {
	return CascadeBreadth(g, correct)
}

// TopologicalResilience is one minus the ratio of the largest misinformed
// component to the largest component of the whole network.
func TopologicalResilience(g core.Graph, misinformed []core.AgentID) float64 {
	adj := undirected(g)
	if len(adj) == 0 {
		return 0
	}
	nodes := dedupe(len(adj), misinformed)
	if len(nodes) == 0 {
		return 1
	}
	largest := func(comps [][]core.AgentID) int {
		best := 0
		for _, c := range comps {
			best = max(best, len(c))
		}
		return best
	}
	return 1 - float64(largest(components(adj, mask(len(adj), nodes))))/float64(largest(components(adj, nil)))
}

// TimeBasedResilience is the length of the leading run of rounds whose
// correct proportion exceeds threshold, as a share of all rounds.
func TimeBasedResilience(correctProportions []float64, threshold float64) float64 {
	if len(correctProportions) == 0 {
		return 0
	}
	run := 0
	for _, p := range correctProportions {
		if p <= threshold {
			break
		}
		run++
	}
	return float64(run) / float64(len(correctProportions))
}

// RecoveryRate is the number of correct agents per misinformed agent,
// averaged over elapsed rounds.
func RecoveryRate(correct, misinformed, round int) float64 {
	if round == 0 {
		return 0
	}
	if misinformed == 0 {
		return 1
	}
	return float64(correct) / float64(misinformed) / float64(round)
}

// ConsensusScore rates how far the population moved toward (positive) or
// away from (negative) the correct choice relative to the n0 agents that
// held it initially. nt is the current number of correct agents out of n.
func ConsensusScore(n, n0, nt int) float64 {
	switch {
	case n <= 0:
		return 0
	case n == n0 || n0 == 0:
		return float64(nt) / float64(n)
	case nt >= n0:
		return float64(nt-n0) / float64(n-n0)
	default:
		return float64(nt-n0) / float64(n0)
	}
}

func mask(n int, nodes []core.AgentID) []bool {
	keep := make([]bool, n)
	for _, id := range nodes {
		if int(id) >= 0 && int(id) < n {
			keep[id] = true
		}
	}
	return keep
}

func dedupe(n int, nodes []core.AgentID) []core.AgentID {
	keep := mask(n, nodes)
	out := make([]core.AgentID, 0, len(nodes))
	for i, k := range keep {
		if k {
			out = append(out, core.AgentID(i))
		}
	}
	return out
}
