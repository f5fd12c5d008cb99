// Package metrics computes structural statistics of a network and of the
// cascades that spread over it.
//
// Every function treats the graph as undirected, so a directed observation
// edge u->v links u and v in both directions. Distances are hop counts.
package metrics

import (
	"errors"
	"slices"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// ErrDisconnected is returned by path-length statistics that are undefined
// on a graph with more than one component.
var ErrDisconnected = errors.New("graph is not connected")

// GraphMetrics summarizes a network.
type GraphMetrics struct {
	Nodes              int      `json:"nodes"`
	Edges              int      `json:"edges"`
	AverageDegree      float64  `json:"average_degree"`
	Clustering         float64  `json:"clustering_coefficient"`
	Components         int      `json:"connected_components"`
	AveragePathLength  *float64 `json:"avg_path_length,omitempty"`
	Diameter           *int     `json:"diameter,omitempty"`
	DegreeDistribution []int    `json:"degree_distribution"`
}

// Compute returns the summary statistics of g. Path-length statistics are
// left nil when g is disconnected.
func Compute(g core.Graph) GraphMetrics {
	u := undirected(g)
	m := GraphMetrics{
		Nodes:              len(u),
		Edges:              len(g.Edges()),
		AverageDegree:      averageDegree(u),
		Clustering:         clustering(u),
		Components:         len(components(u, nil)),
		DegreeDistribution: degrees(u),
	}
	if apl, diam, err := pathStats(u); err == nil {
		m.AveragePathLength = &apl
		m.Diameter = &diam
	}
	return m
}

// AverageDegree returns the mean number of neighbours per node.
func AverageDegree(g core.Graph) float64 { return averageDegree(undirected(g)) }

// ClusteringCoefficient returns the average local clustering coefficient.
// Nodes with fewer than two neighbours contribute zero.
func ClusteringCoefficient(g core.Graph) float64 { return clustering(undirected(g)) }

// ConnectedComponents returns the number of connected components.
func ConnectedComponents(g core.Graph) int { return len(components(undirected(g), nil)) }

// AveragePathLength returns the mean shortest-path length over all ordered
// node pairs.
func AveragePathLength(g core.Graph) (float64, error) {
	apl, _, err := pathStats(undirected(g))
	return apl, err
}

// Diameter returns the longest shortest path.
func Diameter(g core.Graph) (int, error) {
	_, diam, err := pathStats(undirected(g))
	return diam, err
}

type adjacency [][]core.AgentID

func undirected(g core.Graph) adjacency {
	n := g.Size()
	adj := make(adjacency, n)
	if !g.Directed() {
		for i := 0; i < n; i++ {
			adj[i] = g.Neighbors(core.AgentID(i))
		}
		return adj
	}
	sets := make([]map[core.AgentID]struct{}, n)
	for i := range sets {
		sets[i] = map[core.AgentID]struct{}{}
	}
	for _, e := range g.Edges() {
		sets[e.From][e.To] = struct{}{}
		sets[e.To][e.From] = struct{}{}
	}
	for i, set := range sets {
		for v := range set {
			adj[i] = append(adj[i], v)
		}
		slices.Sort(adj[i])
	}
	return adj
}

func degrees(adj adjacency) []int {
	out := make([]int, len(adj))
	for i, nbrs := range adj {
		out[i] = len(nbrs)
	}
	return out
}

func averageDegree(adj adjacency) float64 {
	if len(adj) == 0 {
		return 0
	}
	total := 0
	for _, nbrs := range adj {
		total += len(nbrs)
	}
	return float64(total) / float64(len(adj))
}

func clustering(adj adjacency) float64 {
	if len(adj) == 0 {
		return 0
	}
	sum := 0.0
	for _, nbrs := range adj {
		k := len(nbrs)
		if k < 2 {
			continue
		}
		links := 0
		for i, a := range nbrs {
			for _, b := range nbrs[i+1:] {
				if _, ok := slices.BinarySearch(adj[a], b); ok {
					links++
				}
			}
		}
		sum += 2 * float64(links) / float64(k*(k-1))
	}
	return sum / float64(len(adj))
}

// bfs returns hop distances from src within the nodes allowed by keep (nil
// keeps every node). Unreachable nodes have distance -1.
func bfs(adj adjacency, src core.AgentID, keep []bool) []int {
	dist := make([]int, len(adj))
	for i := range dist {
		dist[i] = -1
	}
	dist[src] = 0
	queue := []core.AgentID{src}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range adj[u] {
			if dist[v] >= 0 || (keep != nil && !keep[v]) {
				continue
			}
			dist[v] = dist[u] + 1
			queue = append(queue, v)
		}
	}
	return dist
}

// components returns the connected components among the nodes allowed by
// keep, each ascending, ordered by smallest node.
func components(adj adjacency, keep []bool) [][]core.AgentID {
	seen := make([]bool, len(adj))
	var comps [][]core.AgentID
	for s := range adj {
		if seen[s] || (keep != nil && !keep[s]) {
			continue
		}
		var comp []core.AgentID
		for v, d := range bfs(adj, core.AgentID(s), keep) {
			if d >= 0 {
				seen[v] = true
				comp = append(comp, core.AgentID(v))
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

func pathStats(adj adjacency) (float64, int, error) {
	n := len(adj)
	if n < 2 {
		return 0, 0, nil
	}
	total, diam := 0, 0
	for s := range adj {
		for _, d := range bfs(adj, core.AgentID(s), nil) {
			if d < 0 {
				return 0, 0, ErrDisconnected
			}
			total += d
			diam = max(diam, d)
		}
	}
	return float64(total) / float64(n*(n-1)), diam, nil
}
