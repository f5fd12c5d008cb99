// Package topology builds the immutable networks agents are arranged on.
//
// Build turns a core.TopologySpec into a *Graph whose node set is exactly
// 0..n-1. Generation is deterministic for a fixed seed: every family draws
// from a private PCG stream seeded from the TopologySpec, never from a
// global source.
package topology

import (
	"slices"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// Graph is an immutable adjacency-list graph implementing core.Graph.
// Neighbour lists are sorted ascending and free of duplicates and self loops.
type Graph struct {
	directed bool
	adj      [][]core.AgentID
}

var _ core.Graph = (*Graph)(nil)

// Size returns the number of nodes.
func (g *Graph) Size() int { return len(g.adj) }

// Directed reports whether edges are one-way observation relationships.
func (g *Graph) Directed() bool { return g.directed }

// Nodes returns 0..n-1.
func (g *Graph) Nodes() []core.AgentID {
	nodes := make([]core.AgentID, len(g.adj))
	for i := range nodes {
		nodes[i] = core.AgentID(i)
	}
	return nodes
}

// Neighbors returns a copy of the agents id observes, ascending. Unknown ids
// have no neighbours.
func (g *Graph) Neighbors(id core.AgentID) []core.AgentID {
	if !g.has(id) {
		return nil
	}
	return slices.Clone(g.adj[id])
}

// Degree returns the number of neighbours of id.
func (g *Graph) Degree(id core.AgentID) int {
	if !g.has(id) {
		return 0
	}
	return len(g.adj[id])
}

// HasEdge reports whether from observes to.
func (g *Graph) HasEdge(from, to core.AgentID) bool {
	if !g.has(from) {
		return false
	}
	_, ok := slices.BinarySearch(g.adj[from], to)
	return ok
}

// Edges lists every edge once. Undirected edges are reported with From < To.
func (g *Graph) Edges() []core.Edge {
	var edges []core.Edge
	for u, nbrs := range g.adj {
		for _, v := range nbrs {
			if !g.directed && v < core.AgentID(u) {
				continue
			}
			edges = append(edges, core.Edge{From: core.AgentID(u), To: v})
		}
	}
	return edges
}

func (g *Graph) has(id core.AgentID) bool { return id >= 0 && int(id) < len(g.adj) }

// builder accumulates edges in sets before the graph is frozen.
type builder struct {
	directed bool
	sets     []map[core.AgentID]struct{}
}

func newBuilder(n int, directed bool) *builder {
	sets := make([]map[core.AgentID]struct{}, n)
	for i := range sets {
		sets[i] = make(map[core.AgentID]struct{})
	}
	return &builder{directed: directed, sets: sets}
}

func (b *builder) size() int { return len(b.sets) }

func (b *builder) addEdge(u, v core.AgentID) {
	if u == v {
		return
	}
	b.sets[u][v] = struct{}{}
	if !b.directed {
		b.sets[v][u] = struct{}{}
	}
}

func (b *builder) removeEdge(u, v core.AgentID) {
	delete(b.sets[u], v)
	if !b.directed {
		delete(b.sets[v], u)
	}
}

func (b *builder) hasEdge(u, v core.AgentID) bool {
	_, ok := b.sets[u][v]
	return ok
}

func (b *builder) degree(u core.AgentID) int { return len(b.sets[u]) }

// isolated returns the first node without any incident edge. Incoming edges
// count for directed graphs.
func (b *builder) isolated() (core.AgentID, bool) {
	touched := make([]bool, len(b.sets))
	for u, set := range b.sets {
		if len(set) > 0 {
			touched[u] = true
		}
		for v := range set {
			touched[v] = true
		}
	}
	for u, ok := range touched {
		if !ok {
			return core.AgentID(u), true
		}
	}
	return 0, false
}

func (b *builder) freeze() *Graph {
	adj := make([][]core.AgentID, len(b.sets))
	for u, set := range b.sets {
		nbrs := make([]core.AgentID, 0, len(set))
		for v := range set {
			nbrs = append(nbrs, v)
		}
		slices.Sort(nbrs)
		adj[u] = nbrs
	}
	return &Graph{directed: b.directed, adj: adj}
}

// components returns the weakly connected components of the builder's graph,
// each sorted ascending, ordered by their smallest node.
func (b *builder) components() [][]core.AgentID {
	n := b.size()
	undirected := make([][]core.AgentID, n)
	for u, set := range b.sets {
		for v := range set {
			undirected[u] = append(undirected[u], v)
			if b.directed {
				undirected[v] = append(undirected[v], core.AgentID(u))
			}
		}
	}
	seen := make([]bool, n)
	var comps [][]core.AgentID
	for start := 0; start < n; start++ {
		if seen[start] {
			continue
		}
		comp := []core.AgentID{core.AgentID(start)}
		seen[start] = true
		for i := 0; i < len(comp); i++ {
			for _, v := range undirected[comp[i]] {
				if !seen[v] {
					seen[v] = true
					comp = append(comp, v)
				}
			}
		}
		slices.Sort(comp)
		comps = append(comps, comp)
	}
	return comps
}
