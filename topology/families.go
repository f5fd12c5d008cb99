package topology

import (
	"math/rand/v2"
	"slices"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// ring links every node to its k/2 nearest neighbours on each side.
func ring(spec core.TopologySpec) (*builder, error) {
	k, err := latticeK(spec)
	if err != nil {
		return nil, err
	}
	return lattice(spec.Size, k), nil
}

func lattice(n, k int) *builder {
	b := newBuilder(n, false)
	for u := 0; u < n; u++ {
		for j := 1; j <= k/2; j++ {
			b.addEdge(core.AgentID(u), core.AgentID((u+j)%n))
		}
	}
	return b
}

// smallWorld is the Watts–Strogatz model: a ring lattice whose edges are each
// rewired to a uniformly chosen new endpoint with probability beta.
func smallWorld(spec core.TopologySpec, rng *rand.Rand) (*builder, error) {
	k, err := latticeK(spec)
	if err != nil {
		return nil, err
	}
	beta := spec.ConnectivityParam
	if beta < 0 || beta > 1 {
		return nil, invalid(spec, "rewiring probability must be in [0,1], got %g", beta)
	}
	n := spec.Size
	b := lattice(n, k)
	for j := 1; j <= k/2; j++ {
		for u := 0; u < n; u++ {
			if rng.Float64() >= beta {
				continue
			}
			src, dst := core.AgentID(u), core.AgentID((u+j)%n)
			if b.degree(src) >= n-1 {
				continue
			}
			w := core.AgentID(rng.IntN(n))
			for w == src || b.hasEdge(src, w) {
				w = core.AgentID(rng.IntN(n))
			}
			b.removeEdge(src, dst)
			b.addEdge(src, w)
		}
	}
	return b, nil
}

// scaleFree is the Barabási–Albert preferential attachment model with m
// edges per arriving node, starting from a star over the first m+1 nodes.
func scaleFree(spec core.TopologySpec, rng *rand.Rand) (*builder, error) {
	m := int(spec.ConnectivityParam)
	if m == 0 {
		m = defaultAttachment
	}
	n := spec.Size
	if m < 1 || m >= n {
		return nil, invalid(spec, "attachment count must be in [1,%d), got %d", n, m)
	}
	b := newBuilder(n, false)
	repeated := make([]core.AgentID, 0, 2*m*n)
	for v := 1; v <= m; v++ {
		b.addEdge(0, core.AgentID(v))
		repeated = append(repeated, 0, core.AgentID(v))
	}
	for source := m + 1; source < n; source++ {
		targets := make([]core.AgentID, 0, m)
		for len(targets) < m {
			t := repeated[rng.IntN(len(repeated))]
			if !slices.Contains(targets, t) {
				targets = append(targets, t)
			}
		}
		for _, t := range targets {
			b.addEdge(core.AgentID(source), t)
			repeated = append(repeated, t, core.AgentID(source))
		}
	}
	return b, nil
}

// erdosRenyi includes each possible undirected edge independently with
// probability p.
func erdosRenyi(spec core.TopologySpec, rng *rand.Rand) (*builder, error) {
	p := spec.ConnectivityParam
	if p < 0 || p > 1 {
		return nil, invalid(spec, "edge probability must be in [0,1], got %g", p)
	}
	n := spec.Size
	b := newBuilder(n, false)
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			if rng.Float64() < p {
				b.addEdge(core.AgentID(u), core.AgentID(v))
			}
		}
	}
	return b, nil
}

// stochasticBlock links nodes in the same block with probability P and
// across blocks with probability Q. Block sizes that fall short of Size get
// a final remainder block. EnsureConnected "resample" redraws with
// successive seeds until the graph is connected; "augment" bridges
// consecutive components with a single edge each.
func stochasticBlock(spec core.TopologySpec) (*builder, error) {
	n := spec.Size
	sizes := slices.Clone(spec.Sizes)
	total := 0
	for _, s := range sizes {
		if s <= 0 {
			return nil, invalid(spec, "block sizes must be positive")
		}
		total += s
	}
	switch {
	case total > n:
		return nil, invalid(spec, "block sizes sum to %d, more than %d nodes", total, n)
	case total < n:
		sizes = append(sizes, n-total)
	}
	block := make([]int, 0, n)
	for i, s := range sizes {
		for j := 0; j < s; j++ {
			block = append(block, i)
		}
	}

	draw := func(seed uint64) *builder {
		rng := newRand(seed)
		b := newBuilder(n, false)
		for u := 0; u < n; u++ {
			for v := u + 1; v < n; v++ {
				p := spec.Q
				if block[u] == block[v] {
					p = spec.P
				}
				if rng.Float64() < p {
					b.addEdge(core.AgentID(u), core.AgentID(v))
				}
			}
		}
		return b
	}

	b := draw(spec.Seed)
	switch spec.EnsureConnected {
	case "resample":
		for i := uint64(1); len(b.components()) > 1; i++ {
			if i > maxResamples {
				return nil, invalid(spec, "no connected sample after %d attempts", maxResamples)
			}
			b = draw(spec.Seed + i)
		}
	case "augment":
		comps := b.components()
		for i := 0; i+1 < len(comps); i++ {
			b.addEdge(comps[i][0], comps[i+1][0])
		}
	}
	return b, nil
}

// royalFamily builds a fully connected core linked to every other node,
// with the remaining nodes on a ring of LocalNeighbors/2 neighbours per side.
func royalFamily(spec core.TopologySpec) (*builder, error) {
	n := spec.Size
	coreSize := spec.CoreSize
	if coreSize == 0 {
		coreSize = defaultCoreSize
	}
	local := spec.LocalNeighbors
	if local == 0 {
		local = defaultLocalNeighbors
	}
	if coreSize >= n {
		return nil, invalid(spec, "core of %d leaves no other nodes among %d", coreSize, n)
	}
	b := newBuilder(n, false)
	for i := 0; i < coreSize; i++ {
		for j := i + 1; j < coreSize; j++ {
			b.addEdge(core.AgentID(i), core.AgentID(j))
		}
	}
	others := n - coreSize
	for i := coreSize; i < n; i++ {
		for c := 0; c < coreSize; c++ {
			b.addEdge(core.AgentID(i), core.AgentID(c))
		}
		for j := 1; j <= local/2; j++ {
			next := (i-coreSize+j)%others + coreSize
			prev := ((i-coreSize-j)%others+others)%others + coreSize
			b.addEdge(core.AgentID(i), core.AgentID(next))
			b.addEdge(core.AgentID(i), core.AgentID(prev))
		}
	}
	return b, nil
}

func complete(n int) *builder {
	b := newBuilder(n, false)
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			b.addEdge(core.AgentID(u), core.AgentID(v))
		}
	}
	return b
}

func custom(spec core.TopologySpec) (*builder, error) {
	n := spec.Size
	b := newBuilder(n, spec.Directed)
	for _, e := range spec.Edges {
		if e.From < 0 || int(e.From) >= n || e.To < 0 || int(e.To) >= n {
			return nil, invalid(spec, "edge %d-%d references a node outside 0..%d", e.From, e.To, n-1)
		}
		if e.From == e.To {
			return nil, invalid(spec, "self loop on node %d", e.From)
		}
		b.addEdge(e.From, e.To)
	}
	return b, nil
}
