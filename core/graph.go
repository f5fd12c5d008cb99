package core

// Graph is the read-only network an experiment runs on. Nodes are the agent
// ids 0..Size()-1. Neighbors lists the agents whose public decisions an
// agent observes, in ascending order. For directed graphs an edge u->v means
// u observes v.
type Graph interface {
	Size() int
	Nodes() []AgentID
	Neighbors(id AgentID) []AgentID
	Directed() bool
	Edges() []Edge
}

// Edge is a single observation relationship.
type Edge struct {
	From AgentID `json:"from" yaml:"from" toml:"from"`
	To   AgentID `json:"to" yaml:"to" toml:"to"`
}

// Family names a graph generator.
type Family string

// Supported graph families.
const (
	FamilyRing            Family = "ring"
	FamilySmallWorld      Family = "small-world"
	FamilyScaleFree       Family = "scale-free"
	FamilyCustom          Family = "custom"
	FamilyErdosRenyi      Family = "erdos-renyi"
	FamilyStochasticBlock Family = "stochastic-block"
	FamilyRoyalFamily     Family = "royal-family"
	FamilyComplete        Family = "complete"
)

// Connectivity is the structural requirement a generated graph must meet.
type Connectivity string

const (
	// ConnectivityNone accepts any graph.
	ConnectivityNone Connectivity = "none"
	// ConnectivityNoIsolated rejects graphs with a node that has no neighbour.
	ConnectivityNoIsolated Connectivity = "no-isolated"
	// ConnectivityConnected rejects graphs with more than one component.
	ConnectivityConnected Connectivity = "connected"
)

// TopologySpec is the validated input of the topology provider.
//
// ConnectivityParam is family specific: the rewiring probability for
// small-world, the attachment count for scale-free and the edge probability
// for erdos-renyi.
type TopologySpec struct {
	Family            Family       `json:"family" yaml:"family" toml:"family" validate:"required,oneof=ring small-world scale-free custom erdos-renyi stochastic-block royal-family complete"`
	Size              int          `json:"size" yaml:"size" toml:"size" validate:"gte=0"`
	Seed              uint64       `json:"seed" yaml:"seed" toml:"seed"`
	ConnectivityParam float64      `json:"connectivity_param" yaml:"connectivity_param" toml:"connectivity_param" validate:"gte=0"`
	Connectivity      Connectivity `json:"connectivity,omitempty" yaml:"connectivity,omitempty" toml:"connectivity,omitempty" validate:"omitempty,oneof=none no-isolated connected"`

	// K is the lattice degree for ring and small-world (even, default 2).
	K int `json:"k,omitempty" yaml:"k,omitempty" toml:"k,omitempty" validate:"gte=0"`

	// Sizes, P, Q and EnsureConnected configure stochastic-block graphs.
	Sizes           []int   `json:"sizes,omitempty" yaml:"sizes,omitempty" toml:"sizes,omitempty"`
	P               float64 `json:"p,omitempty" yaml:"p,omitempty" toml:"p,omitempty" validate:"gte=0,lte=1"`
	Q               float64 `json:"q,omitempty" yaml:"q,omitempty" toml:"q,omitempty" validate:"gte=0,lte=1"`
	EnsureConnected string  `json:"ensure_connected,omitempty" yaml:"ensure_connected,omitempty" toml:"ensure_connected,omitempty" validate:"omitempty,oneof=resample augment"`

	// CoreSize and LocalNeighbors configure royal-family graphs.
	CoreSize       int `json:"core_size,omitempty" yaml:"core_size,omitempty" toml:"core_size,omitempty" validate:"gte=0"`
	LocalNeighbors int `json:"local_neighbors,omitempty" yaml:"local_neighbors,omitempty" toml:"local_neighbors,omitempty" validate:"gte=0"`

	// Edges and Directed configure custom graphs.
	Edges    []Edge `json:"edges,omitempty" yaml:"edges,omitempty" toml:"edges,omitempty"`
	Directed bool   `json:"directed,omitempty" yaml:"directed,omitempty" toml:"directed,omitempty"`
}

// Requirement returns the configured connectivity requirement, defaulting to
// ConnectivityNoIsolated.
func (s TopologySpec) Requirement() Connectivity {
	if s.Connectivity == "" {
		return ConnectivityNoIsolated
	}
	return s.Connectivity
}
