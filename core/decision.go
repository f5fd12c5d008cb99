package core

// DecisionStatus classifies how a decision came about.
type DecisionStatus string

const (
	// StatusPrior marks a round-0 belief seeded before the first round.
	StatusPrior DecisionStatus = "prior"
	// StatusOK marks a decision returned by the agent's policy.
	StatusOK DecisionStatus = "ok"
	// StatusFailed marks a faulted decision whose choice was carried forward
	// from the agent's last valid decision.
	StatusFailed DecisionStatus = "failed"
)

// Decision is an agent's public choice for one round plus its justification.
type Decision struct {
	Round         int            `json:"round"`
	Choice        string         `json:"choice"`
	Justification string         `json:"justification,omitempty"`
	Payoff        *float64       `json:"payoff,omitempty"`
	Status        DecisionStatus `json:"status"`
	Fault         string         `json:"fault,omitempty"`
	Raw           string         `json:"raw,omitempty"`
}

// Valid reports whether the decision counts as a genuine belief (a prior or a
// successful policy decision) rather than a carry-forward.
func (d Decision) Valid() bool {
	return d.Status == StatusPrior || d.Status == StatusOK
}

// CarryForward builds the failed decision recorded when an agent faults at
// round. The agent keeps its last valid choice and justification; raw is
// the unusable backend output, if any.
func CarryForward(last Decision, round int, fault error, raw string) Decision {
	d := Decision{
		Round:         round,
		Choice:        last.Choice,
		Justification: last.Justification,
		Status:        StatusFailed,
		Raw:           raw,
	}
	if fault != nil {
		d.Fault = fault.Error()
	}
	return d
}

// Observation is one neighbour's most recent public decision as seen by an
// agent at the start of a round. Observed is false when the neighbour had
// no decision yet; the entry is kept so cardinality stays fixed.
type Observation struct {
	Neighbor      AgentID        `json:"neighbor"`
	Observed      bool           `json:"observed"`
	Round         int            `json:"round"`
	Choice        string         `json:"choice,omitempty"`
	Justification string         `json:"justification,omitempty"`
	Payoff        *float64       `json:"payoff,omitempty"`
	Status        DecisionStatus `json:"status,omitempty"`
}

// ObservationSet is the ordered view of neighbour decisions an agent receives
// before deciding at Round. Entries are sorted by ascending neighbour id and
// there is exactly one entry per graph neighbour.
type ObservationSet struct {
	Agent   AgentID       `json:"agent"`
	Round   int           `json:"round"`
	Entries []Observation `json:"entries"`
}

// Len returns the number of entries.
func (s ObservationSet) Len() int { return len(s.Entries) }

// Observed returns only the entries whose neighbour had decided.
func (s ObservationSet) Observed() []Observation {
	out := make([]Observation, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.Observed {
			out = append(out, e)
		}
	}
	return out
}

// Counts tallies observed choices.
func (s ObservationSet) Counts() map[string]int {
	counts := make(map[string]int, len(s.Entries))
	for _, e := range s.Entries {
		if e.Observed {
			counts[e.Choice]++
		}
	}
	return counts
}
