package core

import (
	"slices"
	"time"
)

// RunStatus is the engine lifecycle state recorded on a run.
type RunStatus string

// Engine states.
const (
	RunInitializing RunStatus = "initializing"
	RunRunning      RunStatus = "running"
	RunCompleted    RunStatus = "completed"
	RunAborted      RunStatus = "aborted"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool { return s == RunCompleted || s == RunAborted }

// AgentRound is one agent's slice of a round: what it saw and what it did.
type AgentRound struct {
	Agent        AgentID        `json:"agent"`
	Observations ObservationSet `json:"observations"`
	Decision     Decision       `json:"decision"`
}

// RoundRecord is the immutable record of a single round. Entries are ordered
// by ascending agent id. Round 0 holds the seeded priors.
type RoundRecord struct {
	Round         int          `json:"round"`
	Entries       []AgentRound `json:"entries"`
	Faults        int          `json:"faults"`
	FaultFraction float64      `json:"fault_fraction"`
}

// Choices returns each agent's choice for the round, indexed by agent id.
func (r RoundRecord) Choices() []string {
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Decision.Choice
	}
	return out
}

// Clone returns a deep copy of the record.
func (r RoundRecord) Clone() RoundRecord {
	out := r
	out.Entries = make([]AgentRound, len(r.Entries))
	for i, e := range r.Entries {
		e.Observations.Entries = slices.Clone(e.Observations.Entries)
		for j, o := range e.Observations.Entries {
			e.Observations.Entries[j].Payoff = clonePayoff(o.Payoff)
		}
		e.Decision.Payoff = clonePayoff(e.Decision.Payoff)
		out.Entries[i] = e
	}
	return out
}

func clonePayoff(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Provenance identifies how and when a run was produced.
type Provenance struct {
	Seed       uint64    `json:"seed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Revision   string    `json:"revision,omitempty"`
	GoVersion  string    `json:"go_version,omitempty"`
}

// Usage totals the language model calls made during a run.
type Usage struct {
	Calls            int     `json:"calls"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost,omitempty"`
}

// RunMetadata is handed to the recorder when the run is sealed.
type RunMetadata struct {
	ID string `json:"id"`
	// BatchID groups the runs of one sweep.
	BatchID     string         `json:"batch_id,omitempty"`
	Status      RunStatus      `json:"status"`
	AbortReason string         `json:"abort_reason,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
	Provenance  Provenance     `json:"provenance"`
	Usage       *Usage         `json:"usage,omitempty"`
}

// Run is one complete, sealed execution of a simulation.
type Run struct {
	RunMetadata
	Rounds  []RoundRecord `json:"rounds"`
	Summary Summary       `json:"summary"`
}

// RoundSummary holds derived statistics for a single round.
type RoundSummary struct {
	Round               int                `json:"round"`
	ChoiceFractions     map[string]float64 `json:"choice_fractions"`
	ModalChoice         string             `json:"modal_choice"`
	ConvergenceFraction float64            `json:"convergence_fraction"`
	SwitchRate          *float64           `json:"switch_rate,omitempty"`
	Faults              int                `json:"faults"`

	// Ground-truth statistics, present only when the experiment names a
	// correct choice.
	CorrectProportion     *float64  `json:"correct_proportion,omitempty"`
	CorrectAgents         []AgentID `json:"correct_agents,omitempty"`
	MisinformedAgents     []AgentID `json:"misinformed_agents,omitempty"`
	ConsensusScore        *float64  `json:"consensus_score,omitempty"`
	RecoveryRate          *float64  `json:"recovery_rate,omitempty"`
	CascadeDepth          *int      `json:"cascade_depth,omitempty"`
	CascadeBreadth        *float64  `json:"cascade_breadth,omitempty"`
	StructuralVirality    *float64  `json:"structural_virality,omitempty"`
	FractionalResilience  *float64  `json:"fractional_resilience,omitempty"`
	TopologicalResilience *float64  `json:"topological_resilience,omitempty"`
}

// Summary is computed once, when the run is sealed.
type Summary struct {
	RoundsExecuted      int            `json:"rounds_executed"`
	Converged           bool           `json:"converged"`
	FinalChoice         string         `json:"final_choice,omitempty"`
	TotalFaults         int            `json:"total_faults"`
	Rounds              []RoundSummary `json:"rounds"`
	TimeBasedResilience *float64       `json:"time_based_resilience,omitempty"`
}

// ConvergenceSeries returns the convergence fraction of every round.
func (s Summary) ConvergenceSeries() []float64 {
	out := make([]float64, len(s.Rounds))
	for i, r := range s.Rounds {
		out[i] = r.ConvergenceFraction
	}
	return out
}
