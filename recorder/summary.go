package recorder

import (
	"slices"

	"github.com/PaoloBova/llm-networks-misinformation/core"
	"github.com/PaoloBova/llm-networks-misinformation/metrics"
)

// Tally returns the share of agents holding each choice in rec, the modal
// choice and its share. Ties between modal choices resolve to the
// lexicographically smallest.
func Tally(rec core.RoundRecord) (fractions map[string]float64, modal string, share float64) {
	n := len(rec.Entries)
	fractions = make(map[string]float64)
	if n == 0 {
		return fractions, "", 0
	}
	counts := make(map[string]int)
	for _, e := range rec.Entries {
		counts[e.Decision.Choice]++
	}
	best := -1
	for choice, c := range counts {
		fractions[choice] = float64(c) / float64(n)
		if c > best || (c == best && choice < modal) {
			best, modal = c, choice
		}
	}
	return fractions, modal, float64(best) / float64(n)
}

// Summarize derives the run summary from its round records.
func Summarize(rounds []core.RoundRecord, opts Options) core.Summary {
	s := core.Summary{Rounds: make([]core.RoundSummary, 0, len(rounds))}
	if len(rounds) == 0 {
		return s
	}
	s.RoundsExecuted = len(rounds) - 1

	truth := opts.Truth != ""
	initialCorrect := 0
	if truth {
		initialCorrect = countChoice(rounds[0], opts.Truth)
	}

	var correctSeries []float64
	for i, rec := range rounds {
		fractions, modal, share := Tally(rec)
		rs := core.RoundSummary{
			Round:               rec.Round,
			ChoiceFractions:     fractions,
			ModalChoice:         modal,
			ConvergenceFraction: share,
			Faults:              rec.Faults,
		}
		s.TotalFaults += rec.Faults
		if i > 0 {
			rate := switchRate(rounds[i-1], rec)
			rs.SwitchRate = &rate
		}
		if truth {
			correctSeries = append(correctSeries, groundTruth(&rs, rec, initialCorrect, opts))
		}
		s.Rounds = append(s.Rounds, rs)
	}

	last := s.Rounds[len(s.Rounds)-1]
	s.FinalChoice = last.ModalChoice
	s.Converged = last.ConvergenceFraction >= 1-opts.ConvergenceTolerance
	if truth {
		tbr := metrics.TimeBasedResilience(correctSeries, opts.ResilienceThreshold)
		s.TimeBasedResilience = &tbr
	}
	return s
}

func groundTruth(rs *core.RoundSummary, rec core.RoundRecord, initialCorrect int, opts Options) float64 {
	n := len(rec.Entries)
	correct := make([]core.AgentID, 0, n)
	misinformed := make([]core.AgentID, 0, n)
	for _, e := range rec.Entries {
		if e.Decision.Choice == opts.Truth {
			correct = append(correct, e.Agent)
		} else {
			misinformed = append(misinformed, e.Agent)
		}
	}
	proportion := 0.0
	if n > 0 {
		proportion = float64(len(correct)) / float64(n)
	}
	consensus := metrics.ConsensusScore(n, initialCorrect, len(correct))
	recovery := metrics.RecoveryRate(len(correct), len(misinformed), rec.Round)
	rs.CorrectProportion = &proportion
	rs.CorrectAgents = correct
	rs.MisinformedAgents = misinformed
	rs.ConsensusScore = &consensus
	rs.RecoveryRate = &recovery

	if g := opts.Graph; g != nil {
		breadth := metrics.CascadeBreadth(g, correct)
		virality := metrics.StructuralVirality(g, correct)
		fractional := metrics.FractionalResilience(g, correct)
		topological := metrics.TopologicalResilience(g, misinformed)
		rs.CascadeBreadth = &breadth
		rs.StructuralVirality = &virality
		rs.FractionalResilience = &fractional
		rs.TopologicalResilience = &topological
		if opts.Source != nil {
			depth := metrics.CascadeDepth(g, correct, *opts.Source)
			rs.CascadeDepth = &depth
		}
	}
	return proportion
}

func countChoice(rec core.RoundRecord, choice string) int {
	n := 0
	for _, e := range rec.Entries {
		if e.Decision.Choice == choice {
			n++
		}
	}
	return n
}

func switchRate(prev, cur core.RoundRecord) float64 {
	if len(cur.Entries) == 0 {
		return 0
	}
	before := make(map[core.AgentID]string, len(prev.Entries))
	for _, e := range prev.Entries {
		before[e.Agent] = e.Decision.Choice
	}
	switched := 0
	for _, e := range cur.Entries {
		if c, ok := before[e.Agent]; ok && c != e.Decision.Choice {
			switched++
		}
	}
	return float64(switched) / float64(len(cur.Entries))
}

// ChoiceSet returns the distinct choices present in rounds, sorted.
func ChoiceSet(rounds []core.RoundRecord) []string {
	var out []string
	for _, rec := range rounds {
		for _, e := range rec.Entries {
			if !slices.Contains(out, e.Decision.Choice) {
				out = append(out, e.Decision.Choice)
			}
		}
	}
	slices.Sort(out)
	return out
}
