// Package recorder keeps the append-only round log of a run and seals it
// into a core.Run with its derived summary.
package recorder

import (
	"fmt"
	"sync"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// Options configure the statistics computed when a run is sealed.
type Options struct {
	// Truth is the correct choice. Ground-truth statistics are only computed
	// when it is set.
	Truth string
	// Source is the agent seeded with the truth; cascade depth is measured
	// from it. Nil disables cascade depth.
	Source *core.AgentID
	// Graph enables the structural cascade and resilience statistics.
	Graph core.Graph
	// ConvergenceTolerance marks the run converged when the final modal
	// share reaches 1 - ConvergenceTolerance.
	ConvergenceTolerance float64
	// ResilienceThreshold is the correct proportion used for time-based
	// resilience.
	ResilienceThreshold float64
}

// DefaultOptions are used when no options are supplied.
var DefaultOptions = Options{
	ResilienceThreshold: 0.5,
}

// Recorder accumulates round records until Finalize seals the run.
// Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	opts   Options
	rounds []core.RoundRecord
	run    *core.Run
}

// New creates an empty recorder.
func New(optFns ...func(o *Options)) *Recorder {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Recorder{opts: opts}
}

// RecordRound appends rec. Rounds must arrive consecutively from 0. The
// record is copied, so later changes by the caller are not observed.
func (r *Recorder) RecordRound(rec core.RoundRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run != nil {
		return core.ErrSealed
	}
	if rec.Round != len(r.rounds) {
		return fmt.Errorf("record round %d: expected round %d", rec.Round, len(r.rounds))
	}
	r.rounds = append(r.rounds, rec.Clone())
	return nil
}

// Rounds returns a copy of the records written so far.
func (r *Recorder) Rounds() []core.RoundRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.RoundRecord, len(r.rounds))
	for i, rec := range r.rounds {
		out[i] = rec.Clone()
	}
	return out
}

// Len returns the number of records written.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rounds)
}

// Sealed reports whether Finalize has been called.
func (r *Recorder) Sealed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run != nil
}

// Finalize seals the recorder and returns the complete run. Any later call
// to RecordRound or Finalize fails with core.ErrSealed.
func (r *Recorder) Finalize(meta core.RunMetadata) (*core.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run != nil {
		return nil, core.ErrSealed
	}
	r.run = &core.Run{
		RunMetadata: meta,
		Rounds:      r.rounds,
		Summary:     Summarize(r.rounds, r.opts),
	}
	return r.run, nil
}
