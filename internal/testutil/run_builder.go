package testutil

import (
	"time"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// RunBuilder helps construct sealed runs with fluent chaining for tests.
// Example:
//
//	run := NewRunBuilder("run-1").Seed(42).Config("name", "demo").Rounds(r0, r1).Build()
type RunBuilder struct {
	meta    core.RunMetadata
	rounds  []core.RoundRecord
	summary core.Summary
}

// NewRunBuilder creates a builder for a completed run with the given id and
// fixed provenance timestamps.
func NewRunBuilder(id string) *RunBuilder {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &RunBuilder{meta: core.RunMetadata{
		ID:     id,
		Status: core.RunCompleted,
		Config: map[string]any{},
		Provenance: core.Provenance{
			StartedAt:  start,
			FinishedAt: start.Add(time.Second),
		},
	}}
}

// Seed sets the provenance seed (chainable).
func (b *RunBuilder) Seed(seed uint64) *RunBuilder { b.meta.Provenance.Seed = seed; return b }

// Batch places the run in a sweep (chainable).
func (b *RunBuilder) Batch(id string) *RunBuilder { b.meta.BatchID = id; return b }

// Usage sets the model usage totals (chainable).
func (b *RunBuilder) Usage(u core.Usage) *RunBuilder { b.meta.Usage = &u; return b }

// Aborted marks the run aborted with a reason (chainable).
func (b *RunBuilder) Aborted(reason string) *RunBuilder {
	b.meta.Status = core.RunAborted
	b.meta.AbortReason = reason
	return b
}

// Config sets or overwrites a config key/value pair (chainable).
func (b *RunBuilder) Config(key string, val any) *RunBuilder {
	b.meta.Config[key] = val
	return b
}

// Rounds appends round records (chainable).
func (b *RunBuilder) Rounds(recs ...core.RoundRecord) *RunBuilder {
	b.rounds = append(b.rounds, recs...)
	return b
}

// Summary sets the run summary (chainable). Without it Build derives the
// executed round and fault counts only.
func (b *RunBuilder) Summary(s core.Summary) *RunBuilder {
	b.summary = s
	return b
}

// Build returns a *core.Run with the configured metadata and rounds.
func (b *RunBuilder) Build() *core.Run {
	s := b.summary
	if s.RoundsExecuted == 0 && len(b.rounds) > 0 {
		s.RoundsExecuted = len(b.rounds) - 1
	}
	if s.TotalFaults == 0 {
		for _, r := range b.rounds {
			s.TotalFaults += r.Faults
		}
	}
	return &core.Run{
		RunMetadata: b.meta,
		Rounds:      append([]core.RoundRecord(nil), b.rounds...),
		Summary:     s,
	}
}
