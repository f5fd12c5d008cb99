// Package core provides the foundational domain types and interfaces of the
// misinformation simulation harness. It defines the core abstractions for:
//
//   - Agents and their pluggable decision policies (Policy, PriorPolicy)
//   - Decisions and the neighbour observations an agent sees before deciding
//   - The read-only network Graph and the TopologySpec it is built from
//   - Round records and sealed Runs with provenance and summary statistics
//   - Pluggable stores for beliefs (BeliefStore) and finished runs (RunSink)
//   - The error taxonomy shared by the engine and its collaborators
//
// The package intentionally keeps implementation concerns (graph generation,
// scheduling, persistence, LLM backends) out of scope, exposing small
// interfaces so experiments can swap in custom backends and extensions.
package core
