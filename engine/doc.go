// Package engine implements the round scheduler of a simulation run.
//
// The Engine owns the run lifecycle: it seeds round-0 priors into the belief
// store, then drives rounds strictly in sequence until the round budget is
// spent, an early-stop predicate holds, a systemic fault aborts the run, or
// the caller cancels.
//
// # Rounds
//
// Every round follows the same steps:
//   - gather each agent's observation set from decisions committed before
//     the round
//   - fan Decide out over an errgroup bounded by Config.Workers
//   - wait for every decision, faults included
//   - append results to the belief store one by one in ascending agent id
//   - hand the round record to the recorder
//
// Policies never see a decision of the round they are taking part in.
//
// # Faults
//
// A policy error, panic, empty choice or timeout is a per-agent fault. The
// agent keeps its last choice for the round and the decision is recorded
// with status "failed". When the faulted share of a round reaches
// Config.FaultThreshold the round is still recorded and the run ends with a
// core.SystemicFaultAbort.
//
// # Cancellation
//
// Context cancellation and Abort are checked between rounds only. A round
// in flight always completes, so recorded history never holds half a round.
//
// # Usage
//
//	g, _ := topology.Build(core.TopologySpec{Family: core.FamilyRing, Size: 10})
//	agents := engine.AgentsFor(g, func(core.AgentID) core.Policy { return policy.MajorityCopy{} })
//	eng, err := engine.New(g, agents, func(o *engine.Options) {
//	    o.Seed = 42
//	    o.Priors = priors
//	    o.Config.StopOnConvergence = true
//	})
//	if err != nil {
//	    return err
//	}
//	run, err := eng.Run(ctx)
//
// # Hooks
//
// A CallbackManager passed in Options receives BeforeRound, AfterRound,
// OnFault and OnStatusChange callbacks on the scheduler goroutine.
//
// # Metrics
//
// Round, decision and run counters are registered with the default
// Prometheus registry under the misinfo_ prefix.
package engine
