// Package policy provides the decision policies agents can be bound to.
//
// Deterministic policies (Constant, Stubborn, Sequence, MajorityCopy and
// Scripted functions) are pure functions of their DecisionInput. Voter draws
// only from the per-(agent, round) stream carried in the input. Delegate asks
// a language model and parses its JSON reply; it is paced by a token bucket
// and capped by a CallBudget shared across agents.
//
// Shock and Faulty wrap another policy to inject information shocks and
// faults for selected agents.
package policy
