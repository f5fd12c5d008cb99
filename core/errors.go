package core

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is.
var (
	ErrInvalidTopology = errors.New("invalid topology")
	ErrOutOfOrderWrite = errors.New("out of order belief write")
	ErrDecision        = errors.New("decision failed")
	ErrDecisionTimeout = errors.New("decision timed out")
	ErrSystemicFault   = errors.New("systemic fault abort")
	ErrAborted         = errors.New("run aborted")
	ErrSealed          = errors.New("run already sealed")
	ErrNoPrior         = errors.New("no prior available")
)

// InvalidTopologyError reports a topology spec that cannot produce a usable
// graph. It is fatal during initialization.
type InvalidTopologyError struct {
	Family Family
	Reason string
}

// Error implements error.
func (e *InvalidTopologyError) Error() string {
	return fmt.Sprintf("invalid topology %q: %s", e.Family, e.Reason)
}

// Is matches ErrInvalidTopology.
func (e *InvalidTopologyError) Is(target error) bool { return target == ErrInvalidTopology }

// OutOfOrderWriteError reports a belief write that skipped or repeated a
// round. It indicates a broken round barrier and is fatal.
type OutOfOrderWriteError struct {
	Agent AgentID
	Want  int
	Got   int
}

// Error implements error.
func (e *OutOfOrderWriteError) Error() string {
	return fmt.Sprintf("agent %d: belief write for round %d, expected round %d", e.Agent, e.Got, e.Want)
}

// Is matches ErrOutOfOrderWrite.
func (e *OutOfOrderWriteError) Is(target error) bool { return target == ErrOutOfOrderWrite }

// DecisionError is a recoverable per-agent fault.
type DecisionError struct {
	Agent AgentID
	Round int
	Err   error
}

// Error implements error.
func (e *DecisionError) Error() string {
	return fmt.Sprintf("agent %d round %d: decision failed: %v", e.Agent, e.Round, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DecisionError) Unwrap() error { return e.Err }

// Is matches ErrDecision.
func (e *DecisionError) Is(target error) bool { return target == ErrDecision }

// DecisionTimeoutError is a DecisionError raised when a policy did not answer
// within the caller-supplied timeout.
type DecisionTimeoutError struct {
	Agent AgentID
	Round int
	After string
}

// Error implements error.
func (e *DecisionTimeoutError) Error() string {
	return fmt.Sprintf("agent %d round %d: decision timed out after %s", e.Agent, e.Round, e.After)
}

// Is matches both ErrDecisionTimeout and ErrDecision.
func (e *DecisionTimeoutError) Is(target error) bool {
	return target == ErrDecisionTimeout || target == ErrDecision
}

// SystemicFaultAbort is returned when the share of faulted agents in a round
// reached the configured threshold.
type SystemicFaultAbort struct {
	Round     int
	Faults    int
	Agents    int
	Threshold float64
}

// Error implements error.
func (e *SystemicFaultAbort) Error() string {
	return fmt.Sprintf("round %d: %d of %d agents faulted (threshold %.2f)", e.Round, e.Faults, e.Agents, e.Threshold)
}

// Is matches ErrSystemicFault and ErrAborted.
func (e *SystemicFaultAbort) Is(target error) bool {
	return target == ErrSystemicFault || target == ErrAborted
}

// NewDecisionError wraps err as a DecisionError unless it already is one.
func NewDecisionError(agent AgentID, round int, err error) error {
	if err == nil {
		err = errors.New("policy returned no decision")
	}
	if errors.Is(err, ErrDecision) {
		return err
	}
	return &DecisionError{Agent: agent, Round: round, Err: err}
}
