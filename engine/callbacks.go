package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// CallbackType defines the lifecycle points where callbacks can be executed.
//
// Available callback types:
//   - BeforeRound/AfterRound: around every round from 1 on
//   - OnFault: for each agent whose decision faulted, after the barrier
//   - OnStatusChange: when the run moves between lifecycle states
//
// Callbacks are executed synchronously on the scheduler goroutine, never
// concurrently with a round's decisions.
type CallbackType string

const (
	// CallbackBeforeRound is triggered after observations are gathered and
	// before any decision of the round is taken.
	CallbackBeforeRound CallbackType = "before_round"

	// CallbackAfterRound is triggered once the round record is committed.
	CallbackAfterRound CallbackType = "after_round"

	// CallbackOnFault is triggered for every faulted decision.
	CallbackOnFault CallbackType = "on_fault"

	// CallbackOnStatusChange is triggered on every run status transition.
	CallbackOnStatusChange CallbackType = "on_status_change"
)

// CallbackContext carries what a callback may inspect. Fields not relevant
// to the callback type are left zero.
type CallbackContext struct {
	RunID        string
	CallbackType CallbackType
	Round        int
	Status       core.RunStatus

	// Agent and Err describe a fault.
	Agent core.AgentID
	Err   error

	// Observations is set for BeforeRound, indexed by agent id.
	Observations []core.ObservationSet

	// Record is set for AfterRound and must be treated as read-only.
	Record *core.RoundRecord
}

// Callback defines the interface for run lifecycle hooks.
//
// A BeforeRound or AfterRound callback returning an error aborts the run;
// errors from OnFault and OnStatusChange callbacks are logged and ignored.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	progress := NewFunctionCallback(
//	    CallbackAfterRound,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        fmt.Printf("round %d done\n", cc.Round)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager is a registry of callbacks executed in registration order.
// Registration and execution are safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs every callback registered for callbackType. The
// first error stops execution and is returned.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}
	return nil
}

// LoggingCallback forwards lifecycle events to a logging function.
//
// Example:
//
//	callback := NewLoggingCallback(CallbackAfterRound, func(msg string) {
//	    log.Printf("[ENGINE] %s", msg)
//	})
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event. Without a logger function it silently succeeds.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	switch c.callbackType {
	case CallbackOnFault:
		c.logger(fmt.Sprintf("[%s] run=%s round=%d agent=%d err=%v",
			c.callbackType, callbackCtx.RunID, callbackCtx.Round, callbackCtx.Agent, callbackCtx.Err))
	case CallbackOnStatusChange:
		c.logger(fmt.Sprintf("[%s] run=%s status=%s", c.callbackType, callbackCtx.RunID, callbackCtx.Status))
	default:
		c.logger(fmt.Sprintf("[%s] run=%s round=%d", c.callbackType, callbackCtx.RunID, callbackCtx.Round))
	}
	return nil
}
