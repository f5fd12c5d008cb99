package policy

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBudgetExhausted is returned once a CallBudget has no calls left.
var ErrBudgetExhausted = errors.New("model call budget exhausted")

// CallBudget enforces a maximum number of model calls per run. It is shared
// by every delegate agent of a run.
type CallBudget struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCallBudget creates a budget allowing max calls. If max == 0, unlimited
// calls are allowed.
func NewCallBudget(max int) *CallBudget {
	return &CallBudget{max: max}
}

// Acquire reserves one call, failing once the limit is reached. A failed
// Acquire does not consume budget.
func (b *CallBudget) Acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && b.count >= b.max {
		return fmt.Errorf("%w: %d calls", ErrBudgetExhausted, b.max)
	}
	b.count++
	return nil
}

// Count returns the number of calls made.
func (b *CallBudget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (b *CallBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max == 0 {
		return -1
	}
	return b.max - b.count
}
