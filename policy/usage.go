package policy

import (
	"sync"

	"github.com/PaoloBova/llm-networks-misinformation/core"
	"github.com/PaoloBova/llm-networks-misinformation/model"
)

// Pricing is the cost of 1000 tokens, in whatever currency the experiment
// reports.
type Pricing struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// UsageMeter totals model calls and token usage across the delegates of a
// run. Safe for concurrent use.
type UsageMeter struct {
	mu      sync.Mutex
	pricing Pricing
	usage   core.Usage
}

// NewUsageMeter creates an empty meter.
func NewUsageMeter(pricing Pricing) *UsageMeter {
	return &UsageMeter{pricing: pricing}
}

// Add counts one model call. u may be nil when the backend reports no usage.
func (m *UsageMeter) Add(u *model.TokenUsage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.usage.Calls++
	if u == nil {
		return
	}
	m.usage.PromptTokens += u.PromptTokens
	m.usage.CompletionTokens += u.CompletionTokens
	m.usage.TotalTokens += u.TotalTokens
	m.usage.Cost += float64(u.PromptTokens)/1000*m.pricing.PromptPer1K +
		float64(u.CompletionTokens)/1000*m.pricing.CompletionPer1K
}

// Usage returns the totals so far.
func (m *UsageMeter) Usage() core.Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}
