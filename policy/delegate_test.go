package policy

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaoloBova/llm-networks-misinformation/model"
	"github.com/PaoloBova/llm-networks-misinformation/prompt"
)

func TestDelegate_ParsesReply(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddAgentResponse(0, `After reflection: {"choice": "B", "justification": "two neighbours say B"}`)

	var seen model.Request
	var mu sync.Mutex
	m.SetReplyFunc(func(req model.Request) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		seen = req
		return `{"choice": "A", "justification": "unchanged"}`, nil
	})

	d, err := NewDelegate(m, func(o *DelegateOptions) { o.Choices = []string{"A", "B"} })
	require.NoError(t, err)

	dec, err := d.Decide(context.Background(), input(0, 1, "A", "B", "B"))
	require.NoError(t, err)
	assert.Equal(t, "B", dec.Choice)
	assert.Equal(t, "two neighbours say B", dec.Justification)
	assert.Contains(t, dec.Raw, "After reflection")

	dec, err = d.Decide(context.Background(), input(3, 2, "A", "B"))
	require.NoError(t, err)
	assert.Equal(t, "A", dec.Choice)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, seen.AgentID)
	assert.Equal(t, prompt.DefaultInstructions, seen.Instructions)
	assert.True(t, strings.Contains(seen.Prompt, "Round 2"))
	assert.NotEmpty(t, seen.Schema)
}

func TestDelegate_Faults(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddAgentResponse(0, "no idea")
	m.AddAgentResponse(1, `{"choice": "C", "justification": "off menu"}`)
	m.AddAgentResponse(2, "")

	d, err := NewDelegate(m, func(o *DelegateOptions) { o.Choices = []string{"A", "B"} })
	require.NoError(t, err)

	_, err = d.Decide(context.Background(), input(0, 1, "A"))
	assert.ErrorIs(t, err, prompt.ErrNoJSON)

	_, err = d.Decide(context.Background(), input(1, 1, "A"))
	var ve *prompt.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = d.Decide(context.Background(), input(2, 1, "A"))
	assert.ErrorIs(t, err, prompt.ErrNoJSON)
}

func TestDelegate_Budget(t *testing.T) {
	m := model.NewMockModel("mock")
	m.SetReplyFunc(func(model.Request) (string, error) {
		return `{"choice": "A", "justification": "x"}`, nil
	})
	budget := NewCallBudget(2)
	d, err := NewDelegate(m, func(o *DelegateOptions) {
		o.Budget = budget
		o.RequestsPerSecond = 1000
		o.Burst = 10
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := d.Decide(context.Background(), input(0, 1, "A"))
		require.NoError(t, err)
	}
	_, err = d.Decide(context.Background(), input(0, 1, "A"))
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Equal(t, 2, m.Calls())
	assert.Same(t, budget, d.Budget())
}

func TestDelegate_LimiterWaitKeepsBudget(t *testing.T) {
	m := model.NewMockModel("mock")
	m.SetReplyFunc(func(model.Request) (string, error) {
		return `{"choice": "A", "justification": "x"}`, nil
	})
	budget := NewCallBudget(5)
	d, err := NewDelegate(m, func(o *DelegateOptions) {
		o.Budget = budget
		o.Limiter = NewLimiter(0.001, 1)
	})
	require.NoError(t, err)

	_, err = d.Decide(context.Background(), input(0, 1, "A"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d.Decide(ctx, input(0, 2, "A"))
	require.Error(t, err)
	assert.Equal(t, 1, budget.Count())
	assert.Equal(t, 4, budget.Remaining())
	assert.Equal(t, 1, m.Calls())
}

func TestDelegate_Usage(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddAgentResponse(0, `{"choice": "A", "justification": "one two"}`)
	m.AddAgentResponse(1, "not json at all")
	meter := NewUsageMeter(Pricing{PromptPer1K: 1, CompletionPer1K: 2})
	d, err := NewDelegate(m, func(o *DelegateOptions) { o.Usage = meter })
	require.NoError(t, err)
	assert.Same(t, meter, d.Usage())

	_, err = d.Decide(context.Background(), input(0, 1, "A"))
	require.NoError(t, err)
	_, err = d.Decide(context.Background(), input(1, 1, "A"))
	require.Error(t, err)

	u := meter.Usage()
	assert.Equal(t, 2, u.Calls)
	assert.Equal(t, 5+4, u.CompletionTokens)
	assert.Positive(t, u.PromptTokens)
	assert.Equal(t, u.PromptTokens+u.CompletionTokens, u.TotalTokens)
	assert.InDelta(t, float64(u.PromptTokens)/1000+float64(u.CompletionTokens)*2/1000, u.Cost, 1e-9)
}

func TestUsageMeter_NilUsage(t *testing.T) {
	meter := NewUsageMeter(Pricing{})
	meter.Add(nil)
	meter.Add(&model.TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5})

	u := meter.Usage()
	assert.Equal(t, 2, u.Calls)
	assert.Equal(t, 5, u.TotalTokens)
	assert.Zero(t, u.Cost)
}

func TestNewDelegate_Errors(t *testing.T) {
	_, err := NewDelegate(nil)
	assert.Error(t, err)

	_, err = NewDelegate(model.NewMockModel("mock"), func(o *DelegateOptions) { o.Template = "{{.Broken" })
	assert.Error(t, err)
}

func TestNew_Delegate(t *testing.T) {
	m := model.NewMockModel("mock")
	p, err := New(KindDelegate, map[string]any{"choices": []any{"A", "B"}}, func(o *Options) { o.Model = m })
	require.NoError(t, err)
	d, ok := p.(*Delegate)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, d.choices)
}
