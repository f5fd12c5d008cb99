package policy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/PaoloBova/llm-networks-misinformation/core"
	"github.com/PaoloBova/llm-networks-misinformation/logging"
	"github.com/PaoloBova/llm-networks-misinformation/model"
	"github.com/PaoloBova/llm-networks-misinformation/prompt"
)

// DelegateOptions configure a Delegate policy.
type DelegateOptions struct {
	// Instructions is the system prompt. Defaults to prompt.DefaultInstructions.
	Instructions string
	// Template is the prompt template text. Empty selects prompt.DefaultTemplate.
	Template string
	// Choices, when set, restricts the answers a reply may carry.
	Choices []string
	// RequestsPerSecond paces model calls; 0 disables pacing.
	RequestsPerSecond float64
	// Burst is the token bucket size used with RequestsPerSecond.
	Burst int
	// MaxCalls caps model calls when no Budget is supplied; 0 is unlimited.
	MaxCalls int
	// Budget, Limiter and Usage, when set, are shared with other delegates.
	Budget  *CallBudget
	Limiter *rate.Limiter
	Usage   *UsageMeter
	Logger  logging.Logger
}

// backendLogger is implemented by loggers with a backend call helper.
type backendLogger interface {
	LogBackendCall(model string, tokens int, dur time.Duration, err error)
}

// Delegate asks a language model for each decision. The rendered context is
// sent with the reply schema; the first JSON object in the reply that
// satisfies the schema becomes the decision. Empty or malformed replies are
// errors, which the engine records as faults.
type Delegate struct {
	model        model.Model
	renderer     *prompt.Renderer
	instructions string
	choices      []string
	schema       map[string]any
	budget       *CallBudget
	limiter      *rate.Limiter
	usage        *UsageMeter
	logger       logging.Logger
}

var _ core.Policy = (*Delegate)(nil)

// NewDelegate creates a Delegate over m.
func NewDelegate(m model.Model, optFns ...func(o *DelegateOptions)) (*Delegate, error) {
	if m == nil {
		return nil, errors.New("delegate policy needs a model")
	}
	opts := DelegateOptions{
		Instructions: prompt.DefaultInstructions,
		Burst:        1,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	renderer, err := prompt.NewRenderer(opts.Template)
	if err != nil {
		return nil, err
	}

	budget := opts.Budget
	if budget == nil {
		budget = NewCallBudget(opts.MaxCalls)
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewLimiter(opts.RequestsPerSecond, opts.Burst)
	}
	usage := opts.Usage
	if usage == nil {
		usage = NewUsageMeter(Pricing{})
	}

	return &Delegate{
		model:        m,
		renderer:     renderer,
		instructions: opts.Instructions,
		choices:      slices.Clone(opts.Choices),
		schema:       prompt.DecisionSchema(),
		budget:       budget,
		limiter:      limiter,
		usage:        usage,
		logger:       logging.OrNoOp(opts.Logger),
	}, nil
}

// NewLimiter returns a token bucket allowing rps calls per second, or an
// unlimited limiter when rps <= 0.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(rps), max(burst, 1))
}

// Budget returns the call budget the delegate draws from.
func (d *Delegate) Budget() *CallBudget { return d.budget }

// Usage returns the meter the delegate reports token usage to.
func (d *Delegate) Usage() *UsageMeter { return d.usage }

// Decide implements core.Policy.
func (d *Delegate) Decide(ctx context.Context, in core.DecisionInput) (core.Decision, error) {
	text, err := d.renderer.Render(prompt.NewContext(in, d.choices))
	if err != nil {
		return core.Decision{}, err
	}
	// Budget is only spent once the limiter lets the call through.
	if err := d.limiter.Wait(ctx); err != nil {
		return core.Decision{}, fmt.Errorf("wait for rate limiter: %w", err)
	}
	if err := d.budget.Acquire(); err != nil {
		return core.Decision{}, err
	}

	start := time.Now()
	resp, err := model.Complete(ctx, d.model, model.Request{
		AgentID:      int(in.Agent),
		Instructions: d.instructions,
		Prompt:       text,
		Schema:       d.schema,
	})
	d.usage.Add(resp.Usage)
	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	if bl, ok := d.logger.(backendLogger); ok {
		bl.LogBackendCall(d.model.Info().Name, tokens, time.Since(start), err)
	} else {
		d.logger.Debug("backend call",
			"agent", int(in.Agent),
			"round", in.Round,
			"model", d.model.Info().Name,
			"tokens", tokens,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	if err != nil {
		return core.Decision{}, err
	}

	reply, err := prompt.ParseReply(resp.Text)
	if err != nil {
		return core.Decision{Raw: resp.Text}, err
	}
	if len(d.choices) > 0 && !slices.Contains(d.choices, reply.Choice) {
		return core.Decision{Raw: resp.Text}, &prompt.ValidationError{
			Field:   "choice",
			Value:   reply.Choice,
			Message: fmt.Sprintf("not one of %v", d.choices),
		}
	}
	return core.Decision{
		Round:         in.Round,
		Choice:        reply.Choice,
		Justification: reply.Justification,
		Status:        core.StatusOK,
		Raw:           resp.Text,
	}, nil
}
