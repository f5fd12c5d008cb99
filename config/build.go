package config

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/PaoloBova/llm-networks-misinformation/core"
	"github.com/PaoloBova/llm-networks-misinformation/logging"
	"github.com/PaoloBova/llm-networks-misinformation/model"
	anthropicmodel "github.com/PaoloBova/llm-networks-misinformation/model/anthropic"
	openaimodel "github.com/PaoloBova/llm-networks-misinformation/model/openai"
	"github.com/PaoloBova/llm-networks-misinformation/policy"
	"github.com/PaoloBova/llm-networks-misinformation/topology"
)

// Plan holds everything an engine needs to run an experiment.
type Plan struct {
	Graph  *topology.Graph
	Agents []core.Agent
	Priors map[core.AgentID]core.Decision
	Payoff core.PayoffFunc

	// Truth and Source drive ground-truth statistics.
	Truth  string
	Source *core.AgentID

	// Model backs the delegate policies, nil when there are none.
	Model model.Model
	// Budget and Usage are shared by every delegate policy.
	Budget *policy.CallBudget
	Usage  *policy.UsageMeter
}

// sourceStream salts the experiment seed when drawing a random source.
const sourceStream = 0x736f75726365

// Cell is one run of a sweep.
type Cell struct {
	Index        int    `json:"index"`
	Repeat       int    `json:"repeat"`
	Seed         uint64 `json:"seed"`
	TopologySeed uint64 `json:"topology_seed"`
}

// BuildOptions override parts of the experiment when building a plan.
type BuildOptions struct {
	// Model replaces the configured backend.
	Model  model.Model
	Logger logging.Logger
}

// Build creates the graph, the agents with their policies, the priors and
// the payoff described by the experiment.
func (e *Experiment) Build(optFns ...func(o *BuildOptions)) (*Plan, error) {
	var opts BuildOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	graph, err := topology.Build(e.Topology)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Graph: graph, Truth: e.Truth}

	if e.Payoff != nil {
		tp := policy.TechnologyPayoff{HQChance: e.Payoff.HQChance, HighQuality: e.Payoff.TrueQuality != "low"}
		plan.Payoff = tp.Func()
		if plan.Truth == "" {
			plan.Truth = tp.Correct()
		}
	}

	if e.usesDelegate() {
		plan.Model = opts.Model
		if plan.Model == nil {
			if plan.Model, err = e.Backend.NewModel(); err != nil {
				return nil, err
			}
		}
		plan.Budget = policy.NewCallBudget(e.Backend.MaxCalls)
		plan.Usage = policy.NewUsageMeter(policy.Pricing{
			PromptPer1K:     e.Backend.PromptCostPer1K,
			CompletionPer1K: e.Backend.CompletionCostPer1K,
		})
	}

	if plan.Agents, err = e.agents(plan, opts.Logger); err != nil {
		return nil, err
	}

	plan.Priors = make(map[core.AgentID]core.Decision, len(e.Priors)+1)
	for i, c := range e.Priors {
		plan.Priors[core.AgentID(i)] = core.Decision{Choice: c}
	}
	switch {
	case e.Source != nil:
		src := core.AgentID(*e.Source)
		plan.Source = &src
	case e.RandomSource:
		src := core.AgentID(rand.New(rand.NewPCG(e.Seed, sourceStream)).IntN(e.Agents))
		plan.Source = &src
	}
	if plan.Source != nil {
		plan.Priors[*plan.Source] = core.Decision{Choice: plan.Truth, Justification: "Seeded with the ground truth."}
	}
	return plan, nil
}

// Cells expands the sweep into one cell per repeat of every seed and
// topology seed combination. Repeats after the first derive their seed from
// the cell's base seed, so every cell differs and a rerun reproduces it.
// Without a sweep there is a single cell.
func (e *Experiment) Cells() []Cell {
	seeds := []uint64{e.Seed}
	topoSeeds := []uint64{e.Topology.Seed}
	repeats := 1
	if sw := e.Sweep; sw != nil {
		if len(sw.Seeds) > 0 {
			seeds = sw.Seeds
		}
		if len(sw.TopologySeeds) > 0 {
			topoSeeds = sw.TopologySeeds
		}
		repeats = max(sw.Repeats, 1)
	}

	cells := make([]Cell, 0, len(seeds)*len(topoSeeds)*repeats)
	for _, seed := range seeds {
		for _, topo := range topoSeeds {
			for r := range repeats {
				cells = append(cells, Cell{
					Index:        len(cells),
					Repeat:       r,
					Seed:         repeatSeed(seed, r),
					TopologySeed: topo,
				})
			}
		}
	}
	return cells
}

// ForCell returns a copy of the experiment running cell.
func (e *Experiment) ForCell(c Cell) *Experiment {
	out := *e
	out.Seed = c.Seed
	out.Topology.Seed = c.TopologySeed
	out.Sweep = nil
	return &out
}

func repeatSeed(seed uint64, repeat int) uint64 {
	if repeat == 0 {
		return seed
	}
	return rand.New(rand.NewPCG(seed, uint64(repeat))).Uint64()
}

func (e *Experiment) usesDelegate() bool {
	for _, p := range e.Policies {
		if p.Kind == policy.KindDelegate {
			return true
		}
	}
	return false
}

// agents resolves one policy per agent. Later policy entries override
// earlier ones; every agent must end up with a policy.
func (e *Experiment) agents(plan *Plan, logger logging.Logger) ([]core.Agent, error) {
	limiter := policy.NewLimiter(e.Backend.RequestsPerSecond, e.Backend.Burst)
	policyOpts := func(o *policy.Options) {
		o.Model = plan.Model
		o.Delegate = append(o.Delegate, func(d *policy.DelegateOptions) {
			d.Budget = plan.Budget
			d.Limiter = limiter
			d.Usage = plan.Usage
			d.Logger = logger
			if e.Backend.Instructions != "" {
				d.Instructions = e.Backend.Instructions
			}
			d.Template = e.Backend.Template
		})
	}

	policies := make([]core.Policy, e.Agents)
	for i, pc := range e.Policies {
		p, err := policy.New(pc.Kind, pc.Params, policyOpts)
		if err != nil {
			return nil, fmt.Errorf("policies[%d]: %w", i, err)
		}
		if len(pc.Agents) == 0 {
			for id := range policies {
				policies[id] = p
			}
			continue
		}
		for _, id := range pc.Agents {
			policies[id] = p
		}
	}

	agents := make([]core.Agent, e.Agents)
	for id, p := range policies {
		if p == nil {
			return nil, fmt.Errorf("agent %d has no policy", id)
		}
		if e.Shock != nil {
			p = &policy.Shock{
				Inner:         p,
				Round:         e.Shock.Round,
				Agents:        agentIDs(e.Shock.Agents),
				Choice:        e.Shock.Choice,
				Justification: e.Shock.Justification,
			}
		}
		agents[id] = core.Agent{ID: core.AgentID(id), Policy: p}
	}
	return agents, nil
}

// NewModel creates the configured language model backend.
func (b BackendConfig) NewModel() (model.Model, error) {
	switch b.Provider {
	case "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if b.Model != "" {
				o.Model = b.Model
			}
			if b.Temperature != nil {
				o.Temperature = *b.Temperature
			}
			if b.MaxTokens > 0 {
				o.MaxCompletionTokens = b.MaxTokens
			}
			o.APIKey = b.APIKey
			o.BaseURL = b.BaseURL
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if b.Model != "" {
				o.Model = anthropic.Model(b.Model)
			}
			if b.Temperature != nil {
				o.Temperature = *b.Temperature
			}
			if b.MaxTokens > 0 {
				o.MaxTokens = b.MaxTokens
			}
			o.APIKey = b.APIKey
		}), nil
	case "mock", "":
		name := b.Model
		if name == "" {
			name = "mock"
		}
		m := model.NewMockModel(name)
		if b.Reply != "" {
			reply := b.Reply
			m.SetReplyFunc(func(model.Request) (string, error) { return reply, nil })
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown backend provider %q", b.Provider)
	}
}

// Timeout returns the decision timeout as a time.Duration.
func (c EngineConfig) Timeout() time.Duration { return time.Duration(c.DecisionTimeout) }

func agentIDs(ids []int) []core.AgentID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]core.AgentID, len(ids))
	for i, id := range ids {
		out[i] = core.AgentID(id)
	}
	return out
}
