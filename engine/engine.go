package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PaoloBova/llm-networks-misinformation/belief"
	"github.com/PaoloBova/llm-networks-misinformation/core"
	"github.com/PaoloBova/llm-networks-misinformation/internal/util"
	"github.com/PaoloBova/llm-networks-misinformation/logging"
	"github.com/PaoloBova/llm-networks-misinformation/observe"
	"github.com/PaoloBova/llm-networks-misinformation/recorder"
)

// ErrAlreadyStarted is returned when Run is called more than once.
var ErrAlreadyStarted = errors.New("engine: run already started")

// Config defines the round and fault parameters of a simulation.
//
// Example:
//
//	cfg := Config{
//	    Rounds:         20,
//	    Workers:        4,
//	    FaultThreshold: 0.5,
//	}
type Config struct {
	// Rounds is the maximum number of rounds after round 0.
	Rounds int

	// Workers bounds how many decisions of a round run at once. Zero or less
	// means one worker per agent.
	Workers int

	// FaultThreshold aborts the run once the share of faulted agents in a
	// round reaches it. Must be in (0, 1].
	FaultThreshold float64

	// DecisionTimeout bounds every Decide call. Zero disables the timeout.
	DecisionTimeout time.Duration

	// StopOnConvergence ends the run early once the modal choice share
	// reaches 1 - ConvergenceTolerance.
	StopOnConvergence bool

	// ConvergenceTolerance is the share of dissenters still counted as
	// converged.
	ConvergenceTolerance float64
}

// DefaultConfig provides the configuration used when none is supplied.
//
// Configuration values:
//   - Rounds: 10
//   - Workers: 8 (keeps LLM backends from being flooded)
//   - FaultThreshold: 0.5
//   - DecisionTimeout: 2 minutes
var DefaultConfig = Config{
	Rounds:          10,
	Workers:         8,
	FaultThreshold:  0.5,
	DecisionTimeout: 2 * time.Minute,
}

// StopFunc decides after every committed round whether the run should end
// early.
type StopFunc func(rec core.RoundRecord) bool

// Options configures an Engine using the functional options pattern.
//
// All collaborators have defaults: an in-memory belief store, a recorder
// over the engine's graph and no sink.
type Options struct {
	Config Config

	// Seed roots every random stream of the run.
	Seed uint64

	// RunID identifies the run. A fresh id is generated when empty.
	RunID string

	// BatchID is recorded on the run when it belongs to a sweep.
	BatchID string

	// Priors override the round-0 beliefs policies would supply.
	Priors map[core.AgentID]core.Decision

	// Params are handed to every policy in DecisionInput.Params.
	Params map[string]any

	// Payoff scores each committed decision when set.
	Payoff core.PayoffFunc

	// StopWhen replaces the convergence predicate.
	StopWhen StopFunc

	Store     core.BeliefStore
	Recorder  *recorder.Recorder
	Sink      core.RunSink
	Callbacks *CallbackManager

	// RunConfig is stored verbatim in the run metadata.
	RunConfig map[string]any

	// Usage, when set, reports the model usage stored with the run.
	Usage UsageReporter

	Logger logging.Logger

	// Clock stamps provenance. Defaults to time.Now.
	Clock func() time.Time
}

// UsageReporter reports the language model usage of a run.
type UsageReporter interface {
	Usage() core.Usage
}

// roundLogger is implemented by loggers with simulation helpers.
type roundLogger interface {
	LogRound(round, agents, faults int, convergence float64, dur time.Duration)
	LogDecision(agent, round int, choice string, dur time.Duration, err error)
}

// Engine schedules the rounds of a single run. An Engine is single use.
//
// Lifecycle:
//  1. Initializing: priors are seeded and round 0 is recorded
//  2. Running: every round gathers observations, fans decisions out to a
//     bounded worker group, waits for all of them and appends the results
//     in ascending agent order
//  3. Completed or aborted: the recorder is sealed and the run is saved
//
// Cancellation and Abort are only honoured between rounds.
type Engine struct {
	graph  core.Graph
	agents []core.Agent
	opts   Options
	logger logging.Logger

	mu      sync.Mutex
	status  core.RunStatus
	started bool

	abortOnce sync.Once
	abort     chan struct{}
}

// New creates an engine for graph. agents must hold one entry per graph
// node, ordered by id, each with a policy.
func New(graph core.Graph, agents []core.Agent, optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		Config: DefaultConfig,
		Clock:  time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if graph == nil {
		return nil, errors.New("engine: graph is required")
	}
	if len(agents) != graph.Size() {
		return nil, fmt.Errorf("engine: %d agents for a graph of %d nodes", len(agents), graph.Size())
	}
	for i, a := range agents {
		if a.ID != core.AgentID(i) {
			return nil, fmt.Errorf("engine: agent at index %d has id %d", i, a.ID)
		}
		if a.Policy == nil {
			return nil, fmt.Errorf("engine: agent %d has no policy", a.ID)
		}
	}
	if t := opts.Config.FaultThreshold; t <= 0 || t > 1 {
		return nil, fmt.Errorf("engine: fault threshold %.2f outside (0, 1]", t)
	}
	if opts.Config.Rounds < 0 {
		return nil, fmt.Errorf("engine: negative round count %d", opts.Config.Rounds)
	}

	if opts.Store == nil {
		opts.Store = belief.NewInMemoryStore()
	}
	if opts.Recorder == nil {
		tol := opts.Config.ConvergenceTolerance
		opts.Recorder = recorder.New(func(o *recorder.Options) {
			o.Graph = graph
			o.ConvergenceTolerance = tol
		})
	}
	if opts.RunID == "" {
		opts.RunID = util.NewID()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Engine{
		graph:  graph,
		agents: agents,
		opts:   opts,
		logger: logging.OrNoOp(opts.Logger),
		status: core.RunInitializing,
		abort:  make(chan struct{}),
	}, nil
}

// AgentsFor builds one agent per graph node using fn to choose its policy.
func AgentsFor(graph core.Graph, fn func(id core.AgentID) core.Policy) []core.Agent {
	agents := make([]core.Agent, 0, graph.Size())
	for _, id := range graph.Nodes() {
		agents = append(agents, core.Agent{ID: id, Policy: fn(id)})
	}
	return agents
}

// RunID returns the identifier of the run.
func (e *Engine) RunID() string { return e.opts.RunID }

// Status returns the current lifecycle state.
func (e *Engine) Status() core.RunStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Abort asks the engine to stop after the round in flight. It is safe to
// call more than once and from any goroutine.
func (e *Engine) Abort() {
	e.abortOnce.Do(func() { close(e.abort) })
}

// Run executes the simulation and returns the sealed run.
//
// A run that ends early because of a systemic fault, cancellation or Abort
// is returned together with the error that ended it; every committed round
// is kept. Failures while seeding priors return no run.
func (e *Engine) Run(ctx context.Context) (*core.Run, error) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	e.started = true
	e.mu.Unlock()

	started := e.opts.Clock()
	e.logger.Info("Starting run", "run_id", e.opts.RunID, "agents", len(e.agents), "rounds", e.opts.Config.Rounds, "seed", e.opts.Seed)

	agg := observe.New(e.graph, e.opts.Store)
	if err := e.seed(agg); err != nil {
		e.setStatus(ctx, core.RunAborted)
		runsTotal.WithLabelValues(string(core.RunAborted)).Inc()
		e.logger.Error("Seeding priors failed", "run_id", e.opts.RunID, "error", err.Error())
		return nil, err
	}

	e.setStatus(ctx, core.RunRunning)
	runErr := e.loop(ctx, agg)

	status := core.RunCompleted
	if runErr != nil {
		status = core.RunAborted
	}
	e.setStatus(ctx, status)
	runsTotal.WithLabelValues(string(status)).Inc()

	meta := core.RunMetadata{
		ID:         e.opts.RunID,
		BatchID:    e.opts.BatchID,
		Status:     status,
		Config:     e.opts.RunConfig,
		Provenance: provenance(e.opts.Seed, started, e.opts.Clock()),
	}
	if runErr != nil {
		meta.AbortReason = runErr.Error()
	}
	if e.opts.Usage != nil {
		u := e.opts.Usage.Usage()
		meta.Usage = &u
	}

	run, err := e.opts.Recorder.Finalize(meta)
	if err != nil {
		return nil, fmt.Errorf("engine: seal run: %w", err)
	}

	if e.opts.Sink != nil {
		// The sink runs even for a cancelled context so committed rounds are
		// never lost.
		if err := e.opts.Sink.Save(context.WithoutCancel(ctx), run); err != nil {
			return run, errors.Join(runErr, fmt.Errorf("engine: save run: %w", err))
		}
	}

	e.logger.Info("Run finished", "run_id", run.ID, "status", run.Status, "rounds", run.Summary.RoundsExecuted, "converged", run.Summary.Converged)
	return run, runErr
}

func (e *Engine) loop(ctx context.Context, agg *observe.Aggregator) error {
	cfg := e.opts.Config
	for round := 1; round <= cfg.Rounds; round++ {
		if err := e.interrupted(ctx); err != nil {
			e.logger.Warn("Run interrupted", "run_id", e.opts.RunID, "before_round", round, "error", err.Error())
			return err
		}

		rec, err := e.round(ctx, agg, round)
		if err != nil {
			return err
		}

		if rec.Faults > 0 && rec.FaultFraction >= cfg.FaultThreshold {
			return &core.SystemicFaultAbort{
				Round:     round,
				Faults:    rec.Faults,
				Agents:    len(rec.Entries),
				Threshold: cfg.FaultThreshold,
			}
		}
		if e.shouldStop(rec) {
			e.logger.Info("Stopping early", "run_id", e.opts.RunID, "round", round)
			return nil
		}
	}
	return nil
}

func (e *Engine) interrupted(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", core.ErrAborted, ctx.Err())
	case <-e.abort:
		return core.ErrAborted
	default:
		return nil
	}
}

func (e *Engine) shouldStop(rec core.RoundRecord) bool {
	if e.opts.StopWhen != nil {
		return e.opts.StopWhen(rec)
	}
	if !e.opts.Config.StopOnConvergence {
		return false
	}
	_, _, share := recorder.Tally(rec)
	return share >= 1-e.opts.Config.ConvergenceTolerance
}

// seed writes every agent's round-0 belief and records round 0.
func (e *Engine) seed(agg *observe.Aggregator) error {
	observations := agg.ObserveAll(0)
	rec := core.RoundRecord{Round: 0, Entries: make([]core.AgentRound, 0, len(e.agents))}

	for _, a := range e.agents {
		d, err := e.prior(a)
		if err != nil {
			return err
		}
		if err := e.opts.Store.Append(a.ID, 0, d); err != nil {
			return err
		}
		rec.Entries = append(rec.Entries, core.AgentRound{
			Agent:        a.ID,
			Observations: observations[a.ID],
			Decision:     d,
		})
	}
	return e.opts.Recorder.RecordRound(rec)
}

func (e *Engine) prior(a core.Agent) (core.Decision, error) {
	d, ok := e.opts.Priors[a.ID]
	if !ok {
		pp, isPrior := a.Policy.(core.PriorPolicy)
		if !isPrior {
			return core.Decision{}, fmt.Errorf("engine: agent %d: %w", a.ID, core.ErrNoPrior)
		}
		var err error
		if d, err = pp.Prior(a.ID, agentStream(e.opts.Seed, a.ID, 0)); err != nil {
			return core.Decision{}, fmt.Errorf("engine: agent %d prior: %w", a.ID, err)
		}
	}
	if d.Choice == "" {
		return core.Decision{}, fmt.Errorf("engine: agent %d: empty prior choice", a.ID)
	}
	d.Round = 0
	d.Status = core.StatusPrior
	d.Fault = ""
	return d, nil
}

type outcome struct {
	decision core.Decision
	err      error
}

// round runs one full round. A returned error is structural and ends the
// run; per-agent faults are folded into the record.
func (e *Engine) round(ctx context.Context, agg *observe.Aggregator, round int) (core.RoundRecord, error) {
	start := time.Now()
	n := len(e.agents)
	observations := agg.ObserveAll(round)

	if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackBeforeRound, &CallbackContext{
		RunID:        e.opts.RunID,
		Round:        round,
		Status:       core.RunRunning,
		Observations: observations,
	}); err != nil {
		return core.RoundRecord{}, fmt.Errorf("engine: before round %d: %w", round, err)
	}

	// Decisions in flight finish even if ctx is cancelled meanwhile.
	decideCtx := context.WithoutCancel(ctx)
	results := make([]outcome, n)

	var g errgroup.Group
	workers := e.opts.Config.Workers
	if workers <= 0 {
		workers = n
	}
	g.SetLimit(max(workers, 1))
	for i, a := range e.agents {
		in := core.DecisionInput{
			Agent:        a.ID,
			Round:        round,
			Observations: observations[i],
			History:      e.opts.Store.History(a.ID),
			Params:       maps.Clone(e.opts.Params),
			Rand:         agentStream(e.opts.Seed, a.ID, round),
		}
		g.Go(func() error {
			began := time.Now()
			d, err := e.decide(decideCtx, a, in)
			elapsed := time.Since(began)
			decisionDuration.Observe(elapsed.Seconds())
			decisionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
			if rl, ok := e.logger.(roundLogger); ok {
				rl.LogDecision(int(a.ID), round, d.Choice, elapsed, err)
			}
			results[i] = outcome{decision: d, err: err}
			return nil
		})
	}
	_ = g.Wait()

	rec := core.RoundRecord{Round: round, Entries: make([]core.AgentRound, 0, n)}
	var faulted []outcome
	var faultedIDs []core.AgentID
	for i, a := range e.agents {
		r := results[i]
		d := r.decision
		if r.err != nil {
			last, _ := e.opts.Store.Latest(a.ID)
			d = core.CarryForward(last, round, r.err, r.decision.Raw)
			rec.Faults++
			faulted = append(faulted, r)
			faultedIDs = append(faultedIDs, a.ID)
		}
		if e.opts.Payoff != nil {
			if p, ok := e.opts.Payoff(a.ID, d, payoffStream(e.opts.Seed, a.ID, round)); ok {
				d.Payoff = &p
			}
		}
		if err := e.opts.Store.Append(a.ID, round, d); err != nil {
			return core.RoundRecord{}, err
		}
		rec.Entries = append(rec.Entries, core.AgentRound{
			Agent:        a.ID,
			Observations: observations[i],
			Decision:     d,
		})
	}
	if n > 0 {
		rec.FaultFraction = float64(rec.Faults) / float64(n)
	}

	if err := e.opts.Recorder.RecordRound(rec); err != nil {
		return core.RoundRecord{}, err
	}

	_, _, share := recorder.Tally(rec)
	elapsed := time.Since(start)
	roundsTotal.Inc()
	roundDuration.Observe(elapsed.Seconds())
	convergenceFraction.Set(share)
	if rl, ok := e.logger.(roundLogger); ok {
		rl.LogRound(round, n, rec.Faults, share, elapsed)
	} else {
		e.logger.Info("Round completed", "round", round, "faults", rec.Faults, "convergence", share)
	}

	for i, r := range faulted {
		if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackOnFault, &CallbackContext{
			RunID:  e.opts.RunID,
			Round:  round,
			Status: core.RunRunning,
			Agent:  faultedIDs[i],
			Err:    r.err,
		}); err != nil {
			e.logger.Warn("Fault callback failed", "round", round, "agent", faultedIDs[i], "error", err.Error())
		}
	}

	if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterRound, &CallbackContext{
		RunID:  e.opts.RunID,
		Round:  round,
		Status: core.RunRunning,
		Record: &rec,
	}); err != nil {
		return rec, fmt.Errorf("engine: after round %d: %w", round, err)
	}
	return rec, nil
}

// decide runs one policy call under the decision timeout. Panics and empty
// choices become decision errors.
func (e *Engine) decide(ctx context.Context, a core.Agent, in core.DecisionInput) (core.Decision, error) {
	timeout := e.opts.Config.DecisionTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("policy panicked: %v", r)}
			}
		}()
		d, err := a.Policy.Decide(ctx, in)
		done <- outcome{decision: d, err: err}
	}()

	var r outcome
	select {
	case r = <-done:
	case <-ctx.Done():
		return core.Decision{}, &core.DecisionTimeoutError{Agent: a.ID, Round: in.Round, After: timeout.String()}
	}

	// Raw output survives failures so unparseable replies stay inspectable.
	failed := core.Decision{Raw: r.decision.Raw}
	if r.err != nil {
		if errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() != nil {
			return failed, &core.DecisionTimeoutError{Agent: a.ID, Round: in.Round, After: timeout.String()}
		}
		return failed, core.NewDecisionError(a.ID, in.Round, r.err)
	}
	d := r.decision
	if d.Choice == "" {
		return failed, core.NewDecisionError(a.ID, in.Round, errors.New("empty choice"))
	}
	d.Round = in.Round
	d.Status = core.StatusOK
	d.Fault = ""
	return d, nil
}

func (e *Engine) setStatus(ctx context.Context, s core.RunStatus) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
	if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackOnStatusChange, &CallbackContext{
		RunID:  e.opts.RunID,
		Status: s,
	}); err != nil {
		e.logger.Warn("Status callback failed", "status", s, "error", err.Error())
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrDecisionTimeout):
		return "timeout"
	default:
		return "failed"
	}
}

// provenance stamps the run with its seed, timing and build information.
func provenance(seed uint64, started, finished time.Time) core.Provenance {
	p := core.Provenance{Seed: seed, StartedAt: started, FinishedAt: finished}
	if info, ok := debug.ReadBuildInfo(); ok {
		p.GoVersion = info.GoVersion
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				p.Revision = s.Value
			}
		}
	}
	return p
}
