// Package misinfo provides a high-level façade for running misinformation
// propagation experiments. Most applications interact with this package by:
//  1. Loading an experiment with config.Load
//  2. Creating a Simulation via New (optionally overriding the model
//     backend, sinks or logger)
//  3. Calling Run to execute the rounds and persist the sealed run
//
// The façade wires the topology, policies, recorder and sinks described by
// the experiment into an engine.Engine.
package misinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/PaoloBova/llm-networks-misinformation/config"
	"github.com/PaoloBova/llm-networks-misinformation/core"
	"github.com/PaoloBova/llm-networks-misinformation/engine"
	"github.com/PaoloBova/llm-networks-misinformation/internal/util"
	"github.com/PaoloBova/llm-networks-misinformation/logging"
	"github.com/PaoloBova/llm-networks-misinformation/model"
	"github.com/PaoloBova/llm-networks-misinformation/recorder"
	"github.com/PaoloBova/llm-networks-misinformation/sink"
	"github.com/PaoloBova/llm-networks-misinformation/topology"
)

// Options configures a Simulation.
type Options struct {
	// RunID overrides the generated "<name>_<hex>" identifier.
	RunID string

	// BatchID groups the run with the other cells of a sweep.
	BatchID string

	// Model replaces the experiment's backend for delegate policies.
	Model model.Model

	// Sinks receive the sealed run in addition to the experiment's output
	// section.
	Sinks []core.RunSink

	// Callbacks are handed to the engine.
	Callbacks *engine.CallbackManager

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Clock stamps provenance. Defaults to time.Now.
	Clock func() time.Time
}

// Simulation is one configured, not yet executed experiment run.
type Simulation struct {
	exp     *config.Experiment
	plan    *config.Plan
	engine  *engine.Engine
	closers []io.Closer
}

// New builds the graph, agents and sinks of exp and prepares the engine.
func New(exp *config.Experiment, optFns ...func(o *Options)) (*Simulation, error) {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Clock:  time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.RunID == "" {
		opts.RunID = util.NewRunID(exp.Name)
	}

	plan, err := exp.Build(func(o *config.BuildOptions) {
		o.Model = opts.Model
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("build experiment: %w", err)
	}

	s := &Simulation{exp: exp, plan: plan}

	sinks, err := s.openSinks(opts.Sinks)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	rec := recorder.New(func(o *recorder.Options) {
		o.Truth = plan.Truth
		o.Source = plan.Source
		o.Graph = plan.Graph
		o.ConvergenceTolerance = exp.Engine.ConvergenceTolerance
	})

	runConfig, err := exp.AsMap()
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.engine, err = engine.New(plan.Graph, plan.Agents, func(o *engine.Options) {
		o.Config = engine.Config{
			Rounds:               exp.Rounds,
			Workers:              exp.Engine.Workers,
			FaultThreshold:       exp.Engine.FaultThreshold,
			DecisionTimeout:      exp.Engine.Timeout(),
			StopOnConvergence:    exp.Engine.StopOnConvergence,
			ConvergenceTolerance: exp.Engine.ConvergenceTolerance,
		}
		o.Seed = exp.Seed
		o.RunID = opts.RunID
		o.BatchID = opts.BatchID
		o.Priors = plan.Priors
		o.Params = exp.Params
		o.Payoff = plan.Payoff
		o.Recorder = rec
		o.Sink = sinks
		o.Callbacks = opts.Callbacks
		o.RunConfig = runConfig
		if plan.Usage != nil {
			o.Usage = plan.Usage
		}
		o.Logger = opts.Logger
		o.Clock = opts.Clock
	})
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Simulation) openSinks(extra []core.RunSink) (core.RunSink, error) {
	var sinks sink.Multi
	if dir := s.exp.Output.Dir; dir != "" {
		sinks = append(sinks, sink.NewFile(dir))
	}
	if path := s.exp.Output.SQLite; path != "" {
		db, err := sink.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db)
		sinks = append(sinks, db)
	}
	sinks = append(sinks, extra...)
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

// RunID returns the identifier the run will be stored under.
func (s *Simulation) RunID() string { return s.engine.RunID() }

// Graph returns the network the experiment runs on.
func (s *Simulation) Graph() *topology.Graph { return s.plan.Graph }

// Plan returns the resolved experiment.
func (s *Simulation) Plan() *config.Plan { return s.plan }

// Abort stops the run after the round in flight.
func (s *Simulation) Abort() { s.engine.Abort() }

// Run executes the experiment and closes the sinks it opened. An aborted
// run is returned together with the reason it stopped.
func (s *Simulation) Run(ctx context.Context) (*core.Run, error) {
	run, err := s.engine.Run(ctx)
	return run, errors.Join(err, s.Close())
}

// Close releases sinks opened for the experiment's output section.
func (s *Simulation) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Simulate is a synchronous helper that builds and runs exp in one call.
// It runs the experiment's own seed; SimulateBatch runs its sweep.
func Simulate(ctx context.Context, exp *config.Experiment, optFns ...func(o *Options)) (*core.Run, error) {
	sim, err := New(exp, optFns...)
	if err != nil {
		return nil, err
	}
	return sim.Run(ctx)
}

// Batch is the outcome of a sweep: one run per cell, in cell order.
type Batch struct {
	ID    string        `json:"id"`
	Cells []config.Cell `json:"cells"`
	Runs  []*core.Run   `json:"runs"`
}

// SimulateBatch runs every cell of the experiment's sweep one after another.
// Each run is stored under "<batch id>_<cell index>" with the batch id in its
// metadata. Runs that end in an error are kept and the batch moves on;
// cancellation stops the batch after the run in flight. The returned error
// joins every run error.
func SimulateBatch(ctx context.Context, exp *config.Experiment, optFns ...func(o *Options)) (*Batch, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	batchID := opts.BatchID
	if batchID == "" {
		batchID = util.NewRunID(exp.Name)
	}

	b := &Batch{ID: batchID, Cells: exp.Cells()}
	logger := logging.OrNoOp(opts.Logger)
	logger.Info("Starting batch", "batch_id", batchID, "cells", len(b.Cells))

	var errs []error
	for _, cell := range b.Cells {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", core.ErrAborted, err))
			break
		}
		run, err := Simulate(ctx, exp.ForCell(cell), append(slices.Clone(optFns), func(o *Options) {
			o.BatchID = batchID
			o.RunID = fmt.Sprintf("%s_%03d", batchID, cell.Index)
		})...)
		if run != nil {
			b.Runs = append(b.Runs, run)
		}
		if err != nil {
			logger.Warn("Batch cell failed", "batch_id", batchID, "cell", cell.Index, "error", err.Error())
			errs = append(errs, fmt.Errorf("cell %d: %w", cell.Index, err))
			if run == nil || ctx.Err() != nil {
				break
			}
		}
	}
	logger.Info("Batch finished", "batch_id", batchID, "runs", len(b.Runs))
	return b, errors.Join(errs...)
}

// NewLogger creates the logger described by an experiment's logging
// section, writing to out (stderr when nil).
func NewLogger(cfg config.LoggingConfig, out io.Writer) (*logging.SimLogger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stderr
	}
	lc := logging.DefaultLoggerConfig()
	lc.Level = level
	lc.Output = out
	if cfg.Format != "" {
		lc.Format = cfg.Format
	}
	lc.Component = "misinfo"
	return logging.NewLogger(lc), nil
}
