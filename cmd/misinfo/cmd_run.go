package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	misinfo "github.com/PaoloBova/llm-networks-misinformation"
	"github.com/PaoloBova/llm-networks-misinformation/config"
	"github.com/PaoloBova/llm-networks-misinformation/core"
	"github.com/PaoloBova/llm-networks-misinformation/logging"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <experiment>",
		Short: "Run an experiment and persist the result",
		Long: `Run the experiment described by a YAML, TOML or JSON file.

The run is written to the output section of the experiment and to any
directory or database given by flags. Interrupting the command stops the
run after the round in flight; committed rounds are still saved.

Examples:
  misinfo run experiment.yaml
  misinfo run experiment.toml --seed 7 --rounds 20
  misinfo run experiment.yaml --out runs/ --sqlite runs.db
  misinfo run experiment.yaml --repeats 10 --sqlite sweep.db
  misinfo run experiment.yaml --metrics-addr :9090

An experiment with a sweep section, or --repeats above 1, runs every cell
of the sweep as a batch; --run-id then names the batch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, exp); err != nil {
				return err
			}

			logger, err := misinfo.NewLogger(exp.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
				stop := serveMetrics(addr, logger)
				defer stop()
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			runID, _ := cmd.Flags().GetString("run-id")
			out := cmd.OutOrStdout()
			jsonOut, _ := cmd.Flags().GetBool("json")

			if exp.Sweep != nil {
				batch, batchErr := misinfo.SimulateBatch(ctx, exp, func(o *misinfo.Options) {
					o.BatchID = runID
					o.Logger = logger
				})
				if jsonOut {
					if err := writeJSON(out, batch); err != nil {
						return err
					}
				} else {
					printBatch(out, batch)
				}
				return batchErr
			}

			run, runErr := misinfo.Simulate(ctx, exp, func(o *misinfo.Options) {
				o.RunID = runID
				o.Logger = logger
			})
			if run == nil {
				return runErr
			}

			if jsonOut {
				if err := writeJSON(out, run); err != nil {
					return err
				}
			} else {
				printSummary(out, run)
			}
			return runErr
		},
	}

	cmd.Flags().Uint64("seed", 0, "Override the experiment seed")
	cmd.Flags().Int("rounds", 0, "Override the number of rounds")
	cmd.Flags().String("out", "", "Directory to write run files to")
	cmd.Flags().String("sqlite", "", "SQLite database to store the run in")
	cmd.Flags().String("run-id", "", "Run identifier (generated when empty)")
	cmd.Flags().Int("repeats", 0, "Run the experiment this many times per sweep cell")
	cmd.Flags().String("log-level", "", "Override the log level (debug, info, warn, error)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	return cmd
}

// applyRunFlags overrides experiment values with explicitly set flags and
// re-validates the result.
func applyRunFlags(cmd *cobra.Command, exp *config.Experiment) error {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		exp.Seed, _ = flags.GetUint64("seed")
		exp.Topology.Seed = exp.Seed
	}
	if flags.Changed("rounds") {
		exp.Rounds, _ = flags.GetInt("rounds")
	}
	if flags.Changed("out") {
		exp.Output.Dir, _ = flags.GetString("out")
	}
	if flags.Changed("sqlite") {
		exp.Output.SQLite, _ = flags.GetString("sqlite")
	}
	if flags.Changed("repeats") {
		repeats, _ := flags.GetInt("repeats")
		switch {
		case exp.Sweep != nil:
			exp.Sweep.Repeats = repeats
		case repeats > 1:
			exp.Sweep = &config.SweepConfig{Repeats: repeats}
		}
	}
	if flags.Changed("log-level") {
		exp.Logging.Level, _ = flags.GetString("log-level")
	}
	return exp.Validate()
}

// serveMetrics exposes the default Prometheus registry and returns a
// function shutting the server down.
func serveMetrics(addr string, logger logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "addr", addr, "error", err.Error())
		}
	}()
	logger.Info("Serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printSummary(w io.Writer, run *core.Run) {
	fmt.Fprintf(w, "Run %s: %s\n", run.ID, run.Status)
	if run.AbortReason != "" {
		fmt.Fprintf(w, "Aborted: %s\n", run.AbortReason)
	}
	fmt.Fprintf(w, "Rounds executed: %d  converged: %t  final choice: %s  faults: %d\n\n",
		run.Summary.RoundsExecuted, run.Summary.Converged, run.Summary.FinalChoice, run.Summary.TotalFaults)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUND\tMODAL\tCONVERGENCE\tSWITCH\tFAULTS\tCORRECT")
	for _, r := range run.Summary.Rounds {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\t%d\t%s\n",
			r.Round, r.ModalChoice, r.ConvergenceFraction, optional(r.SwitchRate), r.Faults, optional(r.CorrectProportion))
	}
	_ = tw.Flush()

	if tbr := run.Summary.TimeBasedResilience; tbr != nil {
		fmt.Fprintf(w, "\nTime-based resilience: %.2f\n", *tbr)
	}
	if u := run.Usage; u != nil {
		fmt.Fprintf(w, "Model calls: %d  tokens: %d  cost: %.4f\n", u.Calls, u.TotalTokens, u.Cost)
	}
}

func printBatch(w io.Writer, batch *misinfo.Batch) {
	fmt.Fprintf(w, "Batch %s: %d of %d runs\n\n", batch.ID, len(batch.Runs), len(batch.Cells))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSEED\tTOPOLOGY SEED\tSTATUS\tROUNDS\tCONVERGED\tFINAL\tTOKENS")
	for i, run := range batch.Runs {
		cell := batch.Cells[i]
		tokens := "-"
		if run.Usage != nil {
			tokens = fmt.Sprint(run.Usage.TotalTokens)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%d\t%t\t%s\t%s\n",
			run.ID, cell.Seed, cell.TopologySeed, run.Status, run.Summary.RoundsExecuted,
			run.Summary.Converged, run.Summary.FinalChoice, tokens)
	}
	_ = tw.Flush()
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
