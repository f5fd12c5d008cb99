package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "misinfo",
		Short: "Simulate misinformation spreading through networks of agents",
		Long: `misinfo runs round-based experiments in which agents on a network
observe their neighbours' public decisions and update their own.

Agents may follow simple rules (majority copy, voter, stubborn) or delegate
every decision to a language model. Runs are recorded round by round and
persisted as NDJSON files or in a SQLite database.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newTopologyCmd(),
		newValidateCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			info := map[string]string{"version": version}
			if bi, ok := debug.ReadBuildInfo(); ok {
				info["go"] = bi.GoVersion
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				_ = writeJSON(out, info)
				return
			}
			fmt.Fprintf(out, "misinfo version %s\n", version)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
