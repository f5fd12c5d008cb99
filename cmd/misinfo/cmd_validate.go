package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PaoloBova/llm-networks-misinformation/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <experiment>...",
		Short: "Check experiment files without running them",
		Long: `Check experiment files without running them.

Each file is parsed and validated, then its network and policies are
built, so an unsatisfiable topology is reported as well.

Examples:
  misinfo validate experiment.yaml
  misinfo validate experiments/*.toml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				if err := validateFile(path); err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "ok   %s\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d experiments invalid", failed, len(args))
			}
			return nil
		},
	}
}

func validateFile(path string) error {
	exp, err := config.Load(path)
	if err != nil {
		return err
	}
	_, err = exp.Build()
	return err
}
