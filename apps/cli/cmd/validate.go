package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>",
	Short: "Check flowspec files for errors without running them",
	Long: `Parse flowspec YAML files and report structural errors: unknown step
types, missing payloads, duplicate step names, malformed durations.

Examples:
  flowspec validate api.yaml
  flowspec validate ./tests/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .yaml or .yml files found")
	}

	bad := 0
	for _, file := range files {
		tc, err := parser.ParseFile(file)
		if err != nil {
			bad++
			fmt.Fprintf(cmd.OutOrStderr(), "FAIL %s: %v\n", file, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK   %s (%d steps)\n", file, len(tc.Steps))
	}

	if bad > 0 {
		return fmt.Errorf("%d of %d files failed validation", bad, len(files))
	}
	return nil
}
