package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>",
	Short: "List all steps in flowspec files",
	Long: `List all test steps defined in flowspec YAML files.

Examples:
  flowspec list api.yaml
  flowspec list ./tests/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no .yaml or .yml files found")
	}

	for _, file := range files {
		tc, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s (%s):\n", file, tc.Name)
		for _, step := range tc.Steps {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s [%s]\n", step.Name, step.Type)
			if len(step.DependsOn) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    depends_on: %v\n", step.DependsOn)
			}
		}
	}

	return nil
}
