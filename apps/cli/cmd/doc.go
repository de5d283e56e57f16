// Package cmd implements the flowspec CLI commands using Cobra.
//
// Available commands:
//   - run: Execute test cases from flowspec YAML files
//   - validate: Check test file syntax without executing
//   - list: Display the steps defined in files
//   - init: Create a new flowspec project with example files
//   - version: Show flowspec version information
//
// The CLI supports flags for profiles, variable overrides, output
// formatting, parallel execution, and watch mode for development
// workflows.
package cmd
