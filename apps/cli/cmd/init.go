package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new flowspec project",
	Long: `Initialize a new flowspec project in the current directory.

This creates:
  - .flowspec.yaml  - Configuration file with profiles and defaults
  - example.yaml    - Example test case

Examples:
  flowspec init
  flowspec init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, ".flowspec.yaml")
	exampleFile := filepath.Join(cwd, "example.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	configContent := `default_profile: dev
timeout_ms: 30000
retry_times: 0
retry_delay_ms: 1000
concurrency: 1
reporters:
  - console
variables:
  base_url: http://localhost:3000
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	exampleContent := `name: example
description: A small end-to-end flow against a local API.

variables:
  base_url: http://localhost:3000

profiles:
  dev:
    variables:
      base_url: http://localhost:3000
  staging:
    variables:
      base_url: https://staging.api.example.com

steps:
  - name: health check
    type: request
    request:
      method: GET
      url: ${base_url}/health
    validate:
      - type: status_code
        expect: 200

  - name: create resource
    type: request
    request:
      method: POST
      url: ${base_url}/resources
      headers:
        Content-Type: application/json
      body:
        name: Test Resource
    validate:
      - type: status_code
        expect: 201
      - type: jsonpath
        path: $.name
        expect: Test Resource
    extract:
      - name: resource_id
        type: jsonpath
        path: $.id

  - name: get resource
    type: request
    depends_on:
      - create resource
    request:
      method: GET
      url: ${base_url}/resources/${resource_id}
    validate:
      - type: status_code
        expect: 200
      - type: jsonpath
        path: $.id
        expect: ${resource_id}
`

	if err := os.WriteFile(exampleFile, []byte(exampleContent), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nflowspec project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'flowspec run example.yaml' to execute the example tests.\n")

	return nil
}
