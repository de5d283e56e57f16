package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/abdul-hamid-achik/flowspec/packages/core/variables"
	"github.com/abdul-hamid-achik/flowspec/packages/script"
)

// runSetupHooks renders and runs each setup command in order. The first
// failure aborts the step.
func runSetupHooks(ctx context.Context, cmds []string, dir string, vars *variables.Manager) error {
	for _, cmd := range cmds {
		if err := runHook(ctx, cmd, dir, vars); err != nil {
			return fmt.Errorf("setup hook failed: %w", err)
		}
	}
	return nil
}

// runTeardownHooks runs every teardown command even when earlier ones
// fail. The first error comes back for logging; it never changes the
// step's own status.
func runTeardownHooks(ctx context.Context, cmds []string, dir string, vars *variables.Manager) error {
	var firstErr error
	for _, cmd := range cmds {
		if err := runHook(ctx, cmd, dir, vars); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("teardown hook failed: %w", err)
		}
	}
	return firstErr
}

func runHook(ctx context.Context, cmd string, dir string, vars *variables.Manager) error {
	rendered, err := vars.RenderString(cmd)
	if err != nil {
		return fmt.Errorf("rendering %q: %w", cmd, err)
	}
	rendered = strings.TrimSpace(rendered)
	if rendered == "" {
		return nil
	}

	result, err := script.Run(ctx, &parser.ScriptSpec{Command: rendered}, dir)
	if err != nil {
		return fmt.Errorf("command %q: %w (output: %s)", rendered, err, strings.TrimSpace(result.Output))
	}
	return nil
}
