// Package script runs shell-command steps. Commands go through sh -c
// (or the shell named by the step) with combined output captured, so a
// step can pipe, redirect, and use the variables rendered into it.
package script

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
)

// DefaultShell interprets commands that do not name their own shell.
const DefaultShell = "sh"

// Result is the outcome of one command run. Output is combined
// stdout+stderr in the order the process produced it.
type Result struct {
	Command  string
	Output   string
	ExitCode int
}

// Run executes one script payload. The command must be rendered before
// it gets here. A non-zero exit is returned as an error alongside the
// result so callers still see the output and exit code.
func Run(ctx context.Context, spec *parser.ScriptSpec, dir string) (*Result, error) {
	cmdStr := strings.TrimSpace(spec.Command)
	result := &Result{Command: cmdStr}
	if cmdStr == "" {
		return result, nil
	}

	shell := spec.Shell
	if shell == "" {
		shell = DefaultShell
	}

	cmd := exec.CommandContext(ctx, shell, "-c", cmdStr)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	output, err := cmd.CombinedOutput()
	result.Output = string(output)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, err
		}
		result.ExitCode = -1
		return result, err
	}
	return result, nil
}
