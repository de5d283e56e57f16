package ops

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/abdul-hamid-achik/flowspec/packages/script"
)

// ScriptOp runs the shell command a script step describes. The exit
// code becomes the response status and the combined output the body, so
// extractors and validations can read both.
type ScriptOp struct {
	dir string
}

func (o *ScriptOp) Kind() parser.StepType {
	return parser.StepScript
}

func (o *ScriptOp) Execute(ctx context.Context, step *parser.Step) (*leaf.Result, error) {
	start := time.Now()
	result, err := script.Run(ctx, step.Script, o.dir)
	duration := time.Since(start)

	resp := &leaf.Response{
		Status:   result.ExitCode,
		Body:     []byte(result.Output),
		Duration: duration,
		Raw:      result,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, leaf.WrapError(leaf.KindBusiness, err,
				"script exited with code %d", result.ExitCode).WithPartial(resp)
		}
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, leaf.WrapError(leaf.KindTimeout, err, "script timed out").WithPartial(resp)
		}
		return nil, leaf.WrapError(leaf.KindSystem, err, "running script").WithPartial(resp)
	}

	return &leaf.Result{
		Response: resp,
		Performance: map[string]float64{
			"exec_ms": float64(duration.Microseconds()) / 1000.0,
		},
	}, nil
}
