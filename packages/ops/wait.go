package ops

import (
	"context"
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/abdul-hamid-achik/flowspec/packages/retry"
)

// WaitOp sleeps for the step's duration. Cancellation cuts the sleep
// short and fails the step.
type WaitOp struct{}

func (o *WaitOp) Kind() parser.StepType {
	return parser.StepWait
}

func (o *WaitOp) Execute(ctx context.Context, step *parser.Step) (*leaf.Result, error) {
	d := time.Duration(step.Wait.Seconds * float64(time.Second))
	start := time.Now()
	if err := retry.Sleep(ctx, d); err != nil {
		return nil, leaf.WrapError(leaf.KindTimeout, err, "wait interrupted after %s", time.Since(start))
	}
	return &leaf.Result{
		Response: &leaf.Response{
			Status:   200,
			Duration: time.Since(start),
		},
	}, nil
}
