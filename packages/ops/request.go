package ops

import (
	"context"
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/abdul-hamid-achik/flowspec/packages/http"
)

// RequestOp sends the HTTP request a request step describes.
type RequestOp struct {
	client *http.Client
}

func NewRequestOp(client *http.Client) *RequestOp {
	if client == nil {
		client = http.NewClient()
	}
	return &RequestOp{client: client}
}

func (o *RequestOp) Kind() parser.StepType {
	return parser.StepRequest
}

func (o *RequestOp) Execute(ctx context.Context, step *parser.Step) (*leaf.Result, error) {
	req, err := http.FromSpec(step.Request, time.Duration(step.Timeout))
	if err != nil {
		return nil, leaf.WrapError(leaf.KindParsing, err, "building request for %s", step.Name)
	}

	resp, err := o.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	return &leaf.Result{
		Response: resp,
		Performance: map[string]float64{
			"total_ms": resp.DurationMs(),
		},
	}, nil
}
