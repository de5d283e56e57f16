package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/core/variables"
)

// DefaultLoopVariable names the iteration value when the loop does not
// pick its own.
const DefaultLoopVariable = "item"

type loopBody struct {
	Iterations   int         `json:"iterations"`
	SuccessCount int         `json:"success_count"`
	FailureCount int         `json:"failure_count"`
	SkippedCount int         `json:"skipped_count"`
	Steps        []groupStep `json:"steps"`
}

// loop runs its sub-steps once per iteration, sequentially. The
// iteration value (and its index) live in the extracted scope so
// sub-step templates and conditions can read them; a later iteration
// overwrites them in place.
func (r *stepRun) loop(ctx context.Context) (*leaf.Result, error) {
	spec := r.step.Loop
	if spec == nil || len(spec.Steps) == 0 {
		return nil, leaf.NewError(leaf.KindSystem, "loop step %s has no sub-steps", r.step.Name)
	}

	items := spec.Items
	if len(items) == 0 {
		if spec.Count <= 0 {
			return nil, leaf.NewError(leaf.KindSystem, "loop step %s has neither items nor count", r.step.Name)
		}
		items = make([]any, spec.Count)
		for i := range items {
			items[i] = i
		}
	}

	name := spec.Variable
	if name == "" {
		name = DefaultLoopVariable
	}

	body := loopBody{Iterations: len(items)}
	start := time.Now()

	// Sub-steps of earlier iterations are visible to depends_on in
	// later ones; the last result for a name wins.
	prior := make(map[string]*StepResult, len(r.prior)+len(spec.Steps))
	for k, v := range r.prior {
		prior[k] = v
	}

	for i, item := range items {
		select {
		case <-ctx.Done():
			return nil, leaf.WrapError(leaf.KindTimeout, ctx.Err(), "loop step %s cancelled", r.step.Name)
		default:
		}

		_ = r.extractTo.Set(variables.ScopeExtracted, name, item)
		_ = r.extractTo.Set(variables.ScopeExtracted, name+"_index", i)

		for _, sub := range spec.Steps {
			run := &stepRun{e: r.e, step: sub, prior: prior, vars: r.extractTo, extractTo: r.extractTo}
			sr := run.execute(ctx)
			prior[sub.Name] = sr

			gs := groupStep{
				Name:       sr.Name,
				Status:     sr.Status,
				DurationMs: float64(sr.Duration().Microseconds()) / 1000.0,
			}
			if sr.Error != nil {
				gs.Error = sr.Error.Message
			}
			body.Steps = append(body.Steps, gs)

			switch sr.Status {
			case StatusSuccess:
				body.SuccessCount++
			case StatusSkipped:
				body.SkippedCount++
			default:
				body.FailureCount++
			}
		}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, leaf.WrapError(leaf.KindSystem, err, "encoding loop result")
	}
	resp := &leaf.Response{
		Status:   200,
		Headers:  map[string]string{"Content-Type": "application/json"},
		Body:     raw,
		Duration: time.Since(start),
	}

	if body.FailureCount > 0 {
		return nil, leaf.NewError(leaf.KindAssertion,
			"%d of %d loop sub-steps failed", body.FailureCount, len(body.Steps)).WithPartial(resp)
	}
	return &leaf.Result{Response: resp}, nil
}
