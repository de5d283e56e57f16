package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
)

type groupStep struct {
	Name       string  `json:"name"`
	Status     Status  `json:"status"`
	DurationMs float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

type groupBody struct {
	SuccessCount int         `json:"success_count"`
	FailureCount int         `json:"failure_count"`
	SkippedCount int         `json:"skipped_count"`
	Steps        []groupStep `json:"steps"`
}

// concurrent fans the group's sub-steps out through the shared worker
// pool. Each sub-step renders against a private clone of the variable
// state taken before the group started, so no sub-step observes
// another's extractions mid-flight; extraction itself still lands in
// the shared store, last writer winning for a contested name.
func (r *stepRun) concurrent(ctx context.Context) (*leaf.Result, error) {
	spec := r.step.Concurrent
	if spec == nil || len(spec.Steps) == 0 {
		return nil, leaf.NewError(leaf.KindSystem, "concurrent step %s has no sub-steps", r.step.Name)
	}

	maxConc := spec.MaxConcurrency
	if maxConc <= 0 || maxConc > len(spec.Steps) {
		maxConc = len(spec.Steps)
	}

	var limiter *rate.Limiter
	if spec.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(spec.RateLimit), 1)
	}

	snap := r.vars.TakeSnapshot()
	p := r.e.pool()

	results := make([]*StepResult, len(spec.Steps))
	sem := make(chan struct{}, maxConc)
	var wg sync.WaitGroup

	start := time.Now()
	for i, sub := range spec.Steps {
		i, sub := i, sub

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return nil, leaf.WrapError(leaf.KindTimeout, ctx.Err(), "concurrent step %s cancelled", r.step.Name)
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				<-sem
				wg.Wait()
				return nil, leaf.WrapError(leaf.KindTimeout, err, "concurrent step %s cancelled", r.step.Name)
			}
		}

		wg.Add(1)
		err := p.Submit(ctx, func(subCtx context.Context) {
			defer wg.Done()
			defer func() { <-sem }()

			view := r.vars.Clone()
			view.Restore(snap)

			run := &stepRun{e: r.e, step: sub, prior: r.prior, vars: view, extractTo: r.extractTo}
			results[i] = run.execute(subCtx)
		})
		if err != nil {
			wg.Done()
			<-sem
			wg.Wait()
			return nil, leaf.WrapError(leaf.KindSystem, err, "concurrent step %s", r.step.Name)
		}
	}
	wg.Wait()

	return r.aggregate(results, time.Since(start))
}

// aggregate folds sub-step results into one synthetic JSON response.
// Any sub-step failure makes the whole group an assertion failure, with
// the aggregate attached as a partial response for reporting.
func (r *stepRun) aggregate(results []*StepResult, elapsed time.Duration) (*leaf.Result, error) {
	body := groupBody{Steps: make([]groupStep, 0, len(results))}
	for _, sr := range results {
		if sr == nil {
			continue
		}
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

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, leaf.WrapError(leaf.KindSystem, err, "encoding group result")
	}
	resp := &leaf.Response{
		Status:   200,
		Headers:  map[string]string{"Content-Type": "application/json"},
		Body:     raw,
		Duration: elapsed,
	}

	if body.FailureCount > 0 {
		return nil, leaf.NewError(leaf.KindAssertion,
			"%d of %d sub-steps failed", body.FailureCount, len(body.Steps)).WithPartial(resp)
	}
	return &leaf.Result{Response: resp}, nil
}
