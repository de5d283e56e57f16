package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/conditions"
	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/abdul-hamid-achik/flowspec/packages/core/variables"
	"github.com/abdul-hamid-achik/flowspec/packages/extract"
	"github.com/abdul-hamid-achik/flowspec/packages/retry"
	"github.com/abdul-hamid-achik/flowspec/packages/validate"
)

// stepRun executes one step. vars is the view templates render against;
// extractTo receives extracted values. They are the same manager except
// for concurrent sub-steps, which render against a snapshot clone while
// extraction still targets the shared store.
type stepRun struct {
	e         *Executor
	step      *parser.Step
	prior     map[string]*StepResult
	vars      *variables.Manager
	extractTo *variables.Manager
}

func (r *stepRun) execute(ctx context.Context) *StepResult {
	step := r.step
	result := newStepResult(step.Name, step.Type.String())

	skip, reason, err := r.gate()
	if err != nil {
		// Malformed conditions are configuration errors, not test
		// failures.
		result.Status = StatusError
		result.Error = errorInfoFrom(err)
		result.finalize()
		return result
	}
	if skip {
		result.markSkipped(reason)
		result.finalize()
		return result
	}

	if err := runSetupHooks(ctx, step.Setup, r.e.baseDir, r.vars); err != nil {
		result.Status = StatusError
		result.Error = errorInfoFrom(err)
		r.teardown(ctx)
		result.finalize()
		return result
	}

	var res *leaf.Result
	switch step.Type {
	case parser.StepConcurrent:
		res, err = r.concurrent(ctx)
	case parser.StepLoop:
		res, err = r.loop(ctx)
	case parser.StepPoll:
		res, result.Poll, err = r.poll(ctx)
	default:
		res, err = r.attemptLoop(ctx, result)
	}

	if err != nil {
		r.fail(result, err)
	} else {
		r.succeed(ctx, result, res)
	}

	r.teardown(ctx)
	result.finalize()
	return result
}

// gate decides whether the step runs at all. An undefined variable in a
// condition degrades to falsy rather than failing the step; a step that
// depends on values an earlier skipped step never produced must itself
// skip, not error.
func (r *stepRun) gate() (skip bool, reason string, err error) {
	ev := conditions.New(r.vars)

	if r.step.SkipIf != nil {
		v, err := ev.Evaluate(r.step.SkipIf)
		if err != nil {
			if !errors.Is(err, variables.ErrUndefined) {
				return false, "", err
			}
			r.e.log.Warn().Str("step", r.step.Name).Err(err).Msg("skip_if references undefined variable, treating as false")
			v = false
		}
		if v {
			return true, "skip_if condition met", nil
		}
	}

	if r.step.OnlyIf != nil {
		v, err := ev.Evaluate(r.step.OnlyIf)
		if err != nil {
			if !errors.Is(err, variables.ErrUndefined) {
				return false, "", err
			}
			r.e.log.Warn().Str("step", r.step.Name).Err(err).Msg("only_if references undefined variable, treating as false")
			v = false
		}
		if !v {
			return true, "only_if condition not met", nil
		}
	}

	for _, dep := range r.step.DependsOn {
		prev, ok := r.prior[dep]
		if !ok {
			return true, fmt.Sprintf("dependency %q did not run", dep), nil
		}
		if prev.Status != StatusSuccess {
			return true, fmt.Sprintf("dependency %q was %s", dep, prev.Status), nil
		}
	}
	return false, "", nil
}

// attemptLoop is the retry-wrapped invocation of the step's leaf
// operation. Validations run inside each attempt: a response that fails
// them is an assertion failure eligible for retry, same as a transport
// error.
func (r *stepRun) attemptLoop(ctx context.Context, result *StepResult) (*leaf.Result, error) {
	op, err := r.e.registry.Get(r.step.LeafType())
	if err != nil {
		return nil, leaf.WrapError(leaf.KindSystem, err, "step %s", r.step.Name)
	}

	rm := retry.NewManager(r.policy())
	timeout := time.Duration(r.step.Timeout)
	start := time.Now()

	var delayBefore time.Duration
	for attempt := 0; ; attempt++ {
		rendered, renderErr := renderStep(r.vars, r.step)
		if renderErr != nil {
			// A half-rendered payload must not go out on the wire, and
			// re-rendering cannot fix a missing variable.
			return nil, leaf.WrapError(leaf.KindSystem, renderErr, "step %s", r.step.Name)
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		attemptStart := time.Now()
		res, attemptErr := op.Execute(attemptCtx, rendered)
		duration := time.Since(attemptStart)
		if cancel != nil {
			cancel()
		}

		if attemptErr == nil && len(r.step.Validate) > 0 {
			results := validate.ValidateAll(res.Response, r.step.Validate, validate.WithBaseDir(r.e.baseDir))
			result.Validations = results
			if failed := validate.Failures(results); len(failed) > 0 {
				attemptErr = leaf.NewError(leaf.KindAssertion,
					"%d of %d validations failed", len(failed), len(results)).WithPartial(res.Response)
			}
		}

		rm.RecordAttempt(attemptErr == nil, attemptErr, delayBefore, duration)

		if attemptErr == nil {
			result.RetryCount = attempt
			result.RetryHistory = rm.History()
			return res, nil
		}

		attemptsMade := attempt + 1
		retryable := rm.ShouldRetry(attemptErr, attemptsMade)
		if retryable && timeout > 0 && time.Since(start) >= timeout {
			r.e.log.Warn().Str("step", r.step.Name).Msg("step timeout exceeded, suppressing further retries")
			retryable = false
		}
		if !retryable {
			result.RetryCount = attempt
			result.RetryHistory = rm.History()
			return nil, attemptErr
		}

		delayBefore = rm.Delay(attempt)
		r.e.log.Debug().
			Str("step", r.step.Name).
			Int("attempt", attemptsMade).
			Dur("delay", delayBefore).
			Err(attemptErr).
			Msg("retrying step")
		if err := retry.Sleep(ctx, delayBefore); err != nil {
			result.RetryCount = attempt
			result.RetryHistory = rm.History()
			return nil, attemptErr
		}
	}
}

// policy normalizes the step's retry configuration: a structured
// retry_policy wins over the retry_times shorthand.
func (r *stepRun) policy() *retry.Policy {
	if r.step.RetryPolicy != nil {
		return retry.FromParser(r.step.RetryPolicy)
	}
	return retry.FromTimes(r.step.RetryTimes)
}

// succeed merges the leaf outcome into the result and runs extraction.
// Extraction misses are diagnostics, never failures.
func (r *stepRun) succeed(ctx context.Context, result *StepResult, res *leaf.Result) {
	result.Status = StatusSuccess
	if res == nil {
		return
	}
	result.Response = res.Response

	if len(res.Extracted) > 0 {
		_ = r.extractTo.SetMany(variables.ScopeExtracted, res.Extracted)
		if result.Extracted == nil {
			result.Extracted = make(map[string]any, len(res.Extracted))
		}
		for k, v := range res.Extracted {
			result.Extracted[k] = v
		}
	}

	if len(r.step.Extract) == 0 {
		return
	}
	rendered, err := renderStep(r.vars, r.step)
	if err != nil {
		rendered = r.step
	}
	vars, diags := extract.ExtractAll(res.Response, rendered.Extract)
	for _, d := range diags {
		r.e.log.Warn().Str("step", r.step.Name).Str("variable", d.Name).Err(d.Err).Msg("extraction failed, variable left unset")
	}
	if len(vars) > 0 {
		_ = r.extractTo.SetMany(variables.ScopeExtracted, vars)
		if result.Extracted == nil {
			result.Extracted = make(map[string]any, len(vars))
		}
		for k, v := range vars {
			result.Extracted[k] = v
		}
	}
}

// fail turns a terminal error into the step's status, recovering any
// partial response the leaf attached to it.
func (r *stepRun) fail(result *StepResult, err error) {
	result.Status = StatusFailure
	result.Error = errorInfoFrom(err)
	if partial := leaf.PartialOf(err); partial != nil {
		result.Response = partial
	}
}

// teardown always runs; failures are logged and swallowed.
func (r *stepRun) teardown(ctx context.Context) {
	if err := runTeardownHooks(ctx, r.step.Teardown, r.e.baseDir, r.vars); err != nil {
		r.e.log.Warn().Str("step", r.step.Name).Err(err).Msg("teardown hook failed")
	}
}
