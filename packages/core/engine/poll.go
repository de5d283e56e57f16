package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/flowspec/packages/conditions"
	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/abdul-hamid-achik/flowspec/packages/retry"
)

const (
	defaultPollInterval = time.Second
	defaultPollAttempts = 30
	maxPollInterval     = 30 * time.Second
)

var pollIndexPattern = regexp.MustCompile(`\[(\d+)\]`)

// poll repeats the step's leaf payload until the condition holds or the
// budget runs out. Polling replaces retry: a failed attempt is just an
// attempt whose condition did not hold, so transport errors wait for
// the next tick instead of aborting.
func (r *stepRun) poll(ctx context.Context) (*leaf.Result, *PollInfo, error) {
	spec := r.step.Poll
	info := &PollInfo{}
	if spec == nil {
		return nil, info, leaf.NewError(leaf.KindSystem, "poll step %s has no poll config", r.step.Name)
	}

	op, err := r.e.registry.Get(r.step.LeafType())
	if err != nil {
		return nil, info, leaf.WrapError(leaf.KindSystem, err, "poll step %s", r.step.Name)
	}

	maxAttempts := spec.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultPollAttempts
	}
	interval := time.Duration(spec.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = defaultPollInterval
	}

	deadline := time.Time{}
	if spec.TimeoutMs > 0 {
		deadline = time.Now().Add(time.Duration(spec.TimeoutMs) * time.Millisecond)
	}

	start := time.Now()
	var lastRes *leaf.Result
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		info.Attempts = attempt

		rendered, renderErr := renderStep(r.vars, r.step)
		if renderErr != nil {
			info.ElapsedMs = elapsedMs(start)
			return nil, info, leaf.WrapError(leaf.KindSystem, renderErr, "poll step %s", r.step.Name)
		}

		res, attemptErr := op.Execute(ctx, rendered)
		lastRes, lastErr = res, attemptErr

		if attemptErr == nil {
			ok, condErr := evalPollCondition(&spec.Condition, res.Response)
			if condErr != nil {
				info.ElapsedMs = elapsedMs(start)
				return nil, info, leaf.WrapError(leaf.KindParsing, condErr, "poll step %s", r.step.Name)
			}
			if ok {
				info.ElapsedMs = elapsedMs(start)
				return res, info, nil
			}
		} else {
			r.e.log.Debug().
				Str("step", r.step.Name).
				Int("attempt", attempt).
				Err(attemptErr).
				Msg("poll attempt failed, waiting for next tick")
		}

		if attempt == maxAttempts {
			break
		}
		wait := pollBackoff(spec.Backoff, interval, attempt)
		if !deadline.IsZero() && time.Now().Add(wait).After(deadline) {
			break
		}
		if err := retry.Sleep(ctx, wait); err != nil {
			info.ElapsedMs = elapsedMs(start)
			return nil, info, leaf.WrapError(leaf.KindTimeout, err, "poll step %s cancelled", r.step.Name)
		}
	}

	info.ElapsedMs = elapsedMs(start)
	info.TimedOut = true

	if r.step.OnTimeout != nil && r.step.OnTimeout.Behavior == "continue" {
		msg := r.step.OnTimeout.Message
		if msg == "" {
			msg = "poll budget exhausted, continuing"
		}
		r.e.log.Warn().Str("step", r.step.Name).Int("attempts", info.Attempts).Msg(msg)
		if lastRes != nil {
			return lastRes, info, nil
		}
		return &leaf.Result{}, info, nil
	}

	timeoutErr := leaf.NewError(leaf.KindTimeout,
		"condition not met after %d attempts (%dms)", info.Attempts, info.ElapsedMs)
	if lastRes != nil && lastRes.Response != nil {
		timeoutErr = timeoutErr.WithPartial(lastRes.Response)
	} else if partial := leaf.PartialOf(lastErr); partial != nil {
		timeoutErr = timeoutErr.WithPartial(partial)
	}
	return nil, info, timeoutErr
}

// evalPollCondition checks one attempt's response against the poll
// condition. A missing jsonpath value is simply "not yet", except for
// the exists operator where it is the answer.
func evalPollCondition(cond *parser.PollCondition, resp *leaf.Response) (bool, error) {
	if resp == nil {
		return false, nil
	}

	var actual any
	switch cond.Type {
	case "status_code":
		actual = resp.Status
	case "jsonpath", "":
		result := gjson.GetBytes(resp.Body, normalizePollPath(cond.Path))
		if !result.Exists() {
			if cond.Operator == "exists" {
				return conditions.Compare("exists", nil, cond.Expect)
			}
			return false, nil
		}
		actual = result.Value()
	default:
		return false, fmt.Errorf("unknown poll condition type %q", cond.Type)
	}

	op := cond.Operator
	if op == "" {
		op = "eq"
	}
	return conditions.Compare(op, actual, cond.Expect)
}

func normalizePollPath(path string) string {
	path = strings.TrimPrefix(path, "$")
	path = pollIndexPattern.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(path, ".")
}

// pollBackoff grows the wait between attempts. attempt is 1-based.
func pollBackoff(strategy string, base time.Duration, attempt int) time.Duration {
	var d time.Duration
	switch strategy {
	case "linear":
		d = base * time.Duration(attempt)
	case "exponential":
		d = base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= maxPollInterval {
				break
			}
		}
	default:
		d = base
	}
	if d > maxPollInterval {
		d = maxPollInterval
	}
	return d
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
