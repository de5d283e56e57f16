package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
)

func pollStep(name string, spec *parser.PollSpec) *parser.Step {
	return &parser.Step{
		Name:   name,
		Type:   parser.StepPoll,
		Script: &parser.ScriptSpec{Command: "true"},
		Poll:   spec,
	}
}

func TestPollSucceedsWhenConditionHolds(t *testing.T) {
	stub := newStubOp(func(call int, step *parser.Step) (*leaf.Result, error) {
		if call < 2 {
			return okResult(200, map[string]any{"status": "pending"}), nil
		}
		return okResult(200, map[string]any{"status": "ready"}), nil
	})
	e := newTestExecutor(stub)

	step := pollStep("wait-ready", &parser.PollSpec{
		Condition:   parser.PollCondition{Type: "jsonpath", Path: "$.status", Operator: "eq", Expect: "ready"},
		MaxAttempts: 10,
		IntervalMs:  1,
	})
	result := e.Run(context.Background(), singleStepCase(step))

	sr := result.Steps[0]
	assert.Equal(t, StatusSuccess, sr.Status)
	assert.Equal(t, 3, stub.callCount())
	require.NotNil(t, sr.Poll)
	assert.Equal(t, 3, sr.Poll.Attempts)
	assert.False(t, sr.Poll.TimedOut)
	require.NotNil(t, sr.Response)
	assert.Contains(t, sr.Response.BodyString(), "ready")
}

func TestPollExhaustedFails(t *testing.T) {
	stub := newStubOp(func(call int, step *parser.Step) (*leaf.Result, error) {
		return okResult(200, map[string]any{"status": "pending"}), nil
	})
	e := newTestExecutor(stub)

	step := pollStep("never-ready", &parser.PollSpec{
		Condition:   parser.PollCondition{Type: "jsonpath", Path: "$.status", Operator: "eq", Expect: "ready"},
		MaxAttempts: 3,
		IntervalMs:  1,
	})
	result := e.Run(context.Background(), singleStepCase(step))

	sr := result.Steps[0]
	assert.Equal(t, StatusFailure, sr.Status)
	assert.Equal(t, 3, stub.callCount(), "exactly max_attempts probes, no retry on top of polling")
	require.NotNil(t, sr.Poll)
	assert.Equal(t, 3, sr.Poll.Attempts)
	assert.True(t, sr.Poll.TimedOut)
	require.NotNil(t, sr.Error)
	assert.Equal(t, "timeout", sr.Error.Category)
	require.NotNil(t, sr.Response, "last probe survives as a partial response")
	assert.Contains(t, sr.Response.BodyString(), "pending")
}

func TestPollOnTimeoutContinue(t *testing.T) {
	stub := newStubOp(func(call int, step *parser.Step) (*leaf.Result, error) {
		return okResult(200, map[string]any{"status": "pending"}), nil
	})
	e := newTestExecutor(stub)

	step := pollStep("best-effort", &parser.PollSpec{
		Condition:   parser.PollCondition{Type: "jsonpath", Path: "$.status", Operator: "eq", Expect: "ready"},
		MaxAttempts: 2,
		IntervalMs:  1,
	})
	step.OnTimeout = &parser.OnTimeout{Behavior: "continue", Message: "still warming up"}
	result := e.Run(context.Background(), singleStepCase(step))

	sr := result.Steps[0]
	assert.Equal(t, StatusSuccess, sr.Status)
	require.NotNil(t, sr.Poll)
	assert.True(t, sr.Poll.TimedOut)
	assert.Equal(t, 2, sr.Poll.Attempts)
	assert.Equal(t, 1, result.Passed)
}

func TestPollStatusCodeCondition(t *testing.T) {
	stub := newStubOp(func(call int, step *parser.Step) (*leaf.Result, error) {
		if call == 0 {
			return okResult(404, nil), nil
		}
		return okResult(200, nil), nil
	})
	e := newTestExecutor(stub)

	step := pollStep("health", &parser.PollSpec{
		Condition:   parser.PollCondition{Type: "status_code", Operator: "eq", Expect: 200},
		MaxAttempts: 5,
		IntervalMs:  1,
	})
	result := e.Run(context.Background(), singleStepCase(step))

	assert.Equal(t, StatusSuccess, result.Steps[0].Status)
	assert.Equal(t, 2, stub.callCount())
}

func TestPollToleratesAttemptErrors(t *testing.T) {
	stub := newStubOp(func(call int, step *parser.Step) (*leaf.Result, error) {
		if call == 0 {
			return nil, leaf.NewError(leaf.KindNetwork, "connection refused")
		}
		return okResult(200, map[string]any{"status": "ready"}), nil
	})
	e := newTestExecutor(stub)

	step := pollStep("warming", &parser.PollSpec{
		Condition:   parser.PollCondition{Type: "jsonpath", Path: "$.status", Operator: "exists"},
		MaxAttempts: 5,
		IntervalMs:  1,
	})
	result := e.Run(context.Background(), singleStepCase(step))

	assert.Equal(t, StatusSuccess, result.Steps[0].Status)
	assert.Equal(t, 2, stub.callCount(), "a transport error waits for the next tick instead of aborting")
}

func TestPollBackoff(t *testing.T) {
	base := 100 * time.Millisecond

	tests := []struct {
		name     string
		strategy string
		attempt  int
		want     time.Duration
	}{
		{"fixed stays flat", "fixed", 5, base},
		{"default is fixed", "", 3, base},
		{"linear grows", "linear", 3, 300 * time.Millisecond},
		{"exponential doubles", "exponential", 3, 400 * time.Millisecond},
		{"exponential is capped", "exponential", 20, maxPollInterval},
		{"linear is capped", "linear", 10000, maxPollInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pollBackoff(tt.strategy, base, tt.attempt))
		})
	}
}
