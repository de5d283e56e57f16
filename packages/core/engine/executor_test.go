package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/abdul-hamid-achik/flowspec/packages/notify"
)

type recordingListener struct {
	mu        sync.Mutex
	starts    []notify.StepStart
	completes []notify.StepComplete
	tests     []notify.TestStart
}

func (l *recordingListener) OnTestStart(e notify.TestStart) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tests = append(l.tests, e)
}

func (l *recordingListener) OnStepStart(e notify.StepStart) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts = append(l.starts, e)
}

func (l *recordingListener) OnStepComplete(e notify.StepComplete) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completes = append(l.completes, e)
}

func TestExecutorRunsStepsInOrder(t *testing.T) {
	var order []string
	stub := newStubOp(func(call int, step *parser.Step) (*leaf.Result, error) {
		order = append(order, step.Name)
		return okResult(200, nil), nil
	})
	e := newTestExecutor(stub)

	tc := &parser.TestCase{
		Name:  "ordered",
		Steps: []*parser.Step{scriptStep("a"), scriptStep("b"), scriptStep("c")},
	}
	result := e.Run(context.Background(), tc)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 3, result.Passed)
}

func TestExecutorContinuesAfterFailure(t *testing.T) {
	stub := newStubOp(func(call int, step *parser.Step) (*leaf.Result, error) {
		if step.Name == "b" {
			return nil, leaf.NewError(leaf.KindNetwork, "down")
		}
		return okResult(200, nil), nil
	})
	e := newTestExecutor(stub)

	tc := &parser.TestCase{
		Name:  "resilient",
		Steps: []*parser.Step{scriptStep("a"), scriptStep("b"), scriptStep("c")},
	}
	result := e.Run(context.Background(), tc)

	assert.Equal(t, 3, stub.callCount())
	assert.Equal(t, StatusFailure, result.Status)
	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, 1, result.Failed)
}

func TestExecutorSeedsScopes(t *testing.T) {
	stub := newStubOp(func(call int, step *parser.Step) (*leaf.Result, error) {
		return okResult(200, nil), nil
	})
	e := newTestExecutor(stub, WithOverrides(map[string]any{"region": "eu-west-1"}))

	tc := &parser.TestCase{
		Name:      "scoped",
		Variables: map[string]any{"base_url": "http://global", "region": "us-east-1"},
		Profiles: map[string]parser.Profile{
			"staging": {
				Variables: map[string]any{"base_url": "http://staging"},
				Overrides: map[string]any{"api_key": "staging-key"},
			},
		},
		ActiveProfile: "staging",
		Steps:         []*parser.Step{scriptStep("probe")},
	}
	result := e.Run(context.Background(), tc)

	assert.Equal(t, "http://staging", result.Variables["base_url"])
	assert.Equal(t, "staging-key", result.Variables["api_key"])
	assert.Equal(t, "eu-west-1", result.Variables["region"], "runtime overrides beat global values")
}

func TestExecutorEmitsEvents(t *testing.T) {
	stub := newStubOp(func(call int, step *parser.Step) (*leaf.Result, error) {
		if step.Name == "bad" {
			return nil, leaf.NewError(leaf.KindTimeout, "deadline exceeded")
		}
		return okResult(200, nil), nil
	})
	listener := &recordingListener{}
	e := newTestExecutor(stub, WithEvents(notify.NewManager(listener)))

	tc := &parser.TestCase{
		Name:  "observed",
		Steps: []*parser.Step{scriptStep("good"), scriptStep("bad")},
	}
	e.Run(context.Background(), tc)

	require.Len(t, listener.tests, 1)
	assert.Equal(t, "observed", listener.tests[0].Case)
	assert.Equal(t, 2, listener.tests[0].Steps)

	require.Len(t, listener.starts, 2)
	assert.Equal(t, 0, listener.starts[0].Index)
	assert.Equal(t, 1, listener.starts[1].Index)

	require.Len(t, listener.completes, 2)
	assert.Equal(t, string(StatusSuccess), listener.completes[0].Status)
	assert.Equal(t, string(StatusFailure), listener.completes[1].Status)
	assert.Contains(t, listener.completes[1].Error, "deadline exceeded")
}

func TestExecutorCollectsLatency(t *testing.T) {
	stub := newStubOp(func(call int, step *parser.Step) (*leaf.Result, error) {
		return okResult(200, nil), nil
	})
	e := newTestExecutor(stub)

	tc := &parser.TestCase{
		Name:  "timed",
		Steps: []*parser.Step{scriptStep("a"), scriptStep("b")},
	}
	result := e.Run(context.Background(), tc)

	require.NotNil(t, result.Latency)
	assert.Equal(t, int64(2), result.Latency.Total)
	assert.Equal(t, int64(0), result.Latency.Failures)
	assert.Contains(t, result.Latency.PerStep, "a")
	assert.Contains(t, result.Latency.PerStep, "b")
}

func TestExecutorEmptyCaseSucceeds(t *testing.T) {
	e := New()
	result := e.Run(context.Background(), &parser.TestCase{Name: "empty"})

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Empty(t, result.Steps)
	assert.False(t, result.EndTime.IsZero())
}
