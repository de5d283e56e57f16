package engine

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/abdul-hamid-achik/flowspec/packages/ops"
)

// stubOp is a programmable leaf operation. The handler receives the
// zero-based call number and the rendered step, so tests can fail the
// first N attempts or inspect what rendering produced.
type stubOp struct {
	kind    parser.StepType
	delay   time.Duration
	handler func(call int, step *parser.Step) (*leaf.Result, error)

	mu       sync.Mutex
	calls    int
	commands []string

	inFlight    int32
	maxInFlight int32
}

func newStubOp(handler func(call int, step *parser.Step) (*leaf.Result, error)) *stubOp {
	return &stubOp{kind: parser.StepScript, handler: handler}
}

func (s *stubOp) Kind() parser.StepType { return s.kind }

func (s *stubOp) Execute(ctx context.Context, step *parser.Step) (*leaf.Result, error) {
	cur := atomic.AddInt32(&s.inFlight, 1)
	for {
		max := atomic.LoadInt32(&s.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&s.maxInFlight, max, cur) {
			break
		}
	}
	defer atomic.AddInt32(&s.inFlight, -1)

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, leaf.WrapError(leaf.KindTimeout, ctx.Err(), "stub interrupted")
		}
	}

	s.mu.Lock()
	call := s.calls
	s.calls++
	if step.Script != nil {
		s.commands = append(s.commands, step.Script.Command)
	}
	s.mu.Unlock()

	return s.handler(call, step)
}

func (s *stubOp) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubOp) renderedCommands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// okResult builds a successful leaf result with a JSON body.
func okResult(status int, body map[string]any) *leaf.Result {
	raw, _ := json.Marshal(body)
	return &leaf.Result{Response: &leaf.Response{
		Status:  status,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    raw,
	}}
}

// scriptStep builds a leaf step routed to the stub via the script slot.
func scriptStep(name string) *parser.Step {
	return &parser.Step{
		Name:   name,
		Type:   parser.StepScript,
		Script: &parser.ScriptSpec{Command: "true"},
	}
}

// newTestExecutor wires an executor whose script operation is the stub.
func newTestExecutor(stub *stubOp, opts ...Option) *Executor {
	registry := ops.NewRegistry()
	registry.Register(stub)
	return New(append([]Option{WithRegistry(registry)}, opts...)...)
}

func singleStepCase(step *parser.Step) *parser.TestCase {
	return &parser.TestCase{Name: "case", Steps: []*parser.Step{step}}
}
