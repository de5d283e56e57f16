// Package ops provides the leaf operations behind each step type:
// request, database, script, and wait. The engine looks operations up
// by the step's leaf type and hands them fully rendered steps.
package ops

import (
	"fmt"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/abdul-hamid-achik/flowspec/packages/http"
)

// Registry maps step types to their leaf operations.
type Registry struct {
	ops map[parser.StepType]leaf.Operation
}

type Option func(*Registry)

// WithHTTPClient replaces the default HTTP client used by request steps.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Registry) {
		r.ops[parser.StepRequest] = &RequestOp{client: client}
	}
}

// WithBaseDir sets the working directory for script steps.
func WithBaseDir(dir string) Option {
	return func(r *Registry) {
		r.ops[parser.StepScript] = &ScriptOp{dir: dir}
	}
}

// NewRegistry builds a registry with the default operation per leaf
// step type. Options replace individual operations.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{ops: make(map[parser.StepType]leaf.Operation)}
	r.Register(&RequestOp{client: http.NewClient()})
	r.Register(&DatabaseOp{})
	r.Register(&ScriptOp{})
	r.Register(&WaitOp{})
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces the operation for its step type.
func (r *Registry) Register(op leaf.Operation) {
	r.ops[op.Kind()] = op
}

// Get returns the operation for a leaf step type.
func (r *Registry) Get(t parser.StepType) (leaf.Operation, error) {
	op, ok := r.ops[t]
	if !ok {
		return nil, fmt.Errorf("no operation registered for step type %s", t)
	}
	return op, nil
}

// Close releases resources held by registered operations.
func (r *Registry) Close() error {
	var firstErr error
	for _, op := range r.ops {
		if closer, ok := op.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
