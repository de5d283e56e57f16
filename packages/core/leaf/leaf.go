package leaf

import (
	"context"

	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
)

// Operation is one side-effecting step action. Execute receives a step
// whose template fields are already rendered; it must not mutate the
// step. Failures should be returned as *Error so the engine can
// classify them; any other error is treated as kind system.
type Operation interface {
	Kind() parser.StepType
	Execute(ctx context.Context, step *parser.Step) (*Result, error)
}

// Result is what a leaf hands back on success.
type Result struct {
	Response *Response

	// Extracted carries values the leaf itself resolved, merged into
	// the extracted scope before the step's own extractors run. Most
	// leaves leave it nil.
	Extracted map[string]any

	// Performance carries optional timing detail keyed by phase name,
	// in milliseconds.
	Performance map[string]float64
}
