package engine

import (
	"fmt"

	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/abdul-hamid-achik/flowspec/packages/core/variables"
)

// renderStep returns a clone of the step with every template field of
// its leaf payload substituted against the current variable view. The
// parsed definition is never touched, so each retry attempt re-renders
// against fresh values.
func renderStep(vars *variables.Manager, step *parser.Step) (*parser.Step, error) {
	out := step.Clone()

	if out.Request != nil {
		if err := renderRequest(vars, out.Request); err != nil {
			return nil, fmt.Errorf("rendering request: %w", err)
		}
	}
	if out.Database != nil {
		var err error
		if out.Database.DSN, err = vars.RenderString(out.Database.DSN); err != nil {
			return nil, fmt.Errorf("rendering dsn: %w", err)
		}
		if out.Database.Query, err = vars.RenderString(out.Database.Query); err != nil {
			return nil, fmt.Errorf("rendering query: %w", err)
		}
	}
	if out.Script != nil {
		var err error
		if out.Script.Command, err = vars.RenderString(out.Script.Command); err != nil {
			return nil, fmt.Errorf("rendering command: %w", err)
		}
	}

	for _, ex := range out.Extract {
		var err error
		if ex.Path, err = vars.RenderString(ex.Path); err != nil {
			return nil, fmt.Errorf("rendering extractor %s: %w", ex.Name, err)
		}
	}

	return out, nil
}

func renderRequest(vars *variables.Manager, req *parser.RequestSpec) error {
	var err error
	if req.URL, err = vars.RenderString(req.URL); err != nil {
		return err
	}
	for k, v := range req.Headers {
		if req.Headers[k], err = vars.RenderString(v); err != nil {
			return err
		}
	}
	for k, v := range req.Params {
		if req.Params[k], err = vars.RenderString(v); err != nil {
			return err
		}
	}
	if req.Body != nil {
		if req.Body, err = vars.RenderStructured(req.Body); err != nil {
			return err
		}
	}
	return nil
}
