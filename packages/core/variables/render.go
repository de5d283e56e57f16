package variables

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// refPattern matches one ${...} reference. References do not nest.
var refPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ErrUndefined is wrapped by render errors for names and function calls
// that resolve nowhere. Callers decide severity: condition gates treat
// it as falsy, payload rendering treats it as a step error.
var ErrUndefined = errors.New("undefined variable")

// DefaultMaxPasses bounds the re-render loop. Values may reference other
// variables, so rendering repeats until a pass changes nothing; a
// referential cycle is a configuration error and yields the last value
// once the cap is hit.
const DefaultMaxPasses = 10

// Render substitutes ${name} and ${func(args)} references. When the
// entire trimmed template is a single reference the resolved value keeps
// its type, so "${x}" with x=42 renders to the integer 42 while
// "v_${x}" renders to the string "v_42".
func (m *Manager) Render(template string) (any, error) {
	return m.RenderWithLimit(template, DefaultMaxPasses)
}

// RenderWithLimit is Render with an explicit pass cap.
func (m *Manager) RenderWithLimit(template string, maxPasses int) (any, error) {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	current := template
	for i := 0; i < maxPasses; i++ {
		out, err := m.renderOnce(current)
		if err != nil {
			return nil, err
		}
		next, isString := out.(string)
		if !isString {
			return out, nil
		}
		if next == current {
			return next, nil
		}
		current = next
	}
	return current, nil
}

// RenderString is Render with the result forced to a string.
func (m *Manager) RenderString(template string) (string, error) {
	v, err := m.Render(template)
	if err != nil {
		return "", err
	}
	return stringify(v), nil
}

// RenderStructured walks a nested mapping/sequence and renders every
// string leaf, leaving other leaves untouched. Map keys are not
// rendered.
func (m *Manager) RenderStructured(value any) (any, error) {
	switch val := value.(type) {
	case string:
		return m.Render(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			rendered, err := m.RenderStructured(item)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rendered, err := m.RenderStructured(item)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return value, nil
	}
}

// renderOnce performs a single substitution pass. A template that is
// exactly one reference resolves to the referenced value itself;
// anything else interpolates into a string.
func (m *Manager) renderOnce(template string) (any, error) {
	trimmed := strings.TrimSpace(template)
	if loc := refPattern.FindStringSubmatchIndex(trimmed); loc != nil && loc[0] == 0 && loc[1] == len(trimmed) {
		expr := strings.TrimSpace(trimmed[loc[2]:loc[3]])
		return m.resolveExpr(expr)
	}

	var firstErr error
	out := refPattern.ReplaceAllStringFunc(template, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-1])
		v, err := m.resolveExpr(expr)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return stringify(v)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// resolveExpr resolves one reference body: a function call when it
// parses as one and is registered, otherwise a scope lookup.
func (m *Manager) resolveExpr(expr string) (any, error) {
	if strings.Contains(expr, "(") {
		if v, ok := m.funcs.Call(expr); ok {
			return v, nil
		}
	}
	if v, ok := m.Lookup(expr); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUndefined, expr)
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
