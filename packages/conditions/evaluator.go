package conditions

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/abdul-hamid-achik/flowspec/packages/core/variables"
)

// ErrMalformed marks structural condition errors: unknown operators,
// wrong key counts, missing operands. These propagate to the caller
// and are never retried.
var ErrMalformed = errors.New("malformed condition")

// Evaluator reduces conditions to booleans against a variable store.
type Evaluator struct {
	vars *variables.Manager
}

func New(vars *variables.Manager) *Evaluator {
	return &Evaluator{vars: vars}
}

// Evaluate reduces any condition shape to a bool. Nil and empty
// conditions are true. Render errors (undefined variables) propagate;
// the caller decides whether that skips the step or fails it.
func (e *Evaluator) Evaluate(cond any) (bool, error) {
	switch val := cond.(type) {
	case nil:
		return true, nil
	case bool:
		return val, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return true, nil
		}
		return e.evaluateString(val)
	case map[string]any:
		return e.evaluateStructured(val)
	case []any:
		for _, sub := range val {
			ok, err := e.Evaluate(sub)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case int, int32, int64, float32, float64:
		return Truthy(val), nil
	default:
		return false, fmt.Errorf("%w: unsupported condition shape %T", ErrMalformed, cond)
	}
}

// evaluateStructured handles {and: [...]}, {or: [...]} and {not: ...}.
func (e *Evaluator) evaluateStructured(m map[string]any) (bool, error) {
	if len(m) != 1 {
		return false, fmt.Errorf("%w: structured condition needs exactly one of and/or/not, got %d keys", ErrMalformed, len(m))
	}
	for key, sub := range m {
		switch key {
		case "and":
			subs, ok := sub.([]any)
			if !ok {
				return false, fmt.Errorf("%w: 'and' needs a sequence of conditions", ErrMalformed)
			}
			for _, c := range subs {
				res, err := e.Evaluate(c)
				if err != nil {
					return false, err
				}
				if !res {
					return false, nil
				}
			}
			return true, nil
		case "or":
			subs, ok := sub.([]any)
			if !ok {
				return false, fmt.Errorf("%w: 'or' needs a sequence of conditions", ErrMalformed)
			}
			for _, c := range subs {
				res, err := e.Evaluate(c)
				if err != nil {
					return false, err
				}
				if res {
					return true, nil
				}
			}
			return false, nil
		case "not":
			res, err := e.Evaluate(sub)
			if err != nil {
				return false, err
			}
			return !res, nil
		default:
			return false, fmt.Errorf("%w: unknown structured condition key %q", ErrMalformed, key)
		}
	}
	return true, nil
}

type tokenKind int

const (
	tokOperand tokenKind = iota
	tokAnd
	tokOr
	tokNot
	tokLit
)

type token struct {
	kind tokenKind
	text string
	lit  bool
}

// evaluateString dispatches between concise expressions (containing
// whole-word and/or/not) and single comparison expressions.
func (e *Evaluator) evaluateString(s string) (bool, error) {
	tokens := splitLogical(s)
	concise := false
	for _, t := range tokens {
		if t.kind != tokOperand {
			concise = true
			break
		}
	}
	if !concise {
		return e.evaluateComparison(s)
	}
	return e.foldConcise(tokens)
}

// splitLogical tokenizes on whitespace, treating the exact words and,
// or, not as operators and merging every other run of fields into one
// operand.
func splitLogical(s string) []token {
	fields := strings.Fields(s)
	var tokens []token
	var operand []string
	flush := func() {
		if len(operand) > 0 {
			tokens = append(tokens, token{kind: tokOperand, text: strings.Join(operand, " ")})
			operand = nil
		}
	}
	for _, f := range fields {
		switch f {
		case "and":
			flush()
			tokens = append(tokens, token{kind: tokAnd})
		case "or":
			flush()
			tokens = append(tokens, token{kind: tokOr})
		case "not":
			flush()
			tokens = append(tokens, token{kind: tokNot})
		default:
			operand = append(operand, f)
		}
	}
	flush()
	return tokens
}

// foldConcise reduces the token list operator class by operator class,
// NOT first, then AND, then OR, so AND binds tighter than OR.
func (e *Evaluator) foldConcise(tokens []token) (bool, error) {
	// NOT folds right to left so chains apply innermost first.
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].kind != tokNot {
			continue
		}
		if i+1 >= len(tokens) {
			return false, fmt.Errorf("%w: 'not' is missing its operand", ErrMalformed)
		}
		v, err := e.truthOf(tokens[i+1])
		if err != nil {
			return false, err
		}
		tokens[i] = token{kind: tokLit, lit: !v}
		tokens = append(tokens[:i+1], tokens[i+2:]...)
	}

	var err error
	tokens, err = e.foldBinary(tokens, tokAnd, "and")
	if err != nil {
		return false, err
	}
	tokens, err = e.foldBinary(tokens, tokOr, "or")
	if err != nil {
		return false, err
	}

	if len(tokens) != 1 {
		return false, fmt.Errorf("%w: expression did not reduce to a single value", ErrMalformed)
	}
	return e.truthOf(tokens[0])
}

// foldBinary repeatedly folds the leftmost operator of one kind with
// its neighbors. AND short-circuits on a false left operand and OR on a
// true one.
func (e *Evaluator) foldBinary(tokens []token, kind tokenKind, name string) ([]token, error) {
	for {
		idx := -1
		for i, t := range tokens {
			if t.kind == kind {
				idx = i
				break
			}
		}
		if idx == -1 {
			return tokens, nil
		}
		if idx == 0 || idx+1 >= len(tokens) {
			return nil, fmt.Errorf("%w: %q is missing an operand", ErrMalformed, name)
		}

		left, err := e.truthOf(tokens[idx-1])
		if err != nil {
			return nil, err
		}
		var result bool
		shortCircuit := (kind == tokAnd && !left) || (kind == tokOr && left)
		if shortCircuit {
			result = left
		} else {
			right, err := e.truthOf(tokens[idx+1])
			if err != nil {
				return nil, err
			}
			result = right
		}

		folded := make([]token, 0, len(tokens)-2)
		folded = append(folded, tokens[:idx-1]...)
		folded = append(folded, token{kind: tokLit, lit: result})
		folded = append(folded, tokens[idx+2:]...)
		tokens = folded
	}
}

// truthOf evaluates one token: folded literals carry their value,
// operands go through comparison evaluation.
func (e *Evaluator) truthOf(t token) (bool, error) {
	switch t.kind {
	case tokLit:
		return t.lit, nil
	case tokOperand:
		return e.evaluateComparison(t.text)
	default:
		return false, fmt.Errorf("%w: operator where an operand was expected", ErrMalformed)
	}
}

// comparisonOps in scan order; ties at the same position go to the
// longest operator so ">=" wins over ">".
var comparisonOps = []string{"==", "!=", ">=", "<=", ">", "<", "not_contains", "not_in", "contains", "in"}

// evaluateComparison splits a string on its first comparison operator
// and applies it to the typed, rendered sides. A string with no
// operator falls back to the truthiness of its rendered value.
func (e *Evaluator) evaluateComparison(s string) (bool, error) {
	op, pos := findOperator(s)
	if op == "" {
		v, err := e.vars.Render(s)
		if err != nil {
			return false, err
		}
		return Truthy(v), nil
	}

	lhsRaw := strings.TrimSpace(s[:pos])
	rhsRaw := strings.TrimSpace(s[pos+len(op):])
	if lhsRaw == "" || rhsRaw == "" {
		return false, fmt.Errorf("%w: comparison %q is missing an operand", ErrMalformed, s)
	}

	lhs, err := e.operandValue(lhsRaw)
	if err != nil {
		return false, err
	}
	rhs, err := e.operandValue(rhsRaw)
	if err != nil {
		return false, err
	}
	return Compare(op, lhs, rhs)
}

// operandValue renders one comparison side. Values that stay strings
// after rendering are parsed into typed literals; whole-reference
// renders keep their original type untouched.
func (e *Evaluator) operandValue(raw string) (any, error) {
	rendered, err := e.vars.Render(raw)
	if err != nil {
		return nil, err
	}
	if s, ok := rendered.(string); ok {
		return ParseTyped(s), nil
	}
	return rendered, nil
}

// findOperator locates the earliest comparison operator. Word
// operators only match when whitespace-delimited, so "in" inside a
// variable name never splits the expression.
func findOperator(s string) (string, int) {
	bestOp := ""
	bestPos := -1
	for _, op := range comparisonOps {
		var pos int
		if isWordOp(op) {
			pos = findWordOp(s, op)
		} else {
			pos = strings.Index(s, op)
		}
		if pos < 0 {
			continue
		}
		if bestPos == -1 || pos < bestPos || (pos == bestPos && len(op) > len(bestOp)) {
			bestOp = op
			bestPos = pos
		}
	}
	return bestOp, bestPos
}

func isWordOp(op string) bool {
	return unicode.IsLetter(rune(op[0]))
}

func findWordOp(s, op string) int {
	start := 0
	for {
		idx := strings.Index(s[start:], op)
		if idx < 0 {
			return -1
		}
		idx += start
		end := idx + len(op)
		if idx > 0 && end < len(s) &&
			unicode.IsSpace(rune(s[idx-1])) && unicode.IsSpace(rune(s[end])) {
			return idx
		}
		start = idx + 1
	}
}
