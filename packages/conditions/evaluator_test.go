package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/flowspec/packages/core/variables"
)

func newEvaluator(t *testing.T, vars map[string]any) *Evaluator {
	t.Helper()
	m := variables.NewManager()
	require.NoError(t, m.SetMany(variables.ScopeGlobal, vars))
	return New(m)
}

func TestEvaluateEmpty(t *testing.T) {
	e := newEvaluator(t, nil)

	for _, cond := range []any{nil, "", "   "} {
		ok, err := e.Evaluate(cond)
		require.NoError(t, err)
		assert.True(t, ok, "condition %#v should be true", cond)
	}
}

func TestEvaluateBoolLiterals(t *testing.T) {
	e := newEvaluator(t, nil)

	tests := []struct {
		cond any
		want bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{"false", false},
		{"yes", true},
		{"no", false},
		{"0", false},
		{"1", true},
		{1, true},
		{0, false},
	}
	for _, tt := range tests {
		ok, err := e.Evaluate(tt.cond)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "condition %#v", tt.cond)
	}
}

func TestEvaluateComparisons(t *testing.T) {
	e := newEvaluator(t, map[string]any{
		"status": 200,
		"name":   "alice",
		"count":  0,
		"rate":   2.5,
	})

	tests := []struct {
		cond string
		want bool
	}{
		{"${status} == 200", true},
		{"${status} == 404", false},
		{"${status} != 404", true},
		{"${status} > 100", true},
		{"${status} >= 200", true},
		{"${status} < 100", false},
		{"${status} <= 200", true},
		{"${rate} > 2", true},
		{"${name} == alice", true},
		{"${name} == 'alice'", true},
		{"${name} != \"bob\"", true},
		{"${count} == 0", true},
		{"${name} in [alice, bob]", true},
		{"${name} not_in [carol, dave]", true},
		{"${name} contains lic", true},
		{"${name} not_contains xyz", true},
		{"200 == ${status}", true},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			ok, err := e.Evaluate(tt.cond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestEvaluatePrecedence(t *testing.T) {
	e := newEvaluator(t, map[string]any{"a": true, "b": false, "c": true})

	ok, err := e.Evaluate("${a} and ${b} or ${c}")
	require.NoError(t, err)
	assert.True(t, ok, "AND must bind tighter than OR")

	ok, err = e.Evaluate("${b} or ${b} and ${a}")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.Evaluate("not ${b} and ${a}")
	require.NoError(t, err)
	assert.True(t, ok, "NOT must bind tighter than AND")

	ok, err = e.Evaluate("not not ${a}")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateConciseWithComparisons(t *testing.T) {
	e := newEvaluator(t, map[string]any{"status": 200, "retries": 3})

	ok, err := e.Evaluate("${status} == 200 and ${retries} < 5")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate("${status} == 500 or ${retries} >= 3")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate("${status} == 500 and ${retries} >= 3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateShortCircuit(t *testing.T) {
	// The right operand references an undefined variable; short-circuit
	// means it is never rendered.
	e := newEvaluator(t, map[string]any{"a": false, "b": true})

	ok, err := e.Evaluate("${a} and ${undefined_name}")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.Evaluate("${b} or ${undefined_name}")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateStructured(t *testing.T) {
	e := newEvaluator(t, map[string]any{"flag": false, "n": 5})

	ok, err := e.Evaluate(map[string]any{"not": "${flag}"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate(map[string]any{"and": []any{"${n} > 1", "${n} < 10"}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate(map[string]any{"or": []any{"${n} > 10", "${flag}"}})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.Evaluate(map[string]any{
		"and": []any{
			"${n} == 5",
			map[string]any{"not": "${flag}"},
		},
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateSequenceIsImplicitAnd(t *testing.T) {
	e := newEvaluator(t, map[string]any{"n": 5})

	ok, err := e.Evaluate([]any{"${n} > 1", "${n} < 10"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate([]any{"${n} > 1", "${n} > 10"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateMalformed(t *testing.T) {
	e := newEvaluator(t, map[string]any{"a": true})

	cases := []any{
		map[string]any{"and": []any{"true"}, "or": []any{"true"}},
		map[string]any{"xor": []any{"true"}},
		map[string]any{"and": "not a sequence"},
		map[string]any{"or": 42},
		"and ${a}",
		"${a} and",
		"not",
		struct{}{},
	}
	for _, cond := range cases {
		_, err := e.Evaluate(cond)
		assert.ErrorIs(t, err, ErrMalformed, "condition %#v", cond)
	}
}

func TestEvaluateUndefinedPropagates(t *testing.T) {
	e := newEvaluator(t, nil)

	_, err := e.Evaluate("${ghost} == 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, variables.ErrUndefined)

	_, err = e.Evaluate("${ghost}")
	assert.ErrorIs(t, err, variables.ErrUndefined)
}

func TestEvaluateOperatorScanOrder(t *testing.T) {
	e := newEvaluator(t, map[string]any{"v": 10})

	// ">=" must win over ">" at the same position.
	ok, err := e.Evaluate("${v} >= 10")
	require.NoError(t, err)
	assert.True(t, ok)

	// "in" inside a bare word must not split the expression.
	ok, err = e.Evaluate("main == main")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateTruthinessFallback(t *testing.T) {
	e := newEvaluator(t, map[string]any{
		"present": "value",
		"zero":    0,
		"empty":   "",
		"list":    []any{1},
	})

	tests := []struct {
		cond string
		want bool
	}{
		{"${present}", true},
		{"${zero}", false},
		{"${empty}", false},
		{"${list}", true},
	}
	for _, tt := range tests {
		ok, err := e.Evaluate(tt.cond)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "condition %q", tt.cond)
	}
}
