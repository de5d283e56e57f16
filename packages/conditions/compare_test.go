package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareWordOperators(t *testing.T) {
	tests := []struct {
		op     string
		actual any
		expect any
		want   bool
	}{
		{"eq", 200, 200, true},
		{"eq", 200, "200", true},
		{"eq", 1, 1.0, true},
		{"eq", "done", "pending", false},
		{"ne", "done", "pending", true},
		{"gt", 5, 3, true},
		{"gt", "5", 3, true},
		{"gt", "abc", 3, false},
		{"lt", 2, 3, true},
		{"ge", 3, 3, true},
		{"le", 4, 3, false},
		{"contains", "processing items", "items", true},
		{"contains", []any{"a", "b"}, "b", true},
		{"contains", map[string]any{"id": 1}, "id", true},
		{"exists", "anything", nil, true},
		{"exists", nil, nil, false},
	}
	for _, tt := range tests {
		got, err := Compare(tt.op, tt.actual, tt.expect)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v %s %v", tt.actual, tt.op, tt.expect)
	}
}

func TestCompareSymbolAliases(t *testing.T) {
	got, err := Compare("==", 1, 1)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Compare(">=", 2, 2)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Compare("not_in", "x", []any{"a", "b"})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestCompareUnknownOperator(t *testing.T) {
	_, err := Compare("~=", 1, 1)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseTyped(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"null", nil},
		{"None", nil},
		{"true", true},
		{"False", false},
		{"42", 42},
		{"-7", -7},
		{"3.14", 3.14},
		{"'quoted'", "quoted"},
		{`"double"`, "double"},
		{"bare", "bare"},
		{"", ""},
		{"[1, 2, 3]", []any{1, 2, 3}},
		{"[a, 'b c', 2]", []any{"a", "b c", 2}},
		{"[]", []any{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTyped(tt.in), "input %q", tt.in)
	}
}

func TestTruthy(t *testing.T) {
	falsy := []any{nil, false, 0, 0.0, "", "false", "FALSE", "0", "no", "null", "none", []any{}, map[string]any{}}
	for _, v := range falsy {
		assert.False(t, Truthy(v), "%#v should be falsy", v)
	}

	truthy := []any{true, 1, -1, 0.5, "x", "true", "anything", []any{0}, map[string]any{"k": nil}}
	for _, v := range truthy {
		assert.True(t, Truthy(v), "%#v should be truthy", v)
	}
}
