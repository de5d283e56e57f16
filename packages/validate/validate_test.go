package validate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
)

func response() *leaf.Response {
	return &leaf.Response{
		Status: 200,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-Env":        "staging",
		},
		Body:     []byte(`{"status":"active","count":5,"user":{"email":"a@b.com"}}`),
		Duration: 80 * time.Millisecond,
	}
}

func TestValidateStatusCode(t *testing.T) {
	v := New(response())

	r := v.Validate(&parser.Validation{Type: "status_code", Operator: "==", Expect: 200})
	assert.True(t, r.Passed)

	r = v.Validate(&parser.Validation{Type: "status_code", Expect: 200})
	assert.True(t, r.Passed, "operator defaults to equality")

	r = v.Validate(&parser.Validation{Type: "status_code", Operator: "<", Expect: 300})
	assert.True(t, r.Passed)

	r = v.Validate(&parser.Validation{Type: "status_code", Operator: "==", Expect: 404})
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "404")
}

func TestValidateJSONPath(t *testing.T) {
	v := New(response())

	r := v.Validate(&parser.Validation{Type: "jsonpath", Path: "status", Operator: "==", Expect: "active"})
	assert.True(t, r.Passed)

	r = v.Validate(&parser.Validation{Type: "jsonpath", Path: "count", Operator: ">=", Expect: 5})
	assert.True(t, r.Passed)

	r = v.Validate(&parser.Validation{Type: "jsonpath", Path: "user.email", Operator: "contains", Expect: "@"})
	assert.True(t, r.Passed)

	r = v.Validate(&parser.Validation{Type: "jsonpath", Path: "missing", Operator: "exists"})
	assert.False(t, r.Passed)

	r = v.Validate(&parser.Validation{Type: "jsonpath", Path: "status", Operator: "exists"})
	assert.True(t, r.Passed)
}

func TestValidateJSONPathRootAnchor(t *testing.T) {
	v := New(response())

	r := v.Validate(&parser.Validation{Type: "jsonpath", Path: "$.status", Operator: "==", Expect: "active"})
	assert.True(t, r.Passed, r.Message)

	r = v.Validate(&parser.Validation{Type: "jsonpath", Path: "$.user.email", Operator: "exists"})
	assert.True(t, r.Passed, r.Message)

	r = v.Validate(&parser.Validation{Type: "jsonpath", Path: "$", Operator: "exists"})
	assert.True(t, r.Passed, r.Message)
}

func TestValidateHeader(t *testing.T) {
	v := New(response())

	r := v.Validate(&parser.Validation{Type: "header", Path: "x-env", Operator: "==", Expect: "staging"})
	assert.True(t, r.Passed)

	r = v.Validate(&parser.Validation{Type: "header", Path: "Content-Type", Operator: "contains", Expect: "json"})
	assert.True(t, r.Passed)
}

func TestValidateDuration(t *testing.T) {
	v := New(response())

	r := v.Validate(&parser.Validation{Type: "duration", Operator: "<", Expect: 500})
	assert.True(t, r.Passed)

	r = v.Validate(&parser.Validation{Type: "duration", Operator: ">", Expect: 500})
	assert.False(t, r.Passed)
}

func TestValidateRegex(t *testing.T) {
	v := New(response())

	r := v.Validate(&parser.Validation{Type: "regex", Expect: `"status":"\w+"`})
	assert.True(t, r.Passed)

	r = v.Validate(&parser.Validation{Type: "regex", Path: "user.email", Expect: `^[^@]+@[^@]+$`})
	assert.True(t, r.Passed)

	r = v.Validate(&parser.Validation{Type: "regex", Expect: `zebra`})
	assert.False(t, r.Passed)

	r = v.Validate(&parser.Validation{Type: "regex", Expect: `([`})
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "invalid pattern")
}

func TestValidateSchema(t *testing.T) {
	dir := t.TempDir()
	schema := `{
		"type": "object",
		"required": ["status", "count"],
		"properties": {
			"status": {"type": "string"},
			"count": {"type": "number"}
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resp.schema.json"), []byte(schema), 0o644))

	v := New(response(), WithBaseDir(dir))

	r := v.Validate(&parser.Validation{Type: "schema", Expect: "resp.schema.json"})
	assert.True(t, r.Passed, "message: %s", r.Message)

	strict := `{"type": "object", "required": ["nope"]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strict.schema.json"), []byte(strict), 0o644))
	r = v.Validate(&parser.Validation{Type: "schema", Expect: "strict.schema.json"})
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "schema validation failed")

	r = v.Validate(&parser.Validation{Type: "schema", Expect: "../outside.json"})
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "outside")
}

func TestValidateAllAndFailures(t *testing.T) {
	results := ValidateAll(response(), []*parser.Validation{
		{Type: "status_code", Expect: 200},
		{Type: "jsonpath", Path: "count", Operator: ">", Expect: 100},
	})

	require.Len(t, results, 2)
	assert.True(t, results[0].Passed)
	assert.False(t, results[1].Passed)

	failed := Failures(results)
	require.Len(t, failed, 1)
	assert.Equal(t, "jsonpath", failed[0].Type)
}

func TestValidateUnknownType(t *testing.T) {
	v := New(response())
	r := v.Validate(&parser.Validation{Type: "xml"})
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "unknown validation type")
}
