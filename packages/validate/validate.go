// Package validate checks leaf responses against step validations:
// status_code, jsonpath, header, regex, duration (milliseconds), and
// schema (JSON Schema file). Failures are collected, never raised; the
// engine turns a failed list into an assertion error after all
// validations have run.
package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/abdul-hamid-achik/flowspec/packages/conditions"
	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
)

// Result records one validation's outcome for the step report.
type Result struct {
	Type     string `json:"type"`
	Path     string `json:"path,omitempty"`
	Operator string `json:"operator,omitempty"`
	Expect   any    `json:"expect,omitempty"`
	Actual   any    `json:"actual,omitempty"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// Validator checks one response. The body JSON is parsed once.
type Validator struct {
	resp     *leaf.Response
	bodyJSON gjson.Result
	hasJSON  bool
	baseDir  string
}

type Option func(*Validator)

// WithBaseDir resolves relative schema paths against dir.
func WithBaseDir(dir string) Option {
	return func(v *Validator) {
		v.baseDir = dir
	}
}

func New(resp *leaf.Response, opts ...Option) *Validator {
	v := &Validator{resp: resp}
	if resp != nil && resp.IsJSON() {
		v.bodyJSON = gjson.ParseBytes(resp.Body)
		v.hasJSON = true
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateAll runs every validation and returns their results in order.
func ValidateAll(resp *leaf.Response, validations []*parser.Validation, opts ...Option) []*Result {
	v := New(resp, opts...)
	results := make([]*Result, len(validations))
	for i, val := range validations {
		results[i] = v.Validate(val)
	}
	return results
}

// Failures filters a result list down to the failed entries.
func Failures(results []*Result) []*Result {
	var failed []*Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Validate runs one validation against the response.
func (v *Validator) Validate(val *parser.Validation) *Result {
	result := &Result{
		Type:     val.Type,
		Path:     val.Path,
		Operator: val.Operator,
		Expect:   val.Expect,
	}
	if v.resp == nil {
		result.Message = "no response to validate"
		return result
	}

	switch val.Type {
	case "status_code":
		v.compare(result, v.resp.Status, val)
	case "duration":
		v.compare(result, v.resp.DurationMs(), val)
	case "header":
		v.compare(result, v.resp.Header(val.Path), val)
	case "jsonpath":
		actual, err := v.jsonPathValue(val.Path)
		if err != nil {
			result.Message = err.Error()
			return result
		}
		v.compare(result, actual, val)
	case "regex":
		v.regex(result, val)
	case "schema":
		v.schema(result, val)
	default:
		result.Message = fmt.Sprintf("unknown validation type %q", val.Type)
	}
	return result
}

// compare applies the validation's operator, defaulting to equality.
func (v *Validator) compare(result *Result, actual any, val *parser.Validation) {
	result.Actual = actual
	passed, err := conditions.Compare(val.Operator, actual, val.Expect)
	if err != nil {
		result.Message = err.Error()
		return
	}
	result.Passed = passed
	if !passed {
		op := val.Operator
		if op == "" {
			op = "=="
		}
		result.Message = fmt.Sprintf("expected %v %s %v", actual, op, val.Expect)
	}
}

func (v *Validator) jsonPathValue(path string) (any, error) {
	if !v.hasJSON {
		return nil, fmt.Errorf("response body is not JSON")
	}
	path = strings.TrimPrefix(path, "$")
	path = regexp.MustCompile(`\[(\d+)\]`).ReplaceAllString(path, ".$1")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return v.bodyJSON.Value(), nil
	}
	result := v.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, nil
	}
	return result.Value(), nil
}

// regex matches the expected pattern against the body, or against a
// jsonpath value when a path is set.
func (v *Validator) regex(result *Result, val *parser.Validation) {
	subject := v.resp.BodyString()
	if val.Path != "" {
		actual, err := v.jsonPathValue(val.Path)
		if err != nil {
			result.Message = err.Error()
			return
		}
		subject = fmt.Sprintf("%v", actual)
	}
	result.Actual = subject

	pattern := fmt.Sprintf("%v", val.Expect)
	pattern = strings.TrimPrefix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")
	re, err := regexp.Compile(pattern)
	if err != nil {
		result.Message = fmt.Sprintf("invalid pattern: %v", err)
		return
	}
	result.Passed = re.MatchString(subject)
	if !result.Passed {
		result.Message = fmt.Sprintf("expected %q to match /%s/", subject, pattern)
	}
}

// schema validates the body (or a jsonpath slice of it) against a JSON
// Schema file named by expect, resolved relative to the base directory.
func (v *Validator) schema(result *Result, val *parser.Validation) {
	schemaPath := fmt.Sprintf("%v", val.Expect)
	if !filepath.IsAbs(schemaPath) && v.baseDir != "" {
		schemaPath = filepath.Join(v.baseDir, schemaPath)
	}
	if err := pathWithinBase(schemaPath, v.baseDir); err != nil {
		result.Message = err.Error()
		return
	}

	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		result.Message = fmt.Sprintf("reading schema: %v", err)
		return
	}

	actual, err := v.jsonPathValue(val.Path)
	if err != nil {
		result.Message = err.Error()
		return
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		result.Message = fmt.Sprintf("marshaling value: %v", err)
		return
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaData)
	documentLoader := gojsonschema.NewBytesLoader(actualJSON)
	validation, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		result.Message = fmt.Sprintf("schema validation error: %v", err)
		return
	}

	if validation.Valid() {
		result.Passed = true
		return
	}
	var details []string
	for _, desc := range validation.Errors() {
		details = append(details, desc.String())
	}
	result.Message = fmt.Sprintf("schema validation failed: %s", strings.Join(details, "; "))
}

// pathWithinBase rejects schema paths escaping the test case directory.
func pathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}
	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("resolving base directory: %w", err)
	}
	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving schema path: %w", err)
	}
	if cleanPath != cleanBase && !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("schema path %s is outside %s", path, baseDir)
	}
	return nil
}
