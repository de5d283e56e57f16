// Package extract pulls values out of leaf responses into variables.
// Extractor types: jsonpath (gjson over the body), regex (Index selects
// the capture group), header, cookie, and status_code. A miss falls
// back to the extractor's default when one is set; otherwise the
// variable stays unset and a diagnostic is reported.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
)

// Extractor reads values from one response. The body is parsed as JSON
// once and shared across extractions.
type Extractor struct {
	resp     *leaf.Response
	bodyJSON gjson.Result
	hasJSON  bool
}

func New(resp *leaf.Response) *Extractor {
	e := &Extractor{resp: resp}
	if resp != nil && resp.IsJSON() {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
		e.hasJSON = true
	}
	return e
}

// Diagnostic reports one failed extraction. Non-fatal: the engine logs
// it and moves on.
type Diagnostic struct {
	Name string
	Err  error
}

// ExtractAll runs every extractor and returns the captured variables
// plus diagnostics for the misses.
func ExtractAll(resp *leaf.Response, extractors []*parser.Extractor) (map[string]any, []Diagnostic) {
	e := New(resp)
	vars := make(map[string]any)
	var diags []Diagnostic
	for _, ex := range extractors {
		value, err := e.Extract(ex)
		if err != nil {
			diags = append(diags, Diagnostic{Name: ex.Name, Err: err})
			continue
		}
		vars[ex.Name] = value
	}
	return vars, diags
}

// Extract runs one extractor against the response.
func (e *Extractor) Extract(ex *parser.Extractor) (any, error) {
	value, err := e.extract(ex)
	if err != nil && ex.Default != nil {
		return ex.Default, nil
	}
	return value, err
}

func (e *Extractor) extract(ex *parser.Extractor) (any, error) {
	if e.resp == nil {
		return nil, fmt.Errorf("extract %s: no response", ex.Name)
	}
	switch ex.Type {
	case "jsonpath":
		return e.fromJSONPath(ex)
	case "regex":
		return e.fromRegex(ex)
	case "header":
		return e.fromHeader(ex)
	case "cookie":
		return e.fromCookie(ex)
	case "status_code":
		return e.resp.Status, nil
	default:
		return nil, fmt.Errorf("extract %s: unknown extractor type %q", ex.Name, ex.Type)
	}
}

func (e *Extractor) fromJSONPath(ex *parser.Extractor) (any, error) {
	path := convertBracketNotation(ex.Path)
	if !e.hasJSON {
		if path == "" {
			return e.resp.BodyString(), nil
		}
		return nil, fmt.Errorf("extract %s: response body is not JSON", ex.Name)
	}
	if path == "" {
		return e.bodyJSON.Value(), nil
	}
	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, fmt.Errorf("extract %s: path %q not found", ex.Name, ex.Path)
	}
	return result.Value(), nil
}

// fromRegex matches the pattern against the body. Index picks the
// capture group; zero means group 1 when the pattern has groups, else
// the whole match.
func (e *Extractor) fromRegex(ex *parser.Extractor) (any, error) {
	re, err := regexp.Compile(ex.Path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: invalid pattern: %w", ex.Name, err)
	}
	matches := re.FindStringSubmatch(e.resp.BodyString())
	if matches == nil {
		return nil, fmt.Errorf("extract %s: pattern %q did not match", ex.Name, ex.Path)
	}
	idx := ex.Index
	if idx == 0 && len(matches) > 1 {
		idx = 1
	}
	if idx < 0 || idx >= len(matches) {
		return nil, fmt.Errorf("extract %s: pattern has no group %d", ex.Name, idx)
	}
	return matches[idx], nil
}

func (e *Extractor) fromHeader(ex *parser.Extractor) (any, error) {
	value := e.resp.Header(ex.Path)
	if value == "" {
		return nil, fmt.Errorf("extract %s: header %q not present", ex.Name, ex.Path)
	}
	return value, nil
}

func (e *Extractor) fromCookie(ex *parser.Extractor) (any, error) {
	value := e.resp.Cookie(ex.Path)
	if value == "" {
		return nil, fmt.Errorf("extract %s: cookie %q not present", ex.Name, ex.Path)
	}
	return value, nil
}

// convertBracketNotation rewrites $.items[0].id into gjson's items.0.id.
func convertBracketNotation(path string) string {
	path = strings.TrimPrefix(path, "$")
	result := regexp.MustCompile(`\[(\d+)\]`).ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(result, ".")
}
