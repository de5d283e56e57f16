package engine

import (
	"reflect"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
)

// ErrorInfo is the reportable form of a terminal step error.
type ErrorInfo struct {
	Type       string `json:"type"`
	Category   string `json:"category"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// suggestions maps each error category to a fixed hint for the report.
var suggestions = map[leaf.ErrorKind]string{
	leaf.KindNetwork:   "Check that the target service is reachable and DNS resolves.",
	leaf.KindTimeout:   "Increase the step timeout or check the service's latency.",
	leaf.KindParsing:   "Verify the response format matches what the step expects.",
	leaf.KindAssertion: "Compare the expected values against the actual response.",
	leaf.KindBusiness:  "Inspect the service logs for the reported error.",
	leaf.KindSystem:    "Check the test configuration and local environment.",
}

// errorInfoFrom classifies an error at the point it becomes terminal.
func errorInfoFrom(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	kind := leaf.KindOf(err)
	return &ErrorInfo{
		Type:       typeName(err),
		Category:   string(kind),
		Message:    err.Error(),
		Suggestion: suggestions[kind],
	}
}

func typeName(err error) string {
	t := reflect.TypeOf(err)
	if t == nil {
		return "error"
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}
