package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/core/engine"
)

// TAPFormatter formats step results in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer    io.Writer
	testCount int
	results   []tapResult
}

type tapResult struct {
	number     int
	name       string
	passed     bool
	skipped    bool
	skipReason string
	error      string
	failures   []string
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(file string, result *engine.TestCaseResult) {
	for _, sr := range result.Steps {
		f.testCount++
		tr := tapResult{
			number:     f.testCount,
			name:       fmt.Sprintf("%s / %s", result.Name, sr.Name),
			passed:     sr.Passed(),
			skipped:    sr.Status == engine.StatusSkipped,
			skipReason: sr.SkipReason,
		}

		if sr.Error != nil {
			tr.error = sr.Error.Message
		}

		if !sr.Passed() {
			for _, v := range sr.Validations {
				if !v.Passed {
					tr.failures = append(tr.failures, fmt.Sprintf(
						"%s %s: expected %v, got %v",
						v.Type, v.Operator, v.Expect, v.Actual))
				}
			}
		}

		f.results = append(f.results, tr)
	}
}

func (f *TAPFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	for _, r := range f.results {
		if r.skipped {
			reason := r.skipReason
			if reason == "" {
				reason = "SKIP"
			}
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", r.number, r.name, reason)
			continue
		}

		if r.passed {
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
			continue
		}

		fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
		if r.error != "" || len(r.failures) > 0 {
			fmt.Fprintf(f.writer, "  ---\n")
			if r.error != "" {
				fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(r.error))
			}
			if len(r.failures) > 0 {
				fmt.Fprintf(f.writer, "  failures:\n")
				for _, a := range r.failures {
					fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(a))
				}
			}
			fmt.Fprintf(f.writer, "  ...\n")
		}
	}

	fmt.Fprintln(f.writer)
	return nil
}

func escapeYAML(s string) string {
	// Simple YAML escaping - wrap in quotes if contains special chars
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		return "\"" + s + "\""
	}
	return s
}
