package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/core/engine"
	"github.com/abdul-hamid-achik/flowspec/packages/metrics"
)

// JSONOutput is the complete JSON report structure.
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Cases    []JSONCase  `json:"cases"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

// JSONSummary aggregates step counts across every case.
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errors  int `json:"errors"`
	Skipped int `json:"skipped"`
}

// JSONCase is one test case with its step results.
type JSONCase struct {
	Name     string              `json:"name"`
	File     string              `json:"file,omitempty"`
	Status   engine.Status       `json:"status"`
	Duration float64             `json:"duration"`
	Steps    []*engine.StepResult `json:"steps"`
	Latency  *metrics.Summary    `json:"latency,omitempty"`
}

// JSONFormatter accumulates results and emits one JSON document.
type JSONFormatter struct {
	writer io.Writer
	cases  []JSONCase
	errs   []string
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		cases:  make([]JSONCase, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(file string, result *engine.TestCaseResult) {
	f.cases = append(f.cases, JSONCase{
		Name:     result.Name,
		File:     file,
		Status:   result.Status,
		Duration: float64(result.Duration().Milliseconds()),
		Steps:    result.Steps,
		Latency:  result.Latency,
	})
}

func (f *JSONFormatter) FormatError(err error) {
	f.errs = append(f.errs, err.Error())
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON report.
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var summary JSONSummary
	for _, c := range f.cases {
		for _, sr := range c.Steps {
			summary.Total++
			switch sr.Status {
			case engine.StatusSuccess:
				summary.Passed++
			case engine.StatusSkipped:
				summary.Skipped++
			case engine.StatusError:
				summary.Errors++
			default:
				summary.Failed++
			}
		}
	}

	output := JSONOutput{
		Summary:  summary,
		Cases:    f.cases,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
