package engine

import (
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/metrics"
	"github.com/abdul-hamid-achik/flowspec/packages/retry"
	"github.com/abdul-hamid-achik/flowspec/packages/validate"
)

// Status is the lifecycle state of a step or test case.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// StepResult is the record of one step execution. It is mutated in
// place while the step runs and frozen once EndTime is set.
type StepResult struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Status    Status    `json:"status"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Response    *leaf.Response     `json:"-"`
	Extracted   map[string]any     `json:"extracted,omitempty"`
	Validations []*validate.Result `json:"validations,omitempty"`

	RetryCount   int             `json:"retry_count"`
	RetryHistory []retry.Attempt `json:"retry_history,omitempty"`

	Error      *ErrorInfo `json:"error,omitempty"`
	SkipReason string     `json:"skip_reason,omitempty"`

	// Poll is set only for poll steps.
	Poll *PollInfo `json:"poll,omitempty"`
}

// PollInfo records how a poll step ended.
type PollInfo struct {
	Attempts  int   `json:"attempts"`
	ElapsedMs int64 `json:"elapsed_ms"`
	TimedOut  bool  `json:"timed_out"`
}

func newStepResult(name, stepType string) *StepResult {
	return &StepResult{
		Name:      name,
		Type:      stepType,
		Status:    StatusPending,
		StartTime: time.Now(),
	}
}

func (r *StepResult) markSkipped(reason string) {
	r.Status = StatusSkipped
	r.SkipReason = reason
}

func (r *StepResult) finalize() {
	r.EndTime = time.Now()
}

// Duration is the wall-clock time the step took.
func (r *StepResult) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// Passed reports whether the step counts toward the pass total.
func (r *StepResult) Passed() bool {
	return r.Status == StatusSuccess
}

// TestCaseResult aggregates one full test case run.
type TestCaseResult struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`

	Steps []*StepResult `json:"steps"`

	// Variables is the merged view at the end of the run.
	Variables map[string]any `json:"variables,omitempty"`

	Latency *metrics.Summary `json:"latency,omitempty"`
}

func (r *TestCaseResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

func (r *TestCaseResult) record(sr *StepResult) {
	r.Steps = append(r.Steps, sr)
	switch sr.Status {
	case StatusSuccess:
		r.Passed++
	case StatusSkipped:
		r.Skipped++
	case StatusError:
		r.Errors++
	default:
		r.Failed++
	}
}

func (r *TestCaseResult) finish() {
	r.EndTime = time.Now()
	if r.Failed == 0 && r.Errors == 0 {
		r.Status = StatusSuccess
	} else {
		r.Status = StatusFailure
	}
}
