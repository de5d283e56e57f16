package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StepType identifies the kind of work a step performs. The set is closed:
// executors dispatch on it with an exhaustive switch.
type StepType int

const (
	StepUnknown StepType = iota
	StepRequest
	StepDatabase
	StepWait
	StepLoop
	StepConcurrent
	StepScript
	StepPoll
)

var stepTypeNames = map[StepType]string{
	StepRequest:    "request",
	StepDatabase:   "database",
	StepWait:       "wait",
	StepLoop:       "loop",
	StepConcurrent: "concurrent",
	StepScript:     "script",
	StepPoll:       "poll",
}

func (t StepType) String() string {
	if name, ok := stepTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseStepType converts a YAML type tag into a StepType.
func ParseStepType(s string) (StepType, error) {
	for t, name := range stepTypeNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return StepUnknown, fmt.Errorf("unknown step type %q", s)
}

// UnmarshalYAML decodes a step type tag from its string form.
func (t *StepType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseStepType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML encodes the step type as its string tag.
func (t StepType) MarshalYAML() (any, error) {
	return t.String(), nil
}

// Duration wraps time.Duration so YAML may carry either a Go duration
// string ("10s", "500ms") or a bare number of seconds (30, 1.5).
type Duration time.Duration

// UnmarshalYAML accepts duration strings and numeric seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*d = 0
		return nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML encodes the duration in Go string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// TestCase is one parsed test case file. Immutable once returned by Parse.
type TestCase struct {
	Name          string             `yaml:"name"`
	Description   string             `yaml:"description,omitempty"`
	Variables     map[string]any     `yaml:"variables,omitempty"`
	Profiles      map[string]Profile `yaml:"profiles,omitempty"`
	ActiveProfile string             `yaml:"active_profile,omitempty"`
	Defaults      Defaults           `yaml:"defaults,omitempty"`
	Steps         []*Step            `yaml:"steps"`

	// Path is the file the case was read from, used for resolving
	// relative schema and script paths.
	Path string `yaml:"-"`
}

// Profile is a named variable set with runtime overrides.
type Profile struct {
	Variables map[string]any `yaml:"variables,omitempty"`
	Overrides map[string]any `yaml:"overrides,omitempty"`
}

// Defaults apply to every step that does not set its own value.
type Defaults struct {
	Timeout        Duration `yaml:"timeout,omitempty"`
	RetryTimes     int      `yaml:"retry_times,omitempty"`
	MaxConcurrency int      `yaml:"max_concurrency,omitempty"`
}

// Step is one unit of the test case.
type Step struct {
	Name       string   `yaml:"name"`
	Type       StepType `yaml:"type"`
	SkipIf     any      `yaml:"skip_if,omitempty"`
	OnlyIf     any      `yaml:"only_if,omitempty"`
	DependsOn  []string `yaml:"depends_on,omitempty"`
	Timeout    Duration `yaml:"timeout,omitempty"`
	RetryTimes int      `yaml:"retry_times,omitempty"`

	RetryPolicy *RetryPolicy  `yaml:"retry_policy,omitempty"`
	Extract     []*Extractor  `yaml:"extract,omitempty"`
	Validate    []*Validation `yaml:"validate,omitempty"`
	Setup       []string      `yaml:"setup,omitempty"`
	Teardown    []string      `yaml:"teardown,omitempty"`

	Request    *RequestSpec    `yaml:"request,omitempty"`
	Database   *DatabaseSpec   `yaml:"database,omitempty"`
	Wait       *WaitSpec       `yaml:"wait,omitempty"`
	Script     *ScriptSpec     `yaml:"script,omitempty"`
	Loop       *LoopSpec       `yaml:"loop,omitempty"`
	Concurrent *ConcurrentSpec `yaml:"concurrent,omitempty"`
	Poll       *PollSpec       `yaml:"poll,omitempty"`
	OnTimeout  *OnTimeout      `yaml:"on_timeout,omitempty"`
}

// RetryPolicy controls backoff between attempts of a failing step.
type RetryPolicy struct {
	MaxAttempts       int      `yaml:"max_attempts"`
	Strategy          string   `yaml:"strategy,omitempty"` // fixed, linear, exponential
	BaseDelay         Duration `yaml:"base_delay,omitempty"`
	MaxDelay          Duration `yaml:"max_delay,omitempty"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier,omitempty"`
	Jitter            bool     `yaml:"jitter,omitempty"`
	RetryOn           []string `yaml:"retry_on,omitempty"`
	StopOn            []string `yaml:"stop_on,omitempty"`
}

// Extractor captures one value out of a step's response into the
// extracted variable scope.
type Extractor struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"` // jsonpath, regex, header, cookie, status_code
	Path    string `yaml:"path,omitempty"`
	Index   int    `yaml:"index,omitempty"`
	Default any    `yaml:"default,omitempty"`
}

// Validation asserts one property of a step's response.
type Validation struct {
	Type     string `yaml:"type"` // status_code, jsonpath, header, regex, duration, schema
	Path     string `yaml:"path,omitempty"`
	Operator string `yaml:"operator,omitempty"`
	Expect   any    `yaml:"expect,omitempty"`
}

// RequestSpec is the payload for request steps.
type RequestSpec struct {
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Params  map[string]string `yaml:"params,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    any               `yaml:"body,omitempty"`
}

// DatabaseSpec is the payload for database steps.
type DatabaseSpec struct {
	DSN   string `yaml:"dsn"`
	Query string `yaml:"query"`
}

// WaitSpec is the payload for wait steps.
type WaitSpec struct {
	Seconds float64 `yaml:"seconds"`
}

// ScriptSpec is the payload for script steps.
type ScriptSpec struct {
	Command string `yaml:"command"`
	Shell   string `yaml:"shell,omitempty"`
}

// LoopSpec repeats its sub-steps, either Count times or once per item.
type LoopSpec struct {
	Count    int     `yaml:"count,omitempty"`
	Items    []any   `yaml:"items,omitempty"`
	Variable string  `yaml:"variable,omitempty"`
	Steps    []*Step `yaml:"steps"`
}

// ConcurrentSpec runs its sub-steps through the shared worker pool.
type ConcurrentSpec struct {
	MaxConcurrency int     `yaml:"max_concurrency,omitempty"`
	RateLimit      float64 `yaml:"rate_limit,omitempty"` // requests per second, 0 = unlimited
	Steps          []*Step `yaml:"steps"`
}

// PollSpec repeats the step's leaf payload until its condition holds.
type PollSpec struct {
	Condition   PollCondition `yaml:"condition"`
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	IntervalMs  int64         `yaml:"interval_ms,omitempty"`
	TimeoutMs   int64         `yaml:"timeout_ms,omitempty"`
	Backoff     string        `yaml:"backoff,omitempty"` // fixed, linear, exponential
}

// PollCondition decides whether a poll attempt satisfied the wait.
type PollCondition struct {
	Type     string `yaml:"type"` // jsonpath, status_code
	Path     string `yaml:"path,omitempty"`
	Operator string `yaml:"operator,omitempty"` // eq, ne, gt, lt, ge, le, contains, exists
	Expect   any    `yaml:"expect,omitempty"`
}

// OnTimeout controls what a poll step does when it exhausts its budget.
type OnTimeout struct {
	Behavior string `yaml:"behavior,omitempty"` // fail (default) or continue
	Message  string `yaml:"message,omitempty"`
}

// LeafType reports which leaf payload a step carries. Poll steps carry
// both a poll config and the leaf payload they poll.
func (s *Step) LeafType() StepType {
	switch {
	case s.Request != nil:
		return StepRequest
	case s.Database != nil:
		return StepDatabase
	case s.Script != nil:
		return StepScript
	case s.Wait != nil:
		return StepWait
	default:
		return StepUnknown
	}
}

// Clone returns a deep copy of the step. Executors render clones so the
// parsed definition stays immutable.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}
	out := *s
	out.DependsOn = append([]string(nil), s.DependsOn...)
	out.Setup = append([]string(nil), s.Setup...)
	out.Teardown = append([]string(nil), s.Teardown...)
	if s.RetryPolicy != nil {
		rp := *s.RetryPolicy
		rp.RetryOn = append([]string(nil), s.RetryPolicy.RetryOn...)
		rp.StopOn = append([]string(nil), s.RetryPolicy.StopOn...)
		out.RetryPolicy = &rp
	}
	out.Extract = cloneSlice(s.Extract)
	out.Validate = cloneSlice(s.Validate)
	if s.Request != nil {
		req := *s.Request
		req.Params = cloneStringMap(s.Request.Params)
		req.Headers = cloneStringMap(s.Request.Headers)
		req.Body = cloneValue(s.Request.Body)
		out.Request = &req
	}
	if s.Database != nil {
		database := *s.Database
		out.Database = &database
	}
	if s.Wait != nil {
		wait := *s.Wait
		out.Wait = &wait
	}
	if s.Script != nil {
		script := *s.Script
		out.Script = &script
	}
	if s.Loop != nil {
		loop := *s.Loop
		loop.Items = append([]any(nil), s.Loop.Items...)
		loop.Steps = cloneSteps(s.Loop.Steps)
		out.Loop = &loop
	}
	if s.Concurrent != nil {
		conc := *s.Concurrent
		conc.Steps = cloneSteps(s.Concurrent.Steps)
		out.Concurrent = &conc
	}
	if s.Poll != nil {
		poll := *s.Poll
		out.Poll = &poll
	}
	if s.OnTimeout != nil {
		ot := *s.OnTimeout
		out.OnTimeout = &ot
	}
	return &out
}

func cloneSteps(steps []*Step) []*Step {
	if steps == nil {
		return nil
	}
	out := make([]*Step, len(steps))
	for i, s := range steps {
		out[i] = s.Clone()
	}
	return out
}

func cloneSlice[T any](in []*T) []*T {
	if in == nil {
		return nil
	}
	out := make([]*T, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		c := *v
		out[i] = &c
	}
	return out
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
