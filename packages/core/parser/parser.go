package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMaxConcurrency bounds a concurrent group that does not set its own.
const DefaultMaxConcurrency = 5

// ParseFile reads and parses one YAML test case file.
func ParseFile(path string) (*TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	tc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	tc.Path = path
	if tc.Name == "" {
		tc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return tc, nil
}

// Parse decodes a YAML document into a validated TestCase.
func Parse(data []byte) (*TestCase, error) {
	var tc TestCase
	if err := yaml.Unmarshal(data, &tc); err != nil {
		return nil, err
	}
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	tc.applyDefaults()
	return &tc, nil
}

// Validate checks structural rules the YAML schema cannot express.
func (tc *TestCase) Validate() error {
	if len(tc.Steps) == 0 {
		return fmt.Errorf("test case has no steps")
	}
	if tc.ActiveProfile != "" {
		if _, ok := tc.Profiles[tc.ActiveProfile]; !ok {
			return fmt.Errorf("active profile %q is not defined", tc.ActiveProfile)
		}
	}
	seen := make(map[string]bool)
	for i, step := range tc.Steps {
		if err := validateStep(step, fmt.Sprintf("steps[%d]", i)); err != nil {
			return err
		}
		if step.Name != "" {
			if seen[step.Name] {
				return fmt.Errorf("duplicate step name %q", step.Name)
			}
			seen[step.Name] = true
		}
	}
	return nil
}

func validateStep(step *Step, where string) error {
	if step == nil {
		return fmt.Errorf("%s: step is empty", where)
	}
	if step.Name == "" {
		return fmt.Errorf("%s: step has no name", where)
	}
	where = fmt.Sprintf("%s (%s)", where, step.Name)

	switch step.Type {
	case StepRequest:
		if step.Request == nil {
			return fmt.Errorf("%s: request step has no request payload", where)
		}
		if step.Request.URL == "" {
			return fmt.Errorf("%s: request has no url", where)
		}
	case StepDatabase:
		if step.Database == nil {
			return fmt.Errorf("%s: database step has no database payload", where)
		}
		if step.Database.Query == "" {
			return fmt.Errorf("%s: database step has no query", where)
		}
	case StepWait:
		if step.Wait == nil {
			return fmt.Errorf("%s: wait step has no wait payload", where)
		}
		if step.Wait.Seconds < 0 {
			return fmt.Errorf("%s: wait seconds cannot be negative", where)
		}
	case StepScript:
		if step.Script == nil {
			return fmt.Errorf("%s: script step has no script payload", where)
		}
		if step.Script.Command == "" {
			return fmt.Errorf("%s: script step has no command", where)
		}
	case StepLoop:
		if step.Loop == nil {
			return fmt.Errorf("%s: loop step has no loop payload", where)
		}
		if len(step.Loop.Steps) == 0 {
			return fmt.Errorf("%s: loop has no sub-steps", where)
		}
		if step.Loop.Count <= 0 && len(step.Loop.Items) == 0 {
			return fmt.Errorf("%s: loop needs a count or items", where)
		}
		for i, sub := range step.Loop.Steps {
			if err := validateStep(sub, fmt.Sprintf("%s.loop.steps[%d]", where, i)); err != nil {
				return err
			}
		}
	case StepConcurrent:
		if step.Concurrent == nil {
			return fmt.Errorf("%s: concurrent step has no concurrent payload", where)
		}
		if len(step.Concurrent.Steps) == 0 {
			return fmt.Errorf("%s: concurrent group has no sub-steps", where)
		}
		for i, sub := range step.Concurrent.Steps {
			if err := validateStep(sub, fmt.Sprintf("%s.concurrent.steps[%d]", where, i)); err != nil {
				return err
			}
		}
	case StepPoll:
		if step.Poll == nil {
			return fmt.Errorf("%s: poll step has no poll payload", where)
		}
		if step.LeafType() == StepUnknown {
			return fmt.Errorf("%s: poll step needs a request, database, or script payload to poll", where)
		}
		switch step.Poll.Condition.Type {
		case "jsonpath", "status_code":
		default:
			return fmt.Errorf("%s: poll condition type must be jsonpath or status_code, got %q", where, step.Poll.Condition.Type)
		}
	default:
		return fmt.Errorf("%s: step has no type", where)
	}

	if err := validatePayloadExclusive(step, where); err != nil {
		return err
	}
	if step.RetryPolicy != nil && step.RetryPolicy.MaxAttempts < 0 {
		return fmt.Errorf("%s: retry_policy max_attempts cannot be negative", where)
	}
	for i, ex := range step.Extract {
		if ex.Name == "" {
			return fmt.Errorf("%s: extract[%d] has no name", where, i)
		}
		switch ex.Type {
		case "jsonpath", "regex", "header", "cookie", "status_code":
		default:
			return fmt.Errorf("%s: extract[%d] has unknown type %q", where, i, ex.Type)
		}
	}
	return nil
}

// validatePayloadExclusive rejects steps carrying payloads that do not
// belong to their type tag. Poll steps are the exception: they carry one
// leaf payload alongside the poll config.
func validatePayloadExclusive(step *Step, where string) error {
	leaves := 0
	for _, present := range []bool{
		step.Request != nil,
		step.Database != nil,
		step.Wait != nil,
		step.Script != nil,
	} {
		if present {
			leaves++
		}
	}

	switch step.Type {
	case StepLoop, StepConcurrent:
		if leaves > 0 {
			return fmt.Errorf("%s: %s step cannot carry a leaf payload", where, step.Type)
		}
	case StepPoll:
		if leaves != 1 {
			return fmt.Errorf("%s: poll step needs exactly one leaf payload, found %d", where, leaves)
		}
	default:
		if leaves != 1 {
			return fmt.Errorf("%s: %s step needs exactly one payload, found %d", where, step.Type, leaves)
		}
		if step.Poll != nil {
			return fmt.Errorf("%s: only poll steps may set a poll config", where)
		}
	}
	return nil
}

// applyDefaults copies case-level defaults onto steps that left the
// corresponding field unset.
func (tc *TestCase) applyDefaults() {
	for _, step := range tc.Steps {
		applyStepDefaults(step, tc.Defaults)
	}
}

func applyStepDefaults(step *Step, d Defaults) {
	if step.Timeout == 0 {
		step.Timeout = d.Timeout
	}
	if step.RetryTimes == 0 && step.RetryPolicy == nil {
		step.RetryTimes = d.RetryTimes
	}
	if step.Concurrent != nil {
		if step.Concurrent.MaxConcurrency <= 0 {
			if d.MaxConcurrency > 0 {
				step.Concurrent.MaxConcurrency = d.MaxConcurrency
			} else {
				step.Concurrent.MaxConcurrency = DefaultMaxConcurrency
			}
		}
		for _, sub := range step.Concurrent.Steps {
			applyStepDefaults(sub, d)
		}
	}
	if step.Loop != nil {
		for _, sub := range step.Loop.Steps {
			applyStepDefaults(sub, d)
		}
	}
}
