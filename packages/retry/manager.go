package retry

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
)

// Attempt is one try of a step, recorded whether it succeeded or not.
// Appended in order, never mutated; reporters read the slice as-is.
type Attempt struct {
	Number       int       `json:"number"`
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`

	DelayBefore time.Duration `json:"delay_before"`
	Duration    time.Duration `json:"duration"`
}

// Manager tracks the attempts of a single step execution.
type Manager struct {
	policy *Policy

	mu       sync.Mutex
	attempts []Attempt
}

func NewManager(p *Policy) *Manager {
	if p == nil {
		p = FromTimes(0)
	}
	return &Manager{policy: p}
}

func (m *Manager) Policy() *Policy {
	return m.policy
}

// ShouldRetry decides whether a failure warrants another attempt.
// attemptsMade counts tries already performed, so the first failed
// attempt calls ShouldRetry(err, 1).
func (m *Manager) ShouldRetry(err error, attemptsMade int) bool {
	if attemptsMade >= m.policy.MaxAttempts {
		return false
	}
	if err == nil {
		return false
	}
	if matchesAny(m.policy.StopOn, err) {
		return false
	}
	if len(m.policy.RetryOn) > 0 && !matchesAny(m.policy.RetryOn, err) {
		return false
	}
	return true
}

// Delay proxies to the policy for the wait before retry attempt index.
func (m *Manager) Delay(attempt int) time.Duration {
	return m.policy.Delay(attempt)
}

// RecordAttempt appends one attempt to the history.
func (m *Manager) RecordAttempt(success bool, err error, delayBefore, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := Attempt{
		Number:      len(m.attempts) + 1,
		Timestamp:   time.Now(),
		Success:     success,
		DelayBefore: delayBefore,
		Duration:    duration,
	}
	if err != nil {
		a.ErrorKind = string(leaf.KindOf(err))
		a.ErrorMessage = err.Error()
	}
	m.attempts = append(m.attempts, a)
}

// History returns a copy of the ordered attempt log.
func (m *Manager) History() []Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Attempt, len(m.attempts))
	copy(out, m.attempts)
	return out
}

// Count returns the number of recorded attempts.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

// matchesAny checks an error against a kind/type-name filter list.
func matchesAny(filters []string, err error) bool {
	if len(filters) == 0 || err == nil {
		return false
	}
	names := errorNames(err)
	for _, f := range filters {
		for _, n := range names {
			if strings.EqualFold(f, n) {
				return true
			}
		}
	}
	return false
}

// errorNames collects the identifiers a filter can match: the leaf
// taxonomy kind and the bare Go type name.
func errorNames(err error) []string {
	names := []string{string(leaf.KindOf(err))}
	t := reflect.TypeOf(err)
	if t != nil {
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		names = append(names, t.Name())
	}
	return names
}

// Sleep waits for d or until the context is cancelled, whichever comes
// first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
