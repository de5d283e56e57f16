// Package notify fans test lifecycle events out to listeners. The
// engine emits three events — test start, step start, step complete —
// as plain data; listeners carry them to whatever transport watches the
// run live. A listener must not block the engine for long.
package notify

import (
	"sync"
	"time"
)

// TestStart is emitted once when a test case begins.
type TestStart struct {
	Case    string    `json:"case"`
	Profile string    `json:"profile,omitempty"`
	Steps   int       `json:"steps"`
	Time    time.Time `json:"time"`
}

// StepStart is emitted before each step runs.
type StepStart struct {
	Case  string    `json:"case"`
	Step  string    `json:"step"`
	Type  string    `json:"type"`
	Index int       `json:"index"`
	Time  time.Time `json:"time"`
}

// StepComplete is emitted after each step finishes, whatever the
// outcome.
type StepComplete struct {
	Case       string    `json:"case"`
	Step       string    `json:"step"`
	Status     string    `json:"status"`
	DurationMs float64   `json:"duration_ms"`
	Retries    int       `json:"retries,omitempty"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

// Listener receives lifecycle events.
type Listener interface {
	OnTestStart(TestStart)
	OnStepStart(StepStart)
	OnStepComplete(StepComplete)
}

// Manager fans events out to every registered listener in registration
// order. A nil Manager drops everything, so the engine can emit without
// nil checks.
type Manager struct {
	mu        sync.Mutex
	listeners []Listener
}

func NewManager(listeners ...Listener) *Manager {
	return &Manager{listeners: listeners}
}

// Add registers one more listener.
func (m *Manager) Add(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Manager) TestStart(e TestStart) {
	if m == nil {
		return
	}
	for _, l := range m.snapshot() {
		l.OnTestStart(e)
	}
}

func (m *Manager) StepStart(e StepStart) {
	if m == nil {
		return
	}
	for _, l := range m.snapshot() {
		l.OnStepStart(e)
	}
}

func (m *Manager) StepComplete(e StepComplete) {
	if m == nil {
		return
	}
	for _, l := range m.snapshot() {
		l.OnStepComplete(e)
	}
}

func (m *Manager) snapshot() []Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Listener, len(m.listeners))
	copy(out, m.listeners)
	return out
}
