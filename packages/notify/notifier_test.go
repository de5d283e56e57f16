package notify

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type recordingListener struct {
	events []string
}

func (l *recordingListener) OnTestStart(e TestStart)       { l.events = append(l.events, "test:"+e.Case) }
func (l *recordingListener) OnStepStart(e StepStart)       { l.events = append(l.events, "start:"+e.Step) }
func (l *recordingListener) OnStepComplete(e StepComplete) { l.events = append(l.events, "done:"+e.Step) }

func TestManager(t *testing.T) {
	t.Run("fans out in order", func(t *testing.T) {
		a := &recordingListener{}
		b := &recordingListener{}
		m := NewManager(a)
		m.Add(b)

		m.TestStart(TestStart{Case: "smoke"})
		m.StepStart(StepStart{Step: "login"})
		m.StepComplete(StepComplete{Step: "login", Status: "success"})

		want := []string{"test:smoke", "start:login", "done:login"}
		assert.Equal(t, want, a.events)
		assert.Equal(t, want, b.events)
	})

	t.Run("nil manager drops events", func(t *testing.T) {
		var m *Manager
		assert.NotPanics(t, func() {
			m.TestStart(TestStart{Case: "x"})
			m.StepStart(StepStart{Step: "y"})
			m.StepComplete(StepComplete{Step: "y"})
		})
	})
}

func TestWriterListener(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterListener(&buf)

	l.OnTestStart(TestStart{Case: "smoke", Steps: 2, Time: time.Now()})
	l.OnStepStart(StepStart{Case: "smoke", Step: "login", Type: "request", Time: time.Now()})
	l.OnStepComplete(StepComplete{Case: "smoke", Step: "login", Status: "success", DurationMs: 12.5, Time: time.Now()})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	first := gjson.Parse(lines[0])
	assert.Equal(t, "test_start", first.Get("event").String())
	assert.Equal(t, "smoke", first.Get("case").String())
	assert.Equal(t, int64(2), first.Get("steps").Int())

	last := gjson.Parse(lines[2])
	assert.Equal(t, "step_complete", last.Get("event").String())
	assert.Equal(t, "success", last.Get("status").String())
	assert.Equal(t, 12.5, last.Get("duration_ms").Float())
}
