package notify

import (
	"encoding/json"
	"io"
	"sync"
)

// WriterListener streams events as newline-delimited JSON, one object
// per event with an "event" discriminator field. Suitable for piping to
// a live dashboard or log collector.
type WriterListener struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterListener(w io.Writer) *WriterListener {
	return &WriterListener{w: w}
}

func (l *WriterListener) OnTestStart(e TestStart) {
	l.emit("test_start", e)
}

func (l *WriterListener) OnStepStart(e StepStart) {
	l.emit("step_start", e)
}

func (l *WriterListener) OnStepComplete(e StepComplete) {
	l.emit("step_complete", e)
}

func (l *WriterListener) emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	// Splice the discriminator in front of the payload's own fields.
	line := append([]byte(`{"event":"`+event+`",`), data[1:]...)
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(line)
}
