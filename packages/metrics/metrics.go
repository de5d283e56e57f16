// Package metrics aggregates step latencies for the run summary.
// Latencies go into HDR histograms (1µs to 60s, 3 significant digits),
// one overall and one per step name, alongside success/failure counters.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	histogramMin = 1          // 1µs
	histogramMax = 60_000_000 // 60s in µs
	histogramSig = 3
)

// Collector records step durations. Safe for concurrent use; the
// concurrent executor records from worker goroutines.
type Collector struct {
	total    atomic.Int64
	failures atomic.Int64

	mu      sync.Mutex
	overall *hdrhistogram.Histogram
	perStep map[string]*stepSeries
}

type stepSeries struct {
	count     int64
	failures  int64
	histogram *hdrhistogram.Histogram
}

// Summary is the read side handed to reporters.
type Summary struct {
	Total    int64                  `json:"total"`
	Failures int64                  `json:"failures"`
	P50Ms    float64                `json:"p50_ms"`
	P95Ms    float64                `json:"p95_ms"`
	P99Ms    float64                `json:"p99_ms"`
	MaxMs    float64                `json:"max_ms"`
	MeanMs   float64                `json:"mean_ms"`
	PerStep  map[string]StepSummary `json:"per_step,omitempty"`
}

// StepSummary aggregates one step name across its executions.
type StepSummary struct {
	Count    int64   `json:"count"`
	Failures int64   `json:"failures"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	MaxMs    float64 `json:"max_ms"`
}

func NewCollector() *Collector {
	return &Collector{
		overall: hdrhistogram.New(histogramMin, histogramMax, histogramSig),
		perStep: make(map[string]*stepSeries),
	}
}

// Record adds one step execution to the aggregate and to the step's own
// series.
func (c *Collector) Record(step string, duration time.Duration, failed bool) {
	c.total.Add(1)
	if failed {
		c.failures.Add(1)
	}

	us := clampMicros(duration)

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.overall.RecordValue(us)

	if step == "" {
		return
	}
	series, ok := c.perStep[step]
	if !ok {
		series = &stepSeries{histogram: hdrhistogram.New(histogramMin, histogramMax, histogramSig)}
		c.perStep[step] = series
	}
	series.count++
	if failed {
		series.failures++
	}
	_ = series.histogram.RecordValue(us)
}

// Total returns the number of recorded executions.
func (c *Collector) Total() int64 {
	return c.total.Load()
}

// Summary snapshots the collector for reporting.
func (c *Collector) Summary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Total:    c.total.Load(),
		Failures: c.failures.Load(),
		P50Ms:    usToMs(c.overall.ValueAtQuantile(50)),
		P95Ms:    usToMs(c.overall.ValueAtQuantile(95)),
		P99Ms:    usToMs(c.overall.ValueAtQuantile(99)),
		MaxMs:    usToMs(c.overall.Max()),
		MeanMs:   c.overall.Mean() / 1000.0,
	}
	if len(c.perStep) > 0 {
		s.PerStep = make(map[string]StepSummary, len(c.perStep))
		for name, series := range c.perStep {
			s.PerStep[name] = StepSummary{
				Count:    series.count,
				Failures: series.failures,
				P50Ms:    usToMs(series.histogram.ValueAtQuantile(50)),
				P95Ms:    usToMs(series.histogram.ValueAtQuantile(95)),
				MaxMs:    usToMs(series.histogram.Max()),
			}
		}
	}
	return s
}

func clampMicros(d time.Duration) int64 {
	us := d.Microseconds()
	if us < histogramMin {
		return histogramMin
	}
	if us > histogramMax {
		return histogramMax
	}
	return us
}

func usToMs(us int64) float64 {
	return float64(us) / 1000.0
}
