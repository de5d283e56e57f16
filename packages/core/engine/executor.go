package engine

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/abdul-hamid-achik/flowspec/packages/core/variables"
	"github.com/abdul-hamid-achik/flowspec/packages/metrics"
	"github.com/abdul-hamid-achik/flowspec/packages/notify"
	"github.com/abdul-hamid-achik/flowspec/packages/ops"
	"github.com/abdul-hamid-achik/flowspec/packages/pool"
)

// Executor runs one test case: it seeds the variable scopes, sequences
// the steps, dispatches each to the right specialization, and threads
// prior results into dependency checks. A step failure never stops the
// run; it is reflected in the aggregate counts.
type Executor struct {
	vars      *variables.Manager
	registry  *ops.Registry
	log       zerolog.Logger
	events    *notify.Manager
	collector *metrics.Collector
	overrides map[string]any
	baseDir   string

	poolCapacity int
	poolOnce     sync.Once
	sharedPool   *pool.Pool
	ownsPool     bool
}

type Option func(*Executor)

// WithVariables replaces the executor's variable manager.
func WithVariables(vars *variables.Manager) Option {
	return func(e *Executor) { e.vars = vars }
}

// WithRegistry replaces the leaf operation registry.
func WithRegistry(r *ops.Registry) Option {
	return func(e *Executor) { e.registry = r }
}

// WithLogger sets the structured logger. Default is a nop logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// WithEvents sets the lifecycle event manager.
func WithEvents(events *notify.Manager) Option {
	return func(e *Executor) { e.events = events }
}

// WithCollector sets the latency collector.
func WithCollector(c *metrics.Collector) Option {
	return func(e *Executor) { e.collector = c }
}

// WithOverrides seeds the override scope, highest-priority after
// extracted values. Used for CLI --set pairs.
func WithOverrides(overrides map[string]any) Option {
	return func(e *Executor) { e.overrides = overrides }
}

// WithBaseDir resolves hook commands, scripts, and schema files
// against dir.
func WithBaseDir(dir string) Option {
	return func(e *Executor) { e.baseDir = dir }
}

// WithPool injects an externally owned worker pool. The executor will
// not close it.
func WithPool(p *pool.Pool) Option {
	return func(e *Executor) {
		e.sharedPool = p
		e.poolOnce.Do(func() {})
	}
}

// WithPoolCapacity bounds the lazily created shared pool.
func WithPoolCapacity(capacity int) Option {
	return func(e *Executor) { e.poolCapacity = capacity }
}

func New(opts ...Option) *Executor {
	e := &Executor{
		vars:         variables.NewManager(),
		log:          zerolog.Nop(),
		collector:    metrics.NewCollector(),
		poolCapacity: pool.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = ops.NewRegistry(ops.WithBaseDir(e.baseDir))
	}
	return e
}

// Vars exposes the variable manager, mainly for tests and for callers
// seeding extra state before Run.
func (e *Executor) Vars() *variables.Manager {
	return e.vars
}

// pool returns the shared worker pool, created on first use and closed
// when the run ends.
func (e *Executor) pool() *pool.Pool {
	e.poolOnce.Do(func() {
		e.sharedPool = pool.New(e.poolCapacity)
		e.ownsPool = true
	})
	return e.sharedPool
}

// Run executes the whole test case in declaration order.
func (e *Executor) Run(ctx context.Context, tc *parser.TestCase) *TestCaseResult {
	result := &TestCaseResult{
		Name:      tc.Name,
		Status:    StatusPending,
		StartTime: time.Now(),
	}

	if e.baseDir == "" && tc.Path != "" {
		e.baseDir = filepath.Dir(tc.Path)
	}

	e.seedScopes(tc)

	e.events.TestStart(notify.TestStart{
		Case:    tc.Name,
		Profile: tc.ActiveProfile,
		Steps:   len(tc.Steps),
		Time:    time.Now(),
	})

	prior := make(map[string]*StepResult, len(tc.Steps))
	for i, step := range tc.Steps {
		e.events.StepStart(notify.StepStart{
			Case:  tc.Name,
			Step:  step.Name,
			Type:  step.Type.String(),
			Index: i,
			Time:  time.Now(),
		})

		run := &stepRun{e: e, step: step, prior: prior, vars: e.vars, extractTo: e.vars}
		sr := run.execute(ctx)

		e.collector.Record(step.Name, sr.Duration(), !sr.Passed() && sr.Status != StatusSkipped)
		e.events.StepComplete(stepCompleteEvent(tc.Name, sr))

		prior[step.Name] = sr
		result.record(sr)

		e.log.Debug().
			Str("step", step.Name).
			Str("status", string(sr.Status)).
			Dur("duration", sr.Duration()).
			Msg("step finished")
	}

	result.Variables = e.vars.All()
	result.Latency = e.collector.Summary()
	result.finish()

	if e.ownsPool && e.sharedPool != nil {
		e.sharedPool.Close()
	}
	return result
}

// seedScopes loads global variables from the case, profile variables
// from the active profile, and overrides from the profile plus any
// runtime --set pairs.
func (e *Executor) seedScopes(tc *parser.TestCase) {
	_ = e.vars.SetMany(variables.ScopeGlobal, tc.Variables)

	if tc.ActiveProfile != "" {
		if profile, ok := tc.Profiles[tc.ActiveProfile]; ok {
			_ = e.vars.SetMany(variables.ScopeProfile, profile.Variables)
			_ = e.vars.SetMany(variables.ScopeOverride, profile.Overrides)
		}
	}
	_ = e.vars.SetMany(variables.ScopeOverride, e.overrides)
}

func stepCompleteEvent(caseName string, sr *StepResult) notify.StepComplete {
	ev := notify.StepComplete{
		Case:       caseName,
		Step:       sr.Name,
		Status:     string(sr.Status),
		DurationMs: float64(sr.Duration().Microseconds()) / 1000.0,
		Retries:    sr.RetryCount,
		Time:       time.Now(),
	}
	if sr.Error != nil {
		ev.Error = sr.Error.Message
	}
	return ev
}
