package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
)

type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyLinear      Strategy = "linear"
	StrategyExponential Strategy = "exponential"
)

const (
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 60 * time.Second
	DefaultMultiplier = 2.0
)

// Policy controls how failed attempts are spaced and filtered.
type Policy struct {
	MaxAttempts       int
	Strategy          Strategy
	BaseDelay         time.Duration
	MaxDelay          time.Duration // 0 = uncapped
	BackoffMultiplier float64
	Jitter            bool

	// RetryOn and StopOn filter by error kind (leaf taxonomy) or Go
	// type name, case-insensitive. StopOn wins over RetryOn.
	RetryOn []string
	StopOn  []string
}

// FromParser normalizes a YAML retry_policy into a Policy with
// defaults filled in.
func FromParser(p *parser.RetryPolicy) *Policy {
	pol := &Policy{
		MaxAttempts:       p.MaxAttempts,
		Strategy:          Strategy(p.Strategy),
		BaseDelay:         p.BaseDelay.Std(),
		MaxDelay:          p.MaxDelay.Std(),
		BackoffMultiplier: p.BackoffMultiplier,
		Jitter:            p.Jitter,
		RetryOn:           p.RetryOn,
		StopOn:            p.StopOn,
	}
	if pol.MaxAttempts <= 0 {
		pol.MaxAttempts = 1
	}
	if pol.Strategy == "" {
		pol.Strategy = StrategyFixed
	}
	if pol.BaseDelay <= 0 {
		pol.BaseDelay = DefaultBaseDelay
	}
	if pol.MaxDelay <= 0 {
		pol.MaxDelay = DefaultMaxDelay
	}
	if pol.BackoffMultiplier <= 0 {
		pol.BackoffMultiplier = DefaultMultiplier
	}
	return pol
}

// FromTimes builds the policy behind the shorthand retry_times: N,
// meaning N retries after the first attempt, fixed one-second spacing.
func FromTimes(times int) *Policy {
	if times < 0 {
		times = 0
	}
	return &Policy{
		MaxAttempts: times + 1,
		Strategy:    StrategyFixed,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Delay returns the wait before retry attempt index (0-based). Fixed
// repeats base_delay, linear grows arithmetically, exponential grows
// geometrically; every strategy is capped at max_delay when one is
// set, then jittered by up to ±10%.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := p.BaseDelay.Seconds()
	var secs float64
	switch p.Strategy {
	case StrategyLinear:
		secs = base * float64(attempt+1)
	case StrategyExponential:
		mult := p.BackoffMultiplier
		if mult <= 0 {
			mult = DefaultMultiplier
		}
		secs = base * math.Pow(mult, float64(attempt))
	default:
		secs = base
	}

	if p.MaxDelay > 0 && secs > p.MaxDelay.Seconds() {
		secs = p.MaxDelay.Seconds()
	}
	d := time.Duration(secs * float64(time.Second))
	if p.Jitter {
		d = jitter(d)
	}
	return d
}

// jitter perturbs a delay uniformly within ±10%.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	factor := 0.9 + 0.2*rand.Float64()
	return time.Duration(float64(d) * factor)
}
