package parfor

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultFirstBundleDivisor sizes the first bundle of a run as
	// items / (workers * DefaultFirstBundleDivisor).
	DefaultFirstBundleDivisor = 10

	// DefaultTargetBundleTime is the wall-clock cost each bundle aims for
	// once a run has timing feedback.
	DefaultTargetBundleTime = 5 * time.Millisecond

	// DefaultCostEpsilon is the accumulated run time below which items are
	// treated as free.
	DefaultCostEpsilon = time.Microsecond

	// AnomalyElapsed replaces a bundle duration that is still implausible
	// after midnight-wrap correction.
	AnomalyElapsed = 10 * time.Millisecond

	// maxPlausibleElapsed bounds a corrected bundle duration.
	maxPlausibleElapsed = 1000 * time.Second
)

type config struct {
	firstDivisor int
	targetBundle time.Duration
	costEpsilon  time.Duration
	maxErrors    int
	panicAsErr   bool
	logger       zerolog.Logger
	onEvent      func(Event)
	now          func() time.Time
	cpuTime      func() time.Duration
}

// Option configures a [Scheduler].
type Option func(*config)

func defaultConfig() config {
	return config{
		firstDivisor: DefaultFirstBundleDivisor,
		targetBundle: DefaultTargetBundleTime,
		costEpsilon:  DefaultCostEpsilon,
		panicAsErr:   true,
		logger:       zerolog.Nop(),
		now:          time.Now,
		cpuTime:      threadCPUTime,
	}
}

// WithFirstBundleDivisor sets the divisor used to size the exploratory first
// bundle of each run. Panics if n <= 0.
func WithFirstBundleDivisor(n int) Option {
	return func(c *config) {
		if n <= 0 {
			panic("parfor: WithFirstBundleDivisor requires n > 0")
		}
		c.firstDivisor = n
	}
}

// WithTargetBundleTime sets the per-bundle cost the adaptive sizing aims
// for. Panics if d <= 0.
func WithTargetBundleTime(d time.Duration) Option {
	return func(c *config) {
		if d <= 0 {
			panic("parfor: WithTargetBundleTime requires d > 0")
		}
		c.targetBundle = d
	}
}

// WithCostEpsilon sets the accumulated run time below which items are
// considered free, and handed out in large slabs. Panics if d < 0.
func WithCostEpsilon(d time.Duration) Option {
	return func(c *config) {
		if d < 0 {
			panic("parfor: WithCostEpsilon requires d >= 0")
		}
		c.costEpsilon = d
	}
}

// WithMaxErrors caps the number of item errors stored per run. Errors beyond
// the cap are counted in [RunInfo.DroppedErrors] and discarded.
//
// A limit of zero (the default) means unlimited.
// WithMaxErrors panics if n is negative.
func WithMaxErrors(n int) Option {
	return func(c *config) {
		if n < 0 {
			panic("parfor: WithMaxErrors requires n >= 0")
		}
		c.maxErrors = n
	}
}

// WithPanicAsError controls what happens to panicking callbacks. When
// enabled (the default), a panic is returned as an [*ItemError] wrapping a
// [*PanicError]. When disabled, the first panic of a run is re-raised in the
// calling goroutine after the run completes.
func WithPanicAsError(enabled bool) Option {
	return func(c *config) {
		c.panicAsErr = enabled
	}
}

// WithLogger sets the logger used by the manager. The default discards
// everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithOnEvent registers a hook that receives every scheduling [Event].
//
// The hook runs on the manager goroutine, so it must be fast and must not
// call back into the scheduler.
func WithOnEvent(fn func(Event)) Option {
	return func(c *config) {
		c.onEvent = fn
	}
}

// WithClock replaces the wall clock that workers use to time bundles.
// Panics if now is nil.
func WithClock(now func() time.Time) Option {
	if now == nil {
		panic("parfor: WithClock requires non-nil clock")
	}
	return func(c *config) {
		c.now = now
	}
}
