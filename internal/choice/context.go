package choice

import (
	"daysim/internal/domain"
	"daysim/internal/ports"

	"go.uber.org/zap"
)

// Context is the long-lived, per-worker calculator builder. Each worker of a
// pass owns exactly one; it is passed explicitly into every decision and is
// never shared between goroutines.
type Context struct {
	worker int
	logger *zap.Logger
	sink   ports.ObservationSink

	free    []*Calculator
	created int
}

// NewContext builds the context for one worker. sink may be nil when the
// worker never estimates.
func NewContext(worker int, logger *zap.Logger, sink ports.ObservationSink) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		worker: worker,
		logger: logger.With(zap.Int("worker", worker)),
		sink:   sink,
	}
}

func (x *Context) Worker() int         { return x.worker }
func (x *Context) Logger() *zap.Logger { return x.logger }

// NewCalculator returns a fresh calculator for one decision, reusing the
// storage of a released one when available. Several calculators may be
// outstanding at once (e.g. a destination model computing a mode logsum per
// candidate).
func (x *Context) NewCalculator(spec Spec, mode Mode, key domain.DecisionKey) *Calculator {
	var c *Calculator
	if n := len(x.free); n > 0 {
		c = x.free[n-1]
		x.free = x.free[:n-1]
	} else {
		c = newCalculator(x)
		x.created++
	}
	c.logger = x.logger
	c.sink = x.sink
	c.init(spec, mode, key)
	return c
}

func (x *Context) release(c *Calculator) {
	x.free = append(x.free, c)
}

// CalculatorsCreated reports how many calculators this context allocated.
func (x *Context) CalculatorsCreated() int { return x.created }
