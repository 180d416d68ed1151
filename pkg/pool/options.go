package pool

import "github.com/nemanja-m/workpool/internal/shared/logging"

// PanicHandler receives the value recovered from a panicking task.
type PanicHandler func(workerID int, recovered any)

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for lifecycle and panic records.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithName labels the pool in logs and metrics.
func WithName(name string) Option {
	return func(p *Pool) {
		p.name = name
	}
}

// WithPanicHandler makes workers recover task panics and report them to
// handler instead of crashing the process. The worker keeps serving the
// queue afterwards.
func WithPanicHandler(handler PanicHandler) Option {
	return func(p *Pool) {
		p.onPanic = handler
	}
}

// WithMetrics instruments the pool with the given collectors.
func WithMetrics(metrics *Metrics) Option {
	return func(p *Pool) {
		p.metrics = metrics
	}
}
