package scheduler

import "github.com/corepipeio/corepipe/internal/telemetry"

// schedulerOptions holds configuration gathered from Option values passed to
// New, following the teacher event loop's functional-option pattern
// (eventloop/options.go).
type schedulerOptions struct {
	workers int
	logger  *telemetry.Logger
}

// Option configures a Scheduler at construction time.
type Option interface {
	apply(*schedulerOptions)
}

type optionFunc func(*schedulerOptions)

func (f optionFunc) apply(o *schedulerOptions) { f(o) }

// WithWorkers overrides the worker pool size (default: runtime.NumCPU()).
func WithWorkers(n int) Option {
	return optionFunc(func(o *schedulerOptions) {
		if n > 0 {
			o.workers = n
		}
	})
}

// WithLogger attaches a structured logger; components log nothing by
// default (telemetry.Disabled()).
func WithLogger(logger *telemetry.Logger) Option {
	return optionFunc(func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	})
}

func resolveOptions(opts []Option) *schedulerOptions {
	cfg := &schedulerOptions{
		logger: telemetry.Disabled(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	return cfg
}
