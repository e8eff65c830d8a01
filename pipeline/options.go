package pipeline

import (
	"time"

	"github.com/corepipeio/corepipe/internal/telemetry"
)

type pipelineOptions struct {
	logger       *telemetry.Logger
	drainTimeout time.Duration
}

// Option configures a Pipeline at construction time.
type Option interface {
	apply(*pipelineOptions)
}

type optionFunc func(*pipelineOptions)

func (f optionFunc) apply(o *pipelineOptions) { f(o) }

// WithLogger attaches a structured logger; pipelines log nothing by default.
func WithLogger(logger *telemetry.Logger) Option {
	return optionFunc(func(o *pipelineOptions) {
		if logger != nil {
			o.logger = logger
		}
	})
}

// WithDrainTimeout bounds how long Stop waits for pending deliveries to
// quiesce after sources are signaled, before proceeding to Stop each source
// anyway. The default is 30 seconds.
func WithDrainTimeout(d time.Duration) Option {
	return optionFunc(func(o *pipelineOptions) {
		if d > 0 {
			o.drainTimeout = d
		}
	})
}

func resolveOptions(opts []Option) *pipelineOptions {
	cfg := &pipelineOptions{
		logger:       telemetry.Disabled(),
		drainTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	return cfg
}
