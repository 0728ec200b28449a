package reconcile

import "go.uber.org/zap"

// DefaultFallbackIDField holds the synthesized identifier for records that
// carry none of their merge key fields.
const DefaultFallbackIDField = "_mergeKey"

// Option configures reconciliation via functional options.
type Option func(*config)

type config struct {
	logger          *zap.SugaredLogger
	fallbackIDField string
}

// WithLogger sets the diagnostics logger. Failures are logged, never
// returned.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFallbackIDField overrides the field that receives synthesized
// identifiers.
func WithFallbackIDField(field string) Option {
	return func(c *config) {
		if field != "" {
			c.fallbackIDField = field
		}
	}
}

func applyOptions(opts []Option) *config {
	cfg := &config{
		logger:          zap.NewNop().Sugar(),
		fallbackIDField: DefaultFallbackIDField,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
