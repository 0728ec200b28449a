package formula

import "go.uber.org/zap"

// DefaultBatchSize bounds the rows evaluated per batch.
const DefaultBatchSize = 1000

// Option configures EvaluateCalculatedFields.
type Option func(*config)

type config struct {
	logger       *zap.SugaredLogger
	batchSize    int
	fieldMapping map[string]string
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBatchSize sets the rows per batch. Non-positive sizes are ignored.
func WithBatchSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithFieldMapping maps reference names to record keys.
func WithFieldMapping(m map[string]string) Option {
	return func(c *config) {
		c.fieldMapping = m
	}
}

func applyOptions(opts []Option) *config {
	cfg := &config{
		logger:    zap.NewNop().Sugar(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
