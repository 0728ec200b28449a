package engine

import (
	"go.uber.org/zap"

	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// ENGINE OPTIONS — Functional options for Pivot()
// ============================================================================

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	logger     *zap.SugaredLogger
	visible    []*record.Record
	hasVisible bool
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithVisible supplies the currently filtered record set. Grand totals are
// computed over it instead of the pivot input.
func WithVisible(records []*record.Record) Option {
	return func(c *config) {
		c.visible = records
		c.hasVisible = true
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
