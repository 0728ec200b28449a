package config

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/zap/zapcore"

	"github.com/spektr-org/pivotkit/formula"
)

// Settings are process-wide defaults read from the environment.
type Settings struct {
	LogLevel  zapcore.Level // PIVOTKIT_LOG_LEVEL (default "info")
	BatchSize int           // PIVOTKIT_BATCH_SIZE (default 1000)
	Locale    string        // PIVOTKIT_LOCALE (default "en-US")
	Currency  string        // PIVOTKIT_CURRENCY (default "USD")
}

func LoadSettings() (*Settings, error) {
	s := &Settings{
		Locale:   envOrDefault("PIVOTKIT_LOCALE", "en-US"),
		Currency: envOrDefault("PIVOTKIT_CURRENCY", "USD"),
	}

	level, err := zapcore.ParseLevel(envOrDefault("PIVOTKIT_LOG_LEVEL", "info"))
	if err != nil {
		return nil, errors.Wrap(err, "PIVOTKIT_LOG_LEVEL")
	}
	s.LogLevel = level

	batch, err := cast.ToIntE(envOrDefault("PIVOTKIT_BATCH_SIZE", "1000"))
	if err != nil {
		return nil, errors.Wrap(err, "PIVOTKIT_BATCH_SIZE")
	}
	if batch <= 0 {
		return nil, errors.Errorf("PIVOTKIT_BATCH_SIZE: must be positive, got %d", batch)
	}
	s.BatchSize = batch

	return s, nil
}

// FormatOptions returns the locale and currency as formatting options.
func (s *Settings) FormatOptions() []formula.FormatOption {
	return []formula.FormatOption{formula.WithLocale(s.Locale), formula.WithCurrency(s.Currency)}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
