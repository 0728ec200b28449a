package formula

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ============================================================================
// FORMAT — Renders a calculated value for display
// ============================================================================
// Formats:
//   number      grouped, 2 decimals        1,234.50
//   percentage  ×100, 2 decimals, suffix   12.34%
//   currency    ISO code + grouped amount  USD 1,234.50
//   decimal2    fixed 2 decimals           1234.50
//   decimal4    fixed 4 decimals           1234.5000
//   integer     rounded                    1235
//   scientific  2-digit mantissa           1.23e+03
// Anything else falls back to 2 decimals.
// ============================================================================

// Format names.
const (
	FormatNumber     = "number"
	FormatPercentage = "percentage"
	FormatCurrency   = "currency"
	FormatDecimal2   = "decimal2"
	FormatDecimal4   = "decimal4"
	FormatInteger    = "integer"
	FormatScientific = "scientific"
)

// FormatOption configures Format.
type FormatOption func(*formatConfig)

type formatConfig struct {
	locale   language.Tag
	currency currency.Unit
}

// WithLocale sets the BCP 47 locale used for grouping. Unparseable tags
// are ignored.
func WithLocale(tag string) FormatOption {
	return func(c *formatConfig) {
		if t, err := language.Parse(tag); err == nil {
			c.locale = t
		}
	}
}

// WithCurrency sets the ISO 4217 currency. Unknown codes are ignored.
func WithCurrency(code string) FormatOption {
	return func(c *formatConfig) {
		if u, err := currency.ParseISO(strings.TrimSpace(code)); err == nil {
			c.currency = u
		}
	}
}

// Format renders v per format.
func Format(v float64, format string, opts ...FormatOption) string {
	cfg := &formatConfig{locale: language.AmericanEnglish, currency: currency.USD}
	for _, opt := range opts {
		opt(cfg)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	p := message.NewPrinter(cfg.locale)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatNumber:
		return p.Sprint(number.Decimal(v, number.Scale(2)))
	case FormatPercentage:
		return strconv.FormatFloat(v*100, 'f', 2, 64) + "%"
	case FormatCurrency:
		scale, _ := currency.Standard.Rounding(cfg.currency)
		return cfg.currency.String() + " " + p.Sprint(number.Decimal(v, number.Scale(scale)))
	case FormatDecimal4:
		return strconv.FormatFloat(v, 'f', 4, 64)
	case FormatInteger:
		return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	case FormatScientific:
		return strconv.FormatFloat(v, 'e', 2, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
