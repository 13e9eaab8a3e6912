package transform

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// toFloat coerces to float64; empty or unparsable input yields 0
func toFloat(value any, _ map[string]string, _ Params) any {
	s := strings.TrimSpace(stringify(value))
	if s == "" {
		return float64(0)
	}
	if f, err := cast.ToFloat64E(s); err == nil {
		return f
	}
	return float64(0)
}

// toInteger coerces to int64; fractional values truncate toward zero and
// unparsable input yields 0
func toInteger(value any, _ map[string]string, _ Params) any {
	s := strings.TrimSpace(stringify(value))
	if s == "" {
		return int64(0)
	}
	if i, err := cast.ToInt64E(s); err == nil {
		return i
	}
	if f, err := cast.ToFloat64E(s); err == nil {
		return int64(f)
	}
	return int64(0)
}

// toDecimal coerces to a fixed-point string with the configured precision
// (default 2). Unparsable input yields the zero value at that precision,
// e.g. "0.00".
func toDecimal(value any, _ map[string]string, params Params) any {
	precision := int32(params.Int("precision", 2))

	s := strings.TrimSpace(stringify(value))
	if s == "" {
		return decimal.Zero.StringFixed(precision)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero.StringFixed(precision)
	}
	return d.StringFixed(precision)
}

// booleanTokens are the explicit truthy forms; everything else is false
var booleanTokens = map[string]bool{
	"true": true,
	"yes":  true,
	"y":    true,
	"1":    true,
	"on":   true,
	"t":    true,
}

func toBoolean(value any, _ map[string]string, _ Params) any {
	if b, ok := value.(bool); ok {
		return b
	}
	return booleanTokens[strings.ToLower(strings.TrimSpace(stringify(value)))]
}
