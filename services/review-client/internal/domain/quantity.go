package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseQuantity normalizes a quantity as the backend sends it. Null, missing
// and empty-string values become zero, a sent zero stays zero, and anything
// negative or unparseable is clamped to zero.
func ParseQuantity(v any) decimal.Decimal {
	d, ok := parseDecimal(v)
	if !ok || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// FirstQuantity returns the first present value among vs, normalized with
// ParseQuantity. A present zero wins over later values.
func FirstQuantity(vs ...any) decimal.Decimal {
	for _, v := range vs {
		if isPresent(v) {
			return ParseQuantity(v)
		}
	}
	return decimal.Zero
}

// ParseOptional parses a value that may legitimately be absent, such as a
// unit cost. Absent or unparseable values yield an invalid NullDecimal.
func ParseOptional(v any) decimal.NullDecimal {
	d, ok := parseDecimal(v)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func isPresent(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	default:
		return true
	}
}

func parseDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return t, true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case int32:
		return decimal.NewFromInt32(t), true
	default:
		return decimal.Zero, false
	}
}
