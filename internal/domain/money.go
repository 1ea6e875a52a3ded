package domain

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// CoerceAmount parses a numeric-like input into a decimal. The second return
// value is false when the input is absent, unparseable, or not finite. It
// never panics: malformed input degrades to (0, false) so a single bad field
// cannot crash a recomputation pass over an entire order.
func CoerceAmount(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, false
		}
		return *v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		return CoerceAmount(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		return parseAmountString(v.String())
	case string:
		return parseAmountString(v)
	default:
		return decimal.Zero, false
	}
}

func parseAmountString(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ClampNonNegative returns max(0, d).
func ClampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ClampQuantity floors a quantity at zero.
func ClampQuantity(q int) int {
	if q < 0 {
		return 0
	}
	return q
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
