package pricing

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred     = decimal.NewFromInt(100)
	maxQuantity = decimal.NewFromInt(math.MaxInt32)
)

// ParseAmount coerces live form input into a non-negative amount. Anything that
// cannot be read as a number becomes zero; negative values clamp to zero.
func ParseAmount(v any) decimal.Decimal {
	d, ok := toDecimal(v)
	if !ok || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseQuantity coerces quantity input into a positive integer, defaulting to 1
// and saturating at MaxInt32.
func ParseQuantity(v any) int {
	d, ok := toDecimal(v)
	if !ok {
		return 1
	}
	q := d.Truncate(0)
	if !q.IsPositive() {
		return 1
	}
	if q.GreaterThan(maxQuantity) {
		return math.MaxInt32
	}
	return int(q.IntPart())
}

// ParseRate coerces a tax percentage into the [0, 100] range.
func ParseRate(v any) decimal.Decimal {
	return clampRate(ParseAmount(v))
}

func clampRate(r decimal.Decimal) decimal.Decimal {
	if r.IsNegative() {
		return decimal.Zero
	}
	if r.GreaterThan(hundred) {
		return hundred
	}
	return r
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return val, true
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero, false
		}
		return *val, true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int32:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case json.Number:
		// request bodies decode with UseNumber, so exponent forms land here
		if d, err := decimal.NewFromString(val.String()); err == nil {
			return d, true
		}
		return fromString(val.String())
	case string:
		return fromString(val)
	default:
		return decimal.Zero, false
	}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// fromString accepts formatted entries such as "12,000", "₦ 5,000.50" or
// "USD 20". A sign may only appear before the first digit, after any currency
// marks; a sign anywhere else, a second '.', or an exponent is malformed.
func fromString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	neg, signed, started, dot := false, false, false, false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			started = true
			b.WriteRune(r)
		case r == '.' && !dot:
			started = true
			dot = true
			b.WriteRune(r)
		case r == '.':
			return decimal.Zero, false
		case r == '-' || r == '+':
			if started || signed {
				return decimal.Zero, false
			}
			signed = true
			neg = r == '-'
		case r == ',' || r == '_' || r == ' ':
		case isCurrencyMark(r):
		default:
			return decimal.Zero, false
		}
	}
	clean := strings.TrimSuffix(b.String(), ".")
	if clean == "" || clean == "." {
		return decimal.Zero, false
	}
	if strings.HasPrefix(clean, ".") {
		clean = "0" + clean
	}
	if neg {
		clean = "-" + clean
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func isCurrencyMark(r rune) bool {
	switch r {
	case '$', '₦', '€', '£', 'U', 'S', 'D', 'N', 'G', 'u', 's', 'd', 'n', 'g':
		return true
	}
	return false
}
