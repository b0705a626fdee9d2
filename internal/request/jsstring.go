package request

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"api-chain/internal/resolve"
)

// JSString renders a decoded JSON value the way JavaScript's String() does,
// which is how injected values end up in query strings.
func JSString(v any) string {
	switch t := v.(type) {
	case resolve.Undefined:
		return "undefined"
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatNumber(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return formatNumber(f)
		}
		return t.String()
	case []any:
		parts := make([]string, len(t))
		for i, elem := range t {
			switch elem.(type) {
			case nil, resolve.Undefined:
				// Array.prototype.join renders null and undefined as empty.
			default:
				parts[i] = JSString(elem)
			}
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	default:
		return fmt.Sprint(t)
	}
}

// formatNumber follows Number.prototype.toString: plain decimal notation
// between 1e-7 and 1e21, exponent notation outside it.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
