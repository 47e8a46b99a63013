package invoice

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ToNumber coerces any raw value into a finite float64. Numbers pass through,
// numeric strings are parsed, booleans count as 1/0 and everything else is 0.
func ToNumber(value any) float64 {
	var f float64
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case json.Number:
		f = parseDecimal(v.String())
	case string:
		f = parseDecimal(v)
	case decimal.Decimal:
		f = v.InexactFloat64()
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseDecimal(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

// ToInt coerces a raw value into an integer count. Arrays count their elements.
func ToInt(value any) int {
	if list, ok := value.([]any); ok {
		return len(list)
	}
	return int(math.Trunc(ToNumber(value)))
}

// Stringify renders a raw scalar the way it would appear as a display key.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
