package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Normalize trims surrounding whitespace and case-folds s. It is the single
// comparison form used for column names and lookup values.
func Normalize(s string) string {
	// A Caser is stateful, so one is built per call.
	return cases.Fold().String(strings.TrimSpace(s))
}

// valueString renders a cell value as text for comparison.
func valueString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// ParseID interprets a cell value as an integer identifier. Strings are
// trimmed first; integral floats such as "3.0" are accepted.
func ParseID(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		if val != float64(int64(val)) {
			return 0, false
		}
		return int(val), true
	}

	s := strings.TrimSpace(valueString(v))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int(f), true
}
