package conditions

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Compare applies one comparison operator to two already-resolved
// values. Both the word operators used by poll conditions (eq, ne, gt,
// lt, ge, le, contains, exists) and the symbol operators used by
// validations and condition strings are accepted.
func Compare(op string, actual, expect any) (bool, error) {
	switch op {
	case "eq", "==", "equals", "":
		return equalsValues(actual, expect), nil
	case "ne", "!=":
		return !equalsValues(actual, expect), nil
	case "gt", ">":
		return compareNumeric(">", actual, expect), nil
	case "ge", ">=":
		return compareNumeric(">=", actual, expect), nil
	case "lt", "<":
		return compareNumeric("<", actual, expect), nil
	case "le", "<=":
		return compareNumeric("<=", actual, expect), nil
	case "contains":
		return containsValue(actual, expect), nil
	case "not_contains":
		return !containsValue(actual, expect), nil
	case "in":
		return memberOf(actual, expect), nil
	case "not_in":
		return !memberOf(actual, expect), nil
	case "exists":
		return actual != nil, nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrMalformed, op)
	}
}

// Truthy reduces a value to a bool. Nil, numeric zero, empty strings
// and collections, and the strings false/0/no/null/none (any case) are
// false; everything else is true.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return false
		}
		switch strings.ToLower(s) {
		case "false", "0", "no", "null", "none":
			return false
		}
		return true
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		if n, ok := toFloat64(v); ok {
			return n != 0
		}
		return true
	}
}

// ParseTyped reads a comparison operand into its natural Go type:
// null/none, booleans, integers, floats, quoted strings, bracket
// lists, and finally bare strings.
func ParseTyped(s string) any {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}
	if strings.EqualFold(t, "null") || strings.EqualFold(t, "none") {
		return nil
	}
	if strings.EqualFold(t, "true") {
		return true
	}
	if strings.EqualFold(t, "false") {
		return false
	}
	if len(t) >= 2 {
		if (t[0] == '\'' && t[len(t)-1] == '\'') || (t[0] == '"' && t[len(t)-1] == '"') {
			return t[1 : len(t)-1]
		}
	}
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return int(i)
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return f
	}
	if strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]") {
		return parseList(t[1 : len(t)-1])
	}
	return t
}

// parseList splits a bracket list body on commas, honoring quotes, and
// types each element.
func parseList(body string) []any {
	if strings.TrimSpace(body) == "" {
		return []any{}
	}
	var items []any
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)
	for i := 0; i < len(body); i++ {
		ch := body[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
			current.WriteByte(ch)
		case inQuote && ch == quoteChar:
			inQuote = false
			current.WriteByte(ch)
		case !inQuote && ch == ',':
			items = append(items, ParseTyped(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	items = append(items, ParseTyped(current.String()))
	return items
}

// equalsValues tries deep equality, then numeric coercion, then string
// comparison, so 200 == "200" and 1 == 1.0 both hold.
func equalsValues(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	aNum, aOk := toFloat64(a)
	bNum, bOk := toFloat64(b)
	if aOk && bOk {
		return aNum == bNum
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compareNumeric orders two values numerically. Non-numeric operands
// never satisfy an ordering operator.
func compareNumeric(op string, a, b any) bool {
	aNum, aOk := toFloat64(a)
	bNum, bOk := toFloat64(b)
	if !aOk || !bOk {
		return false
	}
	switch op {
	case ">":
		return aNum > bNum
	case ">=":
		return aNum >= bNum
	case "<":
		return aNum < bNum
	case "<=":
		return aNum <= bNum
	}
	return false
}

// containsValue checks membership for collections and substring for
// everything else.
func containsValue(hay, needle any) bool {
	switch h := hay.(type) {
	case []any:
		for _, item := range h {
			if equalsValues(item, needle) {
				return true
			}
		}
		return false
	case map[string]any:
		_, ok := h[fmt.Sprintf("%v", needle)]
		return ok
	default:
		return strings.Contains(fmt.Sprintf("%v", hay), fmt.Sprintf("%v", needle))
	}
}

// memberOf is containsValue with the operands flipped: needle in hay.
func memberOf(needle, hay any) bool {
	return containsValue(hay, needle)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
