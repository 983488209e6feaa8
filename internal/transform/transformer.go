package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clinidocs/fieldmapper/constants"
)

// Confidence levels for a coercion. Exact structural matches coerce at full
// confidence; lossy or repaired coercions at half; failures at zero.
const (
	ConfExact  = 1.0
	ConfLossy  = 0.5
	ConfFailed = 0.0
)

// Result is one coercion outcome. Value is nil iff the transformation failed.
type Result struct {
	Value      any
	Confidence float64
}

// Transform coerces a raw string value into the target semantic type. It
// never panics and never returns an error: every failure path resolves to
// (nil, 0).
func Transform(value string, to constants.FieldType) Result {
	switch to {
	case constants.TypeString, constants.TypeRelation:
		return toString(value)
	case constants.TypeInteger:
		return toInteger(value)
	case constants.TypeFloat:
		return toFloat(value)
	case constants.TypeDate:
		return toDate(value)
	case constants.TypeBoolean:
		return toBoolean(value)
	default:
		return Result{nil, ConfFailed}
	}
}

// Validates reports whether value coerces cleanly into t.
func Validates(value string, t constants.FieldType) bool {
	return Transform(value, t).Value != nil
}

func toString(value string) Result {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Result{nil, ConfFailed}
	}
	return Result{trimmed, ConfExact}
}

func toInteger(value string) Result {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Result{nil, ConfFailed}
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return Result{i, ConfExact}
	}
	// strip everything that is not a digit or a leading sign
	var b strings.Builder
	for i, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '-' && i == 0 {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" || digits == "-" {
		return Result{nil, ConfFailed}
	}
	i, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Result{nil, ConfFailed}
	}
	return Result{i, ConfLossy}
}

func toFloat(value string) Result {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Result{nil, ConfFailed}
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Result{f, ConfExact}
	}
	normalized := normalizeDecimal(trimmed)
	f, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return Result{nil, ConfFailed}
	}
	return Result{f, ConfLossy}
}

// normalizeDecimal strips currency/grouping noise and settles on '.' as the
// decimal separator. "1.234,56" and "1,234.56" both normalize to "1234.56".
func normalizeDecimal(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && i == 0:
			b.WriteRune(r)
		}
	}
	s = b.String()
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	if lastComma > lastDot {
		// comma is the decimal separator
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	return strings.ReplaceAll(s, ",", "")
}

func toBoolean(value string) Result {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Result{nil, ConfFailed}
	}
	switch v {
	case "true", "yes", "y", "si", "sí", "1", "x", "checked":
		return Result{true, ConfExact}
	case "false", "no", "n", "0", "unchecked":
		return Result{false, ConfExact}
	default:
		return Result{nil, ConfFailed}
	}
}

// FormatValue renders a transformed value back to its canonical string form.
// The counterpart of Transform for report output.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", t)
	}
}
