package transform

import (
	"regexp"
	"strings"
	"time"
)

// datePattern pairs a shape check with the Go layout used to parse it. The
// list is ordered: the first matching shape wins, so unambiguous formats come
// before ambiguous ones.
type datePattern struct {
	shape  *regexp.Regexp
	layout string
	exact  bool // true when the shape leaves no room for misreading
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), "2006-01-02", true},
	{regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`), "2006/01/02", true},
	{regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`), "02/01/2006", false},
	{regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`), "02-01-2006", false},
	{regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`), "2/1/2006", false},
	{regexp.MustCompile(`^\d{1,2} [A-Za-z]{3} \d{4}$`), "2 Jan 2006", true},
	{regexp.MustCompile(`^[A-Za-z]{3} \d{1,2}, \d{4}$`), "Jan 2, 2006", true},
	{regexp.MustCompile(`^[A-Za-z]+ \d{1,2}, \d{4}$`), "January 2, 2006", true},
}

// toDate matches value against the ordered date pattern list and parses with
// the matching layout. Calendar-invalid dates (month 13, day 40) fail.
func toDate(value string) Result {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Result{nil, ConfFailed}
	}
	for _, p := range datePatterns {
		if !p.shape.MatchString(trimmed) {
			continue
		}
		t, err := time.Parse(p.layout, trimmed)
		if err != nil {
			// shape matched but the calendar rejected it; later patterns
			// cannot rescue a shape that already claimed the value
			return Result{nil, ConfFailed}
		}
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if p.exact {
			return Result{t, ConfExact}
		}
		return Result{t, ConfLossy}
	}
	return Result{nil, ConfFailed}
}

// LooksLikeDate reports whether value matches any known date shape, without
// requiring calendar validity.
func LooksLikeDate(value string) bool {
	trimmed := strings.TrimSpace(value)
	for _, p := range datePatterns {
		if p.shape.MatchString(trimmed) {
			return true
		}
	}
	return false
}
