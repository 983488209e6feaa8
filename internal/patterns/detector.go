package patterns

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/clinidocs/fieldmapper/constants"
	"github.com/clinidocs/fieldmapper/internal/transform"
)

// Candidate is one field-candidate substring found in raw text.
// IDs derive from category, label and position so identical inputs always
// produce identical candidates.
type Candidate struct {
	ID         string
	Label      string // pattern name, e.g. "phone"
	Category   string
	Value      string
	Position   int     // byte offset of the match in the scanned text
	Confidence float64 // in [0,1]
	Type       constants.FieldType
}

// Confidence model constants.
const (
	confBase        = 0.5
	confLengthBonus = 0.1 // match longer than 5 runes
	confTypeBonus   = 0.2 // matched text validates against the semantic type
	confFormatBonus = 0.2 // a declared format specifier also matches
)

// Detector scans raw text for field candidates using the library's ordered
// pattern lists. Within a category, the first pattern that matches wins for
// its label; later patterns with the same label are skipped.
type Detector struct {
	lib    *Library
	logger *slog.Logger
}

func NewDetector(lib *Library, logger *slog.Logger) *Detector {
	if lib == nil {
		lib = DefaultLibrary()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{lib: lib, logger: logger}
}

// RekeyHints routes field-level format hints onto the library's pattern
// labels; see Library.HintsByLabel.
func (d *Detector) RekeyHints(byField map[string]FieldHint) map[string][]string {
	return d.lib.HintsByLabel(byField)
}

// Detect scans text for one category. formatHints maps pattern labels to the
// declared format expressions that may describe their matches; a matching
// hint raises candidate confidence. nil hints are fine.
func (d *Detector) Detect(text, category string, formatHints map[string][]string) []Candidate {
	var out []Candidate
	matched := map[string]bool{}

	for _, p := range d.lib.Patterns(category) {
		if matched[p.Name] {
			continue
		}
		loc := p.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		value, pos := extractMatch(text, loc)
		if strings.TrimSpace(value) == "" {
			continue
		}
		matched[p.Name] = true

		out = append(out, Candidate{
			ID:         fmt.Sprintf("%s/%s@%d", category, p.Name, pos),
			Label:      p.Name,
			Category:   category,
			Value:      strings.TrimSpace(value),
			Position:   pos,
			Confidence: candidateConfidence(value, p.Type, formatHints[p.Name]),
			Type:       p.Type,
		})
	}

	d.logger.Debug("detector.scan", "category", category, "candidates", len(out))
	return out
}

// DetectAll scans every category the library knows.
func (d *Detector) DetectAll(text string, formatHints map[string][]string) []Candidate {
	var out []Candidate
	for _, cat := range d.lib.Categories() {
		out = append(out, d.Detect(text, cat, formatHints)...)
	}
	return out
}

// extractMatch prefers the first capture group when the pattern declares one,
// falling back to the whole match.
func extractMatch(text string, loc []int) (string, int) {
	// loc[2],loc[3] delimit group 1 when present and matched
	if len(loc) >= 4 && loc[2] >= 0 {
		return text[loc[2]:loc[3]], loc[2]
	}
	return text[loc[0]:loc[1]], loc[0]
}

// candidateConfidence applies the fixed confidence model: base 0.5, +0.1 for
// matches longer than 5 runes, +0.2 when the text validates against the
// semantic type, +0.2 when a declared format also matches. The format bonus
// is awarded at most once however many hints reached the label. Clamped to
// [0,1].
func candidateConfidence(value string, t constants.FieldType, formats []string) float64 {
	conf := confBase
	trimmed := strings.TrimSpace(value)
	if len([]rune(trimmed)) > 5 {
		conf += confLengthBonus
	}
	if transform.Validates(value, t) {
		conf += confTypeBonus
	}
	for _, expr := range formats {
		if re, err := regexp.Compile(expr); err == nil && re.MatchString(trimmed) {
			conf += confFormatBonus
			break
		}
	}
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}
