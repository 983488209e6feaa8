package extract

import (
	"strings"
)

// Heuristic scoring constants. The formula is preserved for compatibility
// with historical scores; the thresholds are calibration candidates, not
// statistically derived.
const (
	wordCountCap      = 200 // documents at/above this word count max the density term
	significantRunes  = 3   // words longer than this count as significant
	formattedLineLen  = 30  // lines longer than this count as well-formatted
	maxQualityScore   = 100.0
	scoreContribCount = 4
)

// Score computes the extraction quality score in [0,100] for a strategy
// result: the equal-weight mean of word-count density (capped), significant
// word fraction, line-formatting fraction, and the method's base quality.
// Empty text scores 0 regardless of the method prior.
func Score(text string, baseQuality float64) float64 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}

	words := strings.Fields(trimmed)
	wordCount := len(words)

	density := float64(wordCount) / float64(wordCountCap) * maxQualityScore
	if density > maxQualityScore {
		density = maxQualityScore
	}

	significant := 0
	for _, w := range words {
		if len([]rune(w)) > significantRunes {
			significant++
		}
	}
	var significantFrac float64
	if wordCount > 0 {
		significantFrac = float64(significant) / float64(wordCount) * maxQualityScore
	}

	lines := strings.Split(trimmed, "\n")
	formatted := 0
	counted := 0
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		counted++
		if len([]rune(ln)) > formattedLineLen {
			formatted++
		}
	}
	var lineFrac float64
	if counted > 0 {
		lineFrac = float64(formatted) / float64(counted) * maxQualityScore
	}

	if baseQuality < 0 {
		baseQuality = 0
	}
	if baseQuality > maxQualityScore {
		baseQuality = maxQualityScore
	}

	score := (density + significantFrac + lineFrac + baseQuality) / scoreContribCount
	if score < 0 {
		score = 0
	}
	if score > maxQualityScore {
		score = maxQualityScore
	}
	return score
}
