package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinidocs/fieldmapper/constants"
)

const sampleText = `Patient: Juan Perez
Record #: MX-48213
Phone: 555-123-4567
Email: juan.perez@example.com
Date: 2024-03-15
Weight: 82.5 kg
Blood type: O+
Total due: $1,250.00 USD
`

func TestDetectContactCategory(t *testing.T) {
	d := NewDetector(nil, nil)
	cands := d.Detect(sampleText, constants.CategoryContact, nil)
	require.NotEmpty(t, cands)

	byLabel := map[string]Candidate{}
	for _, c := range cands {
		byLabel[c.Label] = c
	}
	email, ok := byLabel["email"]
	require.True(t, ok)
	assert.Equal(t, "juan.perez@example.com", email.Value)
	assert.Equal(t, constants.CategoryContact, email.Category)
	assert.Equal(t, constants.TypeString, email.Type)

	_, ok = byLabel["phone"]
	assert.True(t, ok)
}

func TestDetectTemporalCategory(t *testing.T) {
	d := NewDetector(nil, nil)
	cands := d.Detect(sampleText, constants.CategoryTemporal, nil)
	require.NotEmpty(t, cands)
	assert.Equal(t, "date_iso", cands[0].Label)
	assert.Equal(t, "2024-03-15", cands[0].Value)
	assert.Equal(t, constants.TypeDate, cands[0].Type)
}

func TestDetectConfidenceModel(t *testing.T) {
	d := NewDetector(nil, nil)
	cands := d.Detect(sampleText, constants.CategoryTemporal, nil)
	require.NotEmpty(t, cands)
	// base 0.5 + length bonus 0.1 + type validation bonus 0.2
	assert.InDelta(t, 0.8, cands[0].Confidence, 1e-9)

	// a matching declared format adds another 0.2
	hinted := d.Detect(sampleText, constants.CategoryTemporal, map[string][]string{
		"date_iso": {`^\d{4}-\d{2}-\d{2}$`},
	})
	require.NotEmpty(t, hinted)
	assert.InDelta(t, 1.0, hinted[0].Confidence, 1e-9)
}

func TestRekeyHintsFansOutByType(t *testing.T) {
	lib := DefaultLibrary()

	// a field named after no pattern reaches every pattern of its type
	out := lib.HintsByLabel(map[string]FieldHint{
		"dob": {Format: `^\d{4}-\d{2}-\d{2}$`, Type: constants.TypeDate},
	})
	require.NotNil(t, out)
	assert.Contains(t, out, "date_iso")
	assert.Contains(t, out, "date_slash")
	assert.NotContains(t, out, "phone")
	assert.Equal(t, []string{`^\d{4}-\d{2}-\d{2}$`}, out["date_iso"])

	// a field named exactly like a label pins its format to that label
	out = lib.HintsByLabel(map[string]FieldHint{
		"date_iso": {Format: `^\d{4}`, Type: constants.TypeDate},
	})
	assert.Equal(t, map[string][]string{"date_iso": {`^\d{4}`}}, out)

	assert.Nil(t, lib.HintsByLabel(nil))
	assert.Nil(t, lib.HintsByLabel(map[string]FieldHint{"dob": {Type: constants.TypeDate}}))
}

// A format declared on a field whose name is no pattern label still raises
// the confidence of the candidates able to fill it.
func TestDetectFormatHintForRenamedField(t *testing.T) {
	d := NewDetector(nil, nil)
	hints := d.RekeyHints(map[string]FieldHint{
		"dob": {Format: `^\d{4}-\d{2}-\d{2}$`, Type: constants.TypeDate},
	})
	cands := d.Detect(sampleText, constants.CategoryTemporal, hints)
	require.NotEmpty(t, cands)
	assert.Equal(t, "date_iso", cands[0].Label)
	assert.InDelta(t, 1.0, cands[0].Confidence, 1e-9)
}

func TestDetectConfidenceClamped(t *testing.T) {
	d := NewDetector(nil, nil)
	for _, c := range d.DetectAll(sampleText, nil) {
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 1.0)
	}
}

func TestDetectDeterministicIDs(t *testing.T) {
	d := NewDetector(nil, nil)
	first := d.DetectAll(sampleText, nil)
	second := d.DetectAll(sampleText, nil)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Value, second[i].Value)
	}
}

func TestDetectFirstPatternWins(t *testing.T) {
	d := NewDetector(nil, nil)
	// both an ISO and a slash date exist; each label still yields one candidate
	text := "Issued 2024-03-15 previously 03/11/2023"
	cands := d.Detect(text, constants.CategoryTemporal, nil)
	labels := map[string]int{}
	for _, c := range cands {
		labels[c.Label]++
	}
	for label, n := range labels {
		assert.Equal(t, 1, n, "label %s", label)
	}
}

func TestAnalyzerClassifyType(t *testing.T) {
	a := NewAnalyzer()
	tests := []struct {
		name     string
		patterns []string
		want     constants.FieldType
	}{
		{name: "date patterns", patterns: []string{"date_iso", "date_slash"}, want: constants.TypeDate},
		{name: "mixed favors majority", patterns: []string{"phone", "email", "amount"}, want: constants.TypeString},
		{name: "single numeric", patterns: []string{"weight"}, want: constants.TypeFloat},
		{name: "unknown names fall back", patterns: []string{"mystery"}, want: constants.TypeString},
		{name: "empty falls back", patterns: nil, want: constants.TypeString},
		{name: "tie breaks on specificity", patterns: []string{"date_iso", "phone"}, want: constants.TypeDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.ClassifyType(tt.patterns))
		})
	}
}
