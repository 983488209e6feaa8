package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinidocs/fieldmapper/constants"
	"github.com/clinidocs/fieldmapper/internal/common"
	"github.com/clinidocs/fieldmapper/internal/extract"
	"github.com/clinidocs/fieldmapper/internal/quality"
	"github.com/clinidocs/fieldmapper/internal/reconcile"
	"github.com/clinidocs/fieldmapper/internal/template"
)

const contactTemplate = `
name: contact-card
fields:
  full_name:
    type: string
    required: true
  email:
    type: string
    required: true
  phone:
    type: string
`

const contactDoc = `Patient: Juan Perez
Phone: 555-123-4567
Email: juan.perez@example.com
`

func testConfig(cacheSize int) *common.Config {
	return &common.Config{
		Extraction: common.ExtractionConfig{QualityThreshold: 80},
		Cache:      common.CacheConfig{Size: cacheSize},
	}
}

func mustSchema(t *testing.T, yaml string) *template.Schema {
	t.Helper()
	s, err := template.Load([]byte(yaml))
	require.NoError(t, err)
	return s
}

func inlineDoc(text string) extract.Document {
	return extract.Document{Text: text, Format: constants.TXT}
}

func TestProcessEndToEnd(t *testing.T) {
	c, err := New(testConfig(0), nil)
	require.NoError(t, err)
	schema := mustSchema(t, contactTemplate)

	rep := c.Process(context.Background(), inlineDoc(contactDoc), schema)

	require.NotNil(t, rep)
	require.Nil(t, rep.Error)
	assert.True(t, rep.IsValid())

	assert.Equal(t, "plain-text", rep.Structure.Method)
	assert.Greater(t, rep.Structure.TextBytes, 0)

	assert.Equal(t, "Juan Perez", rep.Fields["full_name"].Value)
	assert.Equal(t, "juan.perez@example.com", rep.Fields["email"].Value)
	assert.Equal(t, "555-123-4567", rep.Fields["phone"].Value)
	assert.True(t, rep.Fields["full_name"].Validated)

	assert.Empty(t, rep.Unresolved)
	assert.Greater(t, rep.Quality.Aggregate, 0.8)

	assert.NotEmpty(t, rep.Metadata.ContentHash)
	assert.Equal(t, "contact-card", rep.Metadata.Template)
	assert.False(t, rep.Metadata.CacheHit)
}

func TestProcessIsIdempotent(t *testing.T) {
	c, err := New(testConfig(0), nil) // cache disabled: both runs compute
	require.NoError(t, err)
	schema := mustSchema(t, contactTemplate)
	doc := inlineDoc(contactDoc)

	first := c.Process(context.Background(), doc, schema)
	second := c.Process(context.Background(), doc, schema)

	assert.Equal(t, first.Fields, second.Fields)
	assert.Equal(t, first.Quality.Fields, second.Quality.Fields)
	assert.Equal(t, first.Quality.Aggregate, second.Quality.Aggregate)
	assert.Equal(t, first.Validation.Valid, second.Validation.Valid)
	assert.NotEqual(t, first.Metadata.RunID, second.Metadata.RunID)
}

func TestProcessCacheHit(t *testing.T) {
	c, err := New(testConfig(8), nil)
	require.NoError(t, err)
	schema := mustSchema(t, contactTemplate)
	doc := inlineDoc(contactDoc)

	first := c.Process(context.Background(), doc, schema)
	second := c.Process(context.Background(), doc, schema)

	assert.False(t, first.Metadata.CacheHit)
	assert.True(t, second.Metadata.CacheHit)
	assert.Equal(t, first.Fields, second.Fields)
	assert.NotEqual(t, first.Metadata.RunID, second.Metadata.RunID)

	snap := c.Stats()
	assert.Equal(t, 1, snap.Processed)
	assert.Equal(t, 1, snap.CacheHits)
}

// A declared format must raise detection confidence even when the field's
// name matches no pattern label: "dob" alone scores too low against the
// "date_iso" candidate, the format bonus is what clears the match threshold.
func TestProcessFormatHintReachesDetection(t *testing.T) {
	c, err := New(testConfig(0), nil)
	require.NoError(t, err)
	schema := mustSchema(t, `
name: intake
fields:
  dob:
    type: date
    required: true
    format: ^\d{4}-\d{2}-\d{2}$
`)

	rep := c.Process(context.Background(), inlineDoc("Fecha: 2024-03-15\n"), schema)

	require.Nil(t, rep.Error)
	f, ok := rep.Fields["dob"]
	require.True(t, ok)
	require.False(t, f.Missing())
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), f.Value)
	assert.InDelta(t, 1.0, f.Confidence, 1e-9)
	assert.Empty(t, rep.Unresolved)
	assert.True(t, rep.IsValid())
}

func TestProcessCacheHitSharesNoState(t *testing.T) {
	c, err := New(testConfig(8), nil)
	require.NoError(t, err)
	schema := mustSchema(t, contactTemplate)
	doc := inlineDoc(contactDoc)

	first := c.Process(context.Background(), doc, schema)
	second := c.Process(context.Background(), doc, schema)
	require.True(t, second.Metadata.CacheHit)

	// mutating any returned report must not bleed into later hits
	first.Fields["email"] = reconcile.Field{}
	second.Fields["full_name"] = reconcile.Field{}
	second.Quality.Fields["phone"] = quality.FieldQuality{}

	third := c.Process(context.Background(), doc, schema)
	require.True(t, third.Metadata.CacheHit)
	assert.Equal(t, "juan.perez@example.com", third.Fields["email"].Value)
	assert.Equal(t, "Juan Perez", third.Fields["full_name"].Value)
	assert.Greater(t, third.Quality.Fields["phone"].Score, 0.0)

	// the entry was stored with its duration already settled
	assert.Greater(t, first.Metadata.Duration, time.Duration(0))
}

func TestProcessCacheKeyedByTemplate(t *testing.T) {
	c, err := New(testConfig(8), nil)
	require.NoError(t, err)
	doc := inlineDoc(contactDoc)

	c.Process(context.Background(), doc, mustSchema(t, contactTemplate))
	other := c.Process(context.Background(), doc, mustSchema(t, `
name: minimal
fields:
  email:
    type: string
    required: true
`))
	assert.False(t, other.Metadata.CacheHit)
}

func TestProcessUnsupportedFormatReturnsReport(t *testing.T) {
	c, err := New(testConfig(0), nil)
	require.NoError(t, err)

	rep := c.Process(context.Background(),
		extract.Document{Text: "x", Format: "WAV"},
		mustSchema(t, contactTemplate))

	require.NotNil(t, rep)
	require.NotNil(t, rep.Error)
	assert.Equal(t, common.KindExtractionFailure, rep.Error.Kind)
	assert.False(t, rep.IsValid())

	snap := c.Stats()
	assert.Equal(t, 1, snap.Processed)
	assert.Equal(t, 1, snap.Failed)
}

type panicStrategy struct{}

func (panicStrategy) ID() string           { return "panic" }
func (panicStrategy) Supports(string) bool { return true }

func (panicStrategy) Extract(context.Context, extract.Document) (extract.Extraction, error) {
	panic("boom")
}

func TestProcessRecoversInternalPanic(t *testing.T) {
	cfg := testConfig(0)
	sel := extract.NewSelector(cfg.Extraction, []extract.Strategy{panicStrategy{}}, nil, nil)
	c, err := NewWithSelector(cfg, sel, nil)
	require.NoError(t, err)

	rep := c.Process(context.Background(), inlineDoc("anything"), mustSchema(t, contactTemplate))

	require.NotNil(t, rep)
	require.NotNil(t, rep.Error)
	assert.Equal(t, common.KindCriticalError, rep.Error.Kind)
	assert.False(t, rep.IsValid())
}

func TestProcessMissingRequiredSurvives(t *testing.T) {
	c, err := New(testConfig(0), nil)
	require.NoError(t, err)

	// nothing in the text resembles an email
	rep := c.Process(context.Background(), inlineDoc("Patient: Juan Perez\n"), mustSchema(t, contactTemplate))

	require.Nil(t, rep.Error)
	assert.False(t, rep.IsValid())
	require.Contains(t, rep.Fields, "email")
	assert.True(t, rep.Fields["email"].Missing())
	require.NotEmpty(t, rep.Unresolved)
	assert.Equal(t, constants.ConflictMissingRequired, rep.Unresolved[0].Kind)
}

func TestStatsAverageQuality(t *testing.T) {
	c, err := New(testConfig(0), nil)
	require.NoError(t, err)
	schema := mustSchema(t, contactTemplate)

	c.Process(context.Background(), inlineDoc(contactDoc), schema)
	c.Process(context.Background(), extract.Document{Text: "x", Format: "WAV"}, schema)

	snap := c.Stats()
	assert.Equal(t, 2, snap.Processed)
	assert.Equal(t, 1, snap.Failed)
	assert.Greater(t, snap.AverageQuality, 0.0)
}
