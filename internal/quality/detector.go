package quality

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/clinidocs/fieldmapper/constants"
	"github.com/clinidocs/fieldmapper/internal/reconcile"
	"github.com/clinidocs/fieldmapper/internal/template"
)

// FieldQuality is the per-field slice of a quality report.
type FieldQuality struct {
	Score  float64 // in [0,1]
	Bucket constants.QualityBucket
}

// Report is the aggregate quality view of one reconciled record.
type Report struct {
	Fields          map[string]FieldQuality
	Aggregate       float64 // mean over fields actually present, in [0,1]
	Issues          []string
	Recommendations []string
}

// Per-field score components: declared-vs-detected type agreement, candidate
// confidence, and a discount when a transformation was required.
const (
	typeAgreeScore    = 1.0
	typeDisagreeScore = 0.5
	transformedScore  = 0.8
	noTransformScore  = 1.0
)

// Detector computes per-field and aggregate quality from reconciliation
// results.
type Detector struct {
	logger *slog.Logger
}

func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// Analyze scores every declared field. Missing fields contribute 0 to
// nothing: they are excluded from the aggregate mean and reported as issues
// instead.
func (d *Detector) Analyze(fields map[string]reconcile.Field, schema *template.Schema) Report {
	rep := Report{Fields: map[string]FieldQuality{}}

	var sum float64
	var present int
	var lowFields, transformedFields, missingFields []string

	for _, name := range schema.FieldNames() {
		f, ok := fields[name]
		if !ok {
			continue // omitted optional field
		}
		spec, _ := schema.Spec(name)

		if f.Missing() {
			rep.Fields[name] = FieldQuality{Score: 0, Bucket: constants.QualityCritical}
			missingFields = append(missingFields, name)
			continue
		}

		typeScore := typeDisagreeScore
		if f.DetectedType == spec.Type {
			typeScore = typeAgreeScore
		}
		transformScore := noTransformScore
		if f.Transformed {
			transformScore = transformedScore
			transformedFields = append(transformedFields, name)
		}
		score := (typeScore + f.Confidence + transformScore) / 3
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}

		bucket := constants.BucketForScore(score)
		rep.Fields[name] = FieldQuality{Score: score, Bucket: bucket}
		if bucket == constants.QualityLow || bucket == constants.QualityCritical {
			lowFields = append(lowFields, name)
		}

		sum += score
		present++
	}

	if present > 0 {
		rep.Aggregate = sum / float64(present)
	}

	sort.Strings(missingFields)
	for _, name := range missingFields {
		rep.Issues = append(rep.Issues, "field "+name+" is missing from the document")
	}
	rep.Recommendations = buildRecommendations(lowFields, transformedFields, missingFields)

	d.logger.Info("quality.analyzed",
		"aggregate", fmt.Sprintf("%.3f", rep.Aggregate),
		"present", present,
		"missing", len(missingFields),
		"low", len(lowFields),
	)
	return rep
}

func buildRecommendations(low, transformed, missing []string) []string {
	var out []string
	sort.Strings(low)
	for _, name := range low {
		out = append(out, "review field "+name+": mapping quality is below the acceptable range")
	}
	sort.Strings(transformed)
	for _, name := range transformed {
		out = append(out, "field "+name+" required a type transformation; verify the source value")
	}
	if len(missing) > 0 {
		out = append(out, "rescan or provide a clearer source document for the missing fields")
	}
	return out
}
