package reconcile

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/clinidocs/fieldmapper/constants"
	"github.com/clinidocs/fieldmapper/internal/patterns"
	"github.com/clinidocs/fieldmapper/internal/template"
	"github.com/clinidocs/fieldmapper/internal/transform"
)

// Field is the final per-field record of a processing run. Created here,
// possibly mutated by the conflict resolver, consumed read-only afterward.
type Field struct {
	Value        any
	Confidence   float64 // in [0,1]
	Source       string  // candidate ID, "inferred", or "missing"
	Transformed  bool
	Validated    bool
	DetectedType constants.FieldType
}

// Missing reports whether the field carries no usable value.
func (f Field) Missing() bool {
	return f.Value == nil || f.Source == constants.SourceMissing
}

// Stats counts reconciliation outcomes for quality scoring.
type Stats struct {
	Matched         int
	Missing         int
	Inferred        int
	OmittedOptional int
}

// Outcome bundles the reconciled map with the conflicts and warnings the
// matching pass produced.
type Outcome struct {
	Fields    map[string]Field
	Stats     Stats
	Conflicts []Conflict
	Warnings  []string
}

// Match-scoring weights: type compatibility, candidate confidence, and
// name similarity, in that order of importance.
const (
	weightType       = 0.4
	weightConfidence = 0.3
	weightName       = 0.3

	// MatchThreshold is the minimum combined score for a candidate to claim a
	// declared field.
	MatchThreshold = 0.7
)

// Reconciler matches a template's declared fields against detected candidates.
type Reconciler struct {
	threshold float64
	logger    *slog.Logger
}

func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{threshold: MatchThreshold, logger: logger}
}

// Reconcile produces exactly one Field per declared field. Every required
// field appears in the output even when nothing matched (value nil, source
// "missing"). Unmatched optional fields are omitted with a warning.
func (r *Reconciler) Reconcile(candidates []patterns.Candidate, schema *template.Schema) Outcome {
	out := Outcome{Fields: map[string]Field{}}

	for _, name := range schema.FieldNames() {
		spec, _ := schema.Spec(name)

		scored := r.scoreCandidates(name, spec, candidates)
		if len(scored) == 0 {
			if spec.Required {
				out.Fields[name] = Field{Source: constants.SourceMissing, DetectedType: spec.Type}
				out.Stats.Missing++
				out.Conflicts = append(out.Conflicts, Conflict{
					Field: name,
					Kind:  constants.ConflictMissingRequired,
					Spec:  spec,
				})
			} else {
				out.Stats.OmittedOptional++
				out.Warnings = append(out.Warnings, "optional field not matched: "+name)
			}
			continue
		}

		best := scored[0]
		field, conflict := r.adopt(name, spec, best.cand)
		out.Fields[name] = field
		if field.Missing() {
			out.Stats.Missing++
		} else {
			out.Stats.Matched++
		}
		if conflict != nil {
			out.Conflicts = append(out.Conflicts, *conflict)
		}

		// disagreeing runners-up above the threshold are a conflict for the
		// resolver, not a silent drop
		if disagreement := collectDisagreement(scored); disagreement != nil {
			out.Conflicts = append(out.Conflicts, Conflict{
				Field:     name,
				Kind:      classifyDisagreement(spec, disagreement),
				Spec:      spec,
				Proposals: disagreement,
			})
		}
	}

	// required fields the matcher flagged as missing get one inference pass
	inferred := InferMissing(out.Fields, schema)
	for name, f := range inferred {
		out.Fields[name] = f
		out.Stats.Missing--
		out.Stats.Inferred++
	}

	r.logger.Info("reconcile.done",
		"matched", out.Stats.Matched,
		"missing", out.Stats.Missing,
		"inferred", out.Stats.Inferred,
		"omitted_optional", out.Stats.OmittedOptional,
		"conflicts", len(out.Conflicts),
	)
	return out
}

type scoredCandidate struct {
	cand  patterns.Candidate
	score float64
}

// scoreCandidates returns the candidates whose match score clears the
// threshold, best first. Ties break on position so runs stay deterministic.
func (r *Reconciler) scoreCandidates(name string, spec template.FieldSpec, cands []patterns.Candidate) []scoredCandidate {
	var out []scoredCandidate
	for _, c := range cands {
		s := matchScore(name, spec, c)
		if s >= r.threshold {
			out = append(out, scoredCandidate{cand: c, score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].cand.Position < out[j].cand.Position
	})
	return out
}

// matchScore combines type compatibility, candidate confidence and name
// similarity into one score in [0,1].
func matchScore(name string, spec template.FieldSpec, c patterns.Candidate) float64 {
	var typeCompat float64
	switch {
	case c.Type == spec.Type:
		typeCompat = 1.0
	case transform.Validates(c.Value, spec.Type):
		typeCompat = 0.5
	}
	return weightType*typeCompat + weightConfidence*c.Confidence + weightName*nameSimilarity(name, c.Label)
}

// adopt turns the winning candidate into a Field, transforming its raw value
// into the declared type. A failed transformation demotes the field to
// missing and raises a type conflict.
func (r *Reconciler) adopt(name string, spec template.FieldSpec, c patterns.Candidate) (Field, *Conflict) {
	res := transform.Transform(c.Value, spec.Type)
	if res.Value == nil {
		r.logger.Warn("reconcile.transform_failed", "field", name, "value", c.Value, "type", spec.Type)
		return Field{Source: constants.SourceMissing, DetectedType: c.Type}, &Conflict{
			Field:     name,
			Kind:      constants.ConflictTypeMismatch,
			Spec:      spec,
			Proposals: []patterns.Candidate{c},
		}
	}

	field := Field{
		Value:        res.Value,
		Confidence:   c.Confidence,
		Source:       c.ID,
		Transformed:  res.Confidence < transform.ConfExact || c.Type != spec.Type,
		DetectedType: c.Type,
	}

	if spec.Pattern != "" && !matchesPattern(c.Value, spec.Pattern) {
		return field, &Conflict{
			Field:     name,
			Kind:      constants.ConflictFormatMismatch,
			Spec:      spec,
			Proposals: []patterns.Candidate{c},
		}
	}
	return field, nil
}

func matchesPattern(value, pattern string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return true // an uncompilable declared pattern constrains nothing
	}
	return re.MatchString(strings.TrimSpace(value))
}

// collectDisagreement returns all proposals when the above-threshold
// candidates carry more than one distinct value.
func collectDisagreement(scored []scoredCandidate) []patterns.Candidate {
	if len(scored) < 2 {
		return nil
	}
	distinct := map[string]bool{}
	var props []patterns.Candidate
	for _, s := range scored {
		distinct[s.cand.Value] = true
		props = append(props, s.cand)
	}
	if len(distinct) < 2 {
		return nil
	}
	return props
}

// classifyDisagreement tags a multi-candidate conflict with its kind.
func classifyDisagreement(spec template.FieldSpec, props []patterns.Candidate) constants.ConflictKind {
	for _, p := range props {
		if !transform.Validates(p.Value, spec.Type) {
			return constants.ConflictTypeMismatch
		}
	}
	if spec.Pattern != "" {
		for _, p := range props {
			if !matchesPattern(p.Value, spec.Pattern) {
				return constants.ConflictFormatMismatch
			}
		}
	}
	return constants.ConflictValidationFail
}
