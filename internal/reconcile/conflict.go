package reconcile

import (
	"log/slog"
	"sort"

	"github.com/clinidocs/fieldmapper/constants"
	"github.com/clinidocs/fieldmapper/internal/common"
	"github.com/clinidocs/fieldmapper/internal/patterns"
	"github.com/clinidocs/fieldmapper/internal/template"
	"github.com/clinidocs/fieldmapper/internal/transform"
)

// Conflict is a disagreement about one field: multiple candidates proposing
// different values, a type or format clash, or a required field nothing
// matched.
type Conflict struct {
	Field     string
	Kind      constants.ConflictKind
	Spec      template.FieldSpec
	Proposals []patterns.Candidate
}

// ErrorKind maps the conflict onto the processing-error taxonomy so report
// consumers can classify unresolved conflicts alongside stage failures.
func (c Conflict) ErrorKind() common.ErrorKind {
	switch c.Kind {
	case constants.ConflictTypeMismatch:
		return common.KindTypeError
	case constants.ConflictMissingRequired:
		return common.KindMissingField
	case constants.ConflictFormatMismatch:
		return common.KindMappingError
	default:
		return common.KindValidationError
	}
}

// Resolution is the resolver's output. Unresolved conflicts stay visible in
// the final report rather than silently dropped.
type Resolution struct {
	Fields     map[string]Field
	Unresolved []Conflict
	Warnings   []string
}

// coercionAcceptThreshold gates type-mismatch repairs: only a coercion above
// this confidence replaces a value.
const coercionAcceptThreshold = 0.7

// Resolver routes each conflict kind to its strategy.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve applies the kind-specific strategy to every conflict, mutating a
// copy of the reconciled map. The resolved value's confidence never exceeds
// its best contributing source unless an explicit transformation succeeded.
func (r *Resolver) Resolve(conflicts []Conflict, fields map[string]Field, schema *template.Schema) Resolution {
	res := Resolution{Fields: map[string]Field{}}
	for k, v := range fields {
		res.Fields[k] = v
	}

	for _, c := range conflicts {
		switch c.Kind {
		case constants.ConflictTypeMismatch:
			r.resolveTypeMismatch(c, &res)
		case constants.ConflictMissingRequired:
			r.resolveMissingRequired(c, &res, schema)
		case constants.ConflictValidationFail:
			r.resolveDisagreement(c, &res)
		case constants.ConflictFormatMismatch:
			// format clashes are warnings, not hard failures
			res.Warnings = append(res.Warnings, "field "+c.Field+" does not match its declared format")
		}
	}

	r.logger.Info("conflicts.resolved",
		"total", len(conflicts),
		"unresolved", len(res.Unresolved),
		"warnings", len(res.Warnings),
	)
	return res
}

// resolveTypeMismatch retries the coercion across all proposals, best
// confidence first, accepting only a coercion above the threshold.
func (r *Resolver) resolveTypeMismatch(c Conflict, res *Resolution) {
	props := sortedByConfidence(c.Proposals)
	for _, p := range props {
		out := transform.Transform(p.Value, c.Spec.Type)
		if out.Value == nil || out.Confidence <= coercionAcceptThreshold {
			continue
		}
		res.Fields[c.Field] = Field{
			Value:        out.Value,
			Confidence:   p.Confidence,
			Source:       p.ID,
			Transformed:  true,
			DetectedType: p.Type,
		}
		r.logger.Debug("conflict.coerced", "field", c.Field, "from", p.Value)
		return
	}
	r.keepUnresolved(c, res)
}

// resolveMissingRequired leans on inference; a required field that cannot be
// inferred surfaces as unresolved.
func (r *Resolver) resolveMissingRequired(c Conflict, res *Resolution, schema *template.Schema) {
	// the reconciler's own inference pass may have filled the field already
	if f, ok := res.Fields[c.Field]; ok && !f.Missing() {
		return
	}
	inferred := InferMissing(res.Fields, schema)
	if f, ok := inferred[c.Field]; ok {
		res.Fields[c.Field] = f
		r.logger.Debug("conflict.inferred", "field", c.Field)
		return
	}
	r.keepUnresolved(c, res)
}

// resolveDisagreement prefers the proposal with the highest effective
// confidence, where a clean transformation can raise a lower-confidence
// proposal above a higher one whose value does not coerce.
func (r *Resolver) resolveDisagreement(c Conflict, res *Resolution) {
	best := Field{}
	bestEff := -1.0
	for _, p := range sortedByConfidence(c.Proposals) {
		out := transform.Transform(p.Value, c.Spec.Type)
		if out.Value == nil {
			continue
		}
		eff := p.Confidence * out.Confidence
		if eff > bestEff {
			bestEff = eff
			best = Field{
				Value:        out.Value,
				Confidence:   p.Confidence * out.Confidence,
				Source:       p.ID,
				Transformed:  out.Confidence < transform.ConfExact || p.Type != c.Spec.Type,
				DetectedType: p.Type,
			}
		}
	}
	if bestEff < 0 {
		r.keepUnresolved(c, res)
		return
	}
	res.Fields[c.Field] = best
}

func (r *Resolver) keepUnresolved(c Conflict, res *Resolution) {
	res.Unresolved = append(res.Unresolved, c)
	r.logger.Warn("conflict.unresolved", "field", c.Field, "kind", c.Kind, "error_kind", c.ErrorKind())
}

func sortedByConfidence(props []patterns.Candidate) []patterns.Candidate {
	out := make([]patterns.Candidate, len(props))
	copy(out, props)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Position < out[j].Position
	})
	return out
}
