package validation

import (
	"log/slog"

	"github.com/clinidocs/fieldmapper/constants"
	"github.com/clinidocs/fieldmapper/internal/reconcile"
	"github.com/clinidocs/fieldmapper/internal/relations"
	"github.com/clinidocs/fieldmapper/internal/template"
)

// StageResult is one stage's contribution to the pipeline result.
type StageResult struct {
	Stage    constants.ValidationStage
	Valid    bool
	Errors   []string
	Warnings []string
	Critical bool // halts the remaining stages
}

// FieldResult is the per-field view assembled after all stages ran.
type FieldResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Result accumulates across stages. Valid is the AND over executed stages.
type Result struct {
	Valid     bool
	Stages    []StageResult
	PerField  map[string]FieldResult
	Truncated bool // true when a critical error stopped the pipeline early
}

// Errors flattens every stage error.
func (r Result) Errors() []string {
	var out []string
	for _, s := range r.Stages {
		out = append(out, s.Errors...)
	}
	return out
}

// Warnings flattens every stage warning.
func (r Result) Warnings() []string {
	var out []string
	for _, s := range r.Stages {
		out = append(out, s.Warnings...)
	}
	return out
}

// input bundles what every stage sees.
type input struct {
	fields map[string]reconcile.Field
	schema *template.Schema
	relset relations.Set
	// fieldErrors collects per-field errors across stages
	fieldErrors   map[string][]string
	fieldWarnings map[string][]string
}

type stageFunc func(in *input) StageResult

// Pipeline runs the five ordered validation stages over a reconciled record.
// Structure problems make type and content checks meaningless, so the
// cheaper, more fundamental checks run first; a critical error halts the
// remaining stages.
type Pipeline struct {
	relMgr *relations.Manager
	logger *slog.Logger
}

func NewPipeline(relMgr *relations.Manager, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if relMgr == nil {
		relMgr = relations.NewManager(logger)
	}
	return &Pipeline{relMgr: relMgr, logger: logger}
}

// Run executes Structure -> Types -> Content -> Relationships -> Business
// Rules, sharing one accumulating result.
func (p *Pipeline) Run(fields map[string]reconcile.Field, schema *template.Schema, relset relations.Set) Result {
	in := &input{
		fields:        fields,
		schema:        schema,
		relset:        relset,
		fieldErrors:   map[string][]string{},
		fieldWarnings: map[string][]string{},
	}
	stages := []struct {
		name constants.ValidationStage
		fn   stageFunc
	}{
		{constants.StageStructure, stageStructure},
		{constants.StageTypes, stageTypes},
		{constants.StageContent, stageContent},
		{constants.StageRelationships, p.stageRelationships},
		{constants.StageBusinessRules, stageBusinessRules},
	}

	res := Result{Valid: true}
	for _, s := range stages {
		sr := s.fn(in)
		sr.Stage = s.name
		res.Stages = append(res.Stages, sr)
		if !sr.Valid {
			res.Valid = false
		}
		p.logger.Debug("validation.stage",
			"stage", s.name, "valid", sr.Valid,
			"errors", len(sr.Errors), "warnings", len(sr.Warnings),
		)
		if sr.Critical {
			p.logger.Warn("validation.halted", "stage", s.name)
			res.Truncated = true
			break
		}
	}

	res.PerField = assemblePerField(in, schema)
	return res
}

// assemblePerField derives the per-field view and the document-level AND.
func assemblePerField(in *input, schema *template.Schema) map[string]FieldResult {
	out := map[string]FieldResult{}
	for _, name := range schema.FieldNames() {
		if _, present := in.fields[name]; !present {
			continue
		}
		fr := FieldResult{
			Valid:    len(in.fieldErrors[name]) == 0,
			Errors:   in.fieldErrors[name],
			Warnings: in.fieldWarnings[name],
		}
		out[name] = fr
	}
	return out
}

// MarkValidated flips the Validated flag on every field that passed all
// executed stages. Only fully valid fields in a non-truncated run qualify.
func MarkValidated(fields map[string]reconcile.Field, res Result) map[string]reconcile.Field {
	out := make(map[string]reconcile.Field, len(fields))
	for name, f := range fields {
		if !res.Truncated {
			if fr, ok := res.PerField[name]; ok && fr.Valid && !f.Missing() {
				f.Validated = true
			}
		}
		out[name] = f
	}
	return out
}
