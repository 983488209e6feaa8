package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinidocs/fieldmapper/constants"
	"github.com/clinidocs/fieldmapper/internal/reconcile"
	"github.com/clinidocs/fieldmapper/internal/relations"
	"github.com/clinidocs/fieldmapper/internal/template"
)

const intakeTemplate = `
name: intake
fields:
  full_name:
    type: string
    required: true
    validators:
      - min_length: 3
        max_length: 120
  dob:
    type: date
    required: true
  age:
    type: integer
  blood_type:
    type: string
    allowed_values: [A+, A-, B+, B-, AB+, AB-, O+, O-]
  insurance_id:
    type: string
    depends_on: [insurance_provider]
  insurance_provider:
    type: string
`

func mustSchema(t *testing.T, yaml string) *template.Schema {
	t.Helper()
	s, err := template.Load([]byte(yaml))
	require.NoError(t, err)
	return s
}

func valued(v any) reconcile.Field {
	return reconcile.Field{Value: v, Confidence: 0.9, Source: "test/x"}
}

func runPipeline(t *testing.T, schema *template.Schema, fields map[string]reconcile.Field) Result {
	t.Helper()
	mgr := relations.NewManager(nil)
	return NewPipeline(mgr, nil).Run(fields, schema, mgr.Analyze(schema))
}

func cleanRecord() map[string]reconcile.Field {
	return map[string]reconcile.Field{
		"full_name":  valued("Juan Perez"),
		"dob":        valued(time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)),
		"age":        valued(int64(36)),
		"blood_type": valued("O+"),
	}
}

func TestPipelineValidRecord(t *testing.T) {
	schema := mustSchema(t, intakeTemplate)
	res := runPipeline(t, schema, cleanRecord())

	assert.True(t, res.Valid)
	assert.False(t, res.Truncated)
	require.Len(t, res.Stages, len(constants.ValidationStages))
	for i, sr := range res.Stages {
		assert.Equal(t, constants.ValidationStages[i], sr.Stage)
		assert.True(t, sr.Valid, "stage %s", sr.Stage)
	}
	for name, fr := range res.PerField {
		assert.True(t, fr.Valid, "field %s", name)
	}
}

func TestPipelineAbsentRequiredKeyIsCritical(t *testing.T) {
	schema := mustSchema(t, intakeTemplate)
	fields := cleanRecord()
	delete(fields, "dob")

	res := runPipeline(t, schema, fields)

	assert.False(t, res.Valid)
	assert.True(t, res.Truncated)
	// only the structure stage ran
	require.Len(t, res.Stages, 1)
	assert.Equal(t, constants.StageStructure, res.Stages[0].Stage)
	assert.True(t, res.Stages[0].Critical)
}

func TestPipelineMissingValuePassesStructure(t *testing.T) {
	// a required field present with source "missing" is structurally fine;
	// business rules flag the empty value instead
	schema := mustSchema(t, intakeTemplate)
	fields := cleanRecord()
	fields["dob"] = reconcile.Field{Source: constants.SourceMissing}

	res := runPipeline(t, schema, fields)

	assert.False(t, res.Valid)
	assert.False(t, res.Truncated)
	require.Len(t, res.Stages, len(constants.ValidationStages))
	last := res.Stages[len(res.Stages)-1]
	assert.Equal(t, constants.StageBusinessRules, last.Stage)
	require.Len(t, last.Errors, 1)
	assert.Contains(t, last.Errors[0], "dob")
}

func TestPipelineTypeStageCatchesWrongGoType(t *testing.T) {
	schema := mustSchema(t, intakeTemplate)
	fields := cleanRecord()
	fields["age"] = valued("thirty-six")

	res := runPipeline(t, schema, fields)

	assert.False(t, res.Valid)
	types := res.Stages[1]
	assert.Equal(t, constants.StageTypes, types.Stage)
	require.Len(t, types.Errors, 1)
	assert.Contains(t, types.Errors[0], "age")

	fr := res.PerField["age"]
	assert.False(t, fr.Valid)
}

func TestPipelineContentStage(t *testing.T) {
	schema := mustSchema(t, intakeTemplate)

	t.Run("allowed values", func(t *testing.T) {
		fields := cleanRecord()
		fields["blood_type"] = valued("Z+")
		res := runPipeline(t, schema, fields)
		assert.False(t, res.Valid)
		assert.False(t, res.PerField["blood_type"].Valid)
	})

	t.Run("min length", func(t *testing.T) {
		fields := cleanRecord()
		fields["full_name"] = valued("Jo")
		res := runPipeline(t, schema, fields)
		assert.False(t, res.Valid)
		require.NotEmpty(t, res.PerField["full_name"].Errors)
		assert.Contains(t, res.PerField["full_name"].Errors[0], "shorter")
	})
}

func TestPipelineRelationshipStage(t *testing.T) {
	schema := mustSchema(t, intakeTemplate)
	fields := cleanRecord()
	fields["insurance_id"] = valued("INS-99")

	res := runPipeline(t, schema, fields)

	assert.False(t, res.Valid)
	rel := res.Stages[3]
	assert.Equal(t, constants.StageRelationships, rel.Stage)
	require.NotEmpty(t, rel.Errors)
	assert.Contains(t, rel.Errors[0], "insurance_provider")
	assert.False(t, res.PerField["insurance_id"].Valid)
}

func TestPipelineBusinessRules(t *testing.T) {
	schema := mustSchema(t, intakeTemplate)

	t.Run("future birth date", func(t *testing.T) {
		fields := cleanRecord()
		fields["dob"] = valued(time.Now().UTC().AddDate(1, 0, 0))
		res := runPipeline(t, schema, fields)
		assert.False(t, res.Valid)
		require.NotEmpty(t, res.PerField["dob"].Errors)
		assert.Contains(t, res.PerField["dob"].Errors[0], "future")
	})

	t.Run("implausible age", func(t *testing.T) {
		fields := cleanRecord()
		fields["age"] = valued(int64(200))
		res := runPipeline(t, schema, fields)
		assert.False(t, res.Valid)
		require.NotEmpty(t, res.PerField["age"].Errors)
		assert.Contains(t, res.PerField["age"].Errors[0], "implausible")
	})
}

func TestPipelineUnknownFieldWarns(t *testing.T) {
	schema := mustSchema(t, intakeTemplate)
	fields := cleanRecord()
	fields["scribbles"] = valued("???")

	res := runPipeline(t, schema, fields)

	assert.True(t, res.Valid)
	require.NotEmpty(t, res.Stages[0].Warnings)
	assert.Contains(t, res.Stages[0].Warnings[0], "scribbles")
}

func TestMarkValidated(t *testing.T) {
	schema := mustSchema(t, intakeTemplate)
	fields := cleanRecord()
	fields["age"] = valued("thirty-six") // fails the type stage

	res := runPipeline(t, schema, fields)
	out := MarkValidated(fields, res)

	assert.True(t, out["full_name"].Validated)
	assert.True(t, out["dob"].Validated)
	assert.False(t, out["age"].Validated)
	// input untouched
	assert.False(t, fields["full_name"].Validated)
}

func TestMarkValidatedSkipsTruncatedRun(t *testing.T) {
	schema := mustSchema(t, intakeTemplate)
	fields := cleanRecord()
	delete(fields, "dob")

	res := runPipeline(t, schema, fields)
	require.True(t, res.Truncated)

	out := MarkValidated(fields, res)
	for name, f := range out {
		assert.False(t, f.Validated, "field %s", name)
	}
}
