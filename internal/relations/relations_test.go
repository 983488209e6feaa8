package relations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinidocs/fieldmapper/internal/reconcile"
	"github.com/clinidocs/fieldmapper/internal/template"
)

const insuranceTemplate = `
name: intake
fields:
  contact:
    type: string
  contact_phone:
    type: string
    required: true
  contact_email:
    type: string
    required: true
  insurance_id:
    type: string
    depends_on: [insurance_provider]
  insurance_provider:
    type: string
    excludes: [self_pay]
  self_pay:
    type: boolean
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

func TestAnalyzeDerivesRelationships(t *testing.T) {
	set := NewManager(nil).Analyze(mustSchema(t, insuranceTemplate))

	kinds := map[Kind][]Relationship{}
	for _, r := range set.Relationships {
		kinds[r.Kind] = append(kinds[r.Kind], r)
	}

	require.Len(t, kinds[KindHierarchy], 2)
	assert.Equal(t, "contact", kinds[KindHierarchy][0].To)

	require.Len(t, kinds[KindDependsOn], 1)
	assert.Equal(t, "insurance_id", kinds[KindDependsOn][0].From)
	assert.Equal(t, "insurance_provider", kinds[KindDependsOn][0].To)

	require.Len(t, kinds[KindExcludes], 1)
	assert.Equal(t, "self_pay", kinds[KindExcludes][0].To)

	// contact_phone + contact_email form a required group
	require.Len(t, set.RequiredTogether, 1)
	assert.ElementsMatch(t, []string{"contact_phone", "contact_email"}, set.RequiredTogether[0])
}

func TestAnalyzeIgnoresUnknownTargets(t *testing.T) {
	set := NewManager(nil).Analyze(mustSchema(t, `
name: t
fields:
  plan_code:
    type: string
    depends_on: [nonexistent]
`))
	assert.Empty(t, set.Relationships)
}

func TestValidateChildWithoutParent(t *testing.T) {
	m := NewManager(nil)
	set := m.Analyze(mustSchema(t, insuranceTemplate))

	res := m.Validate(set, map[string]reconcile.Field{
		"contact_phone": valued("555-1234"),
	})
	assert.False(t, res.Valid)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "contact_phone")
	assert.Contains(t, res.Errors[0], "contact")
}

func TestValidateDependencySatisfied(t *testing.T) {
	m := NewManager(nil)
	set := m.Analyze(mustSchema(t, insuranceTemplate))

	res := m.Validate(set, map[string]reconcile.Field{
		"contact":            valued("Juan Perez"),
		"contact_phone":      valued("555-1234"),
		"contact_email":      valued("juan@example.com"),
		"insurance_id":       valued("INS-99"),
		"insurance_provider": valued("acme-health"),
	})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidateDependencyMissingPrerequisite(t *testing.T) {
	m := NewManager(nil)
	set := m.Analyze(mustSchema(t, insuranceTemplate))

	res := m.Validate(set, map[string]reconcile.Field{
		"insurance_id": valued("INS-99"),
	})
	assert.False(t, res.Valid)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "insurance_provider")
}

func TestValidateMutualExclusion(t *testing.T) {
	m := NewManager(nil)
	set := m.Analyze(mustSchema(t, insuranceTemplate))

	res := m.Validate(set, map[string]reconcile.Field{
		"insurance_provider": valued("acme-health"),
		"self_pay":           valued(true),
	})
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "fields insurance_provider and self_pay are mutually exclusive")
}

func TestValidatePartialRequiredGroupWarns(t *testing.T) {
	m := NewManager(nil)
	set := m.Analyze(mustSchema(t, insuranceTemplate))

	res := m.Validate(set, map[string]reconcile.Field{
		"contact":       valued("Juan Perez"),
		"contact_phone": valued("555-1234"),
	})
	// a partial group warns but does not invalidate by itself
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "contact_phone")
	assert.Contains(t, res.Warnings[0], "contact_email")
}

func TestValidateMissingFieldsDoNotTrigger(t *testing.T) {
	m := NewManager(nil)
	set := m.Analyze(mustSchema(t, insuranceTemplate))

	// absent and "missing" dependents impose nothing
	res := m.Validate(set, map[string]reconcile.Field{
		"insurance_id": {Source: "missing"},
	})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}
