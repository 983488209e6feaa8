package template

import (
	"github.com/clinidocs/fieldmapper/constants"
)

// ValidatorRule is one declarative content rule attached to a field.
// Zero-valued pointers mean "not constrained".
type ValidatorRule struct {
	MinLength *int     `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength *int     `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Min       *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// FieldSpec declares one expected field: its semantic type, whether it is
// required, and its optional format, rules and relationships.
type FieldSpec struct {
	Type          constants.FieldType `yaml:"type" json:"type"`
	Required      bool                `yaml:"required" json:"required"`
	Format        string              `yaml:"format,omitempty" json:"format,omitempty"`
	Pattern       string              `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	AllowedValues []string            `yaml:"allowed_values,omitempty" json:"allowed_values,omitempty"`
	Validators    []ValidatorRule     `yaml:"validators,omitempty" json:"validators,omitempty"`
	DependsOn     []string            `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Excludes      []string            `yaml:"excludes,omitempty" json:"excludes,omitempty"`
}

// Schema is a loaded template: an ordered mapping of field name -> FieldSpec.
// Immutable once loaded; the engine only reads it.
type Schema struct {
	Name     string
	fields   map[string]FieldSpec
	order    []string
	Metadata map[string]any // optional template metadata, passed through untouched
}

// FieldNames returns the declared field names in template order.
func (s *Schema) FieldNames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Spec returns the FieldSpec for name.
func (s *Schema) Spec(name string) (FieldSpec, bool) {
	spec, ok := s.fields[name]
	return spec, ok
}

// Len returns the number of declared fields.
func (s *Schema) Len() int { return len(s.order) }

// RequiredFields returns the required field names in template order.
func (s *Schema) RequiredFields() []string {
	var out []string
	for _, name := range s.order {
		if s.fields[name].Required {
			out = append(out, name)
		}
	}
	return out
}

// Fingerprint is a stable identity string for cache keying: the template name
// plus every field name and type in order.
func (s *Schema) Fingerprint() string {
	fp := s.Name
	for _, name := range s.order {
		fp += "|" + name + ":" + string(s.fields[name].Type)
	}
	return fp
}
