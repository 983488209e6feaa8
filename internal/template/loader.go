package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/clinidocs/fieldmapper/constants"
	"github.com/clinidocs/fieldmapper/internal/common"
)

// BuildTemplateJSONSchema returns the JSON-Schema (draft 2020-12 subset) every
// template document must satisfy, as a generic map. Validated locally before a
// Schema is built; optional metadata passes through untouched.
func BuildTemplateJSONSchema() map[string]any {
	typeEnum := make([]any, 0, len(constants.FieldTypes))
	for _, t := range constants.FieldTypes {
		typeEnum = append(typeEnum, string(t))
	}
	fieldSpec := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type":           map[string]any{"type": "string", "enum": typeEnum},
			"required":       map[string]any{"type": "boolean"},
			"format":         map[string]any{"type": "string"},
			"pattern":        map[string]any{"type": "string"},
			"allowed_values": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"validators":     map[string]any{"type": "array"},
			"depends_on":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"excludes":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required":             []any{"type"},
		"additionalProperties": false,
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"fields": map[string]any{
				"type":                 "object",
				"minProperties":        1,
				"additionalProperties": fieldSpec,
			},
			"metadata": map[string]any{"type": "object"},
		},
		"required": []any{"fields"},
	}
}

// ValidateAgainstSchema validates a decoded template document against schemaMap.
func ValidateAgainstSchema(schemaMap map[string]any, doc any) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("template.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("template.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("template does not match schema: %w", err)
	}
	return nil
}

// Load parses a template document (YAML or JSON; JSON is a YAML subset) and
// builds an immutable Schema. Field order follows the document.
func Load(data []byte) (*Schema, error) {
	// Decode to a generic document first so the JSON-Schema check sees the raw
	// shape, not our struct defaults.
	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if _, ok := generic["fields"]; !ok {
		return nil, fmt.Errorf("%w: missing top-level fields map", common.ErrInvalidTemplate)
	}
	// yaml decodes into types json can't always re-marshal; round-trip through
	// JSON-compatible values for the schema validator.
	jsonable, err := toJSONValue(generic)
	if err != nil {
		return nil, fmt.Errorf("normalize template: %w", err)
	}
	if err := ValidateAgainstSchema(BuildTemplateJSONSchema(), jsonable); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidTemplate, err)
	}

	schema := &Schema{fields: map[string]FieldSpec{}}
	if name, ok := generic["name"].(string); ok {
		schema.Name = name
	}
	if meta, ok := generic["metadata"].(map[string]any); ok {
		schema.Metadata = meta
	}

	// Re-walk the fields map in document order.
	var ordered struct {
		Fields yaml.MapSlice `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &ordered); err != nil {
		return nil, fmt.Errorf("parse template fields: %w", err)
	}
	for _, item := range ordered.Fields {
		name, ok := item.Key.(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: field names must be non-empty strings", common.ErrInvalidTemplate)
		}
		raw, err := yaml.Marshal(item.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		var spec FieldSpec
		if err := yaml.Unmarshal(raw, &spec); err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		if constants.ParseFieldType(string(spec.Type)) == "" {
			return nil, fmt.Errorf("%w: field %q has unknown type %q", common.ErrInvalidTemplate, name, spec.Type)
		}
		schema.fields[name] = spec
		schema.order = append(schema.order, name)
	}
	if len(schema.order) == 0 {
		return nil, fmt.Errorf("%w: fields map is empty", common.ErrInvalidTemplate)
	}
	return schema, nil
}

// LoadFile reads and parses a template from path.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return Load(data)
}

// toJSONValue rewrites YAML-decoded values into JSON-compatible ones
// (map keys to strings, integers preserved).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
