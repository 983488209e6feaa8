package constants

import "strings"

// FieldType is the semantic type a template may declare for a field.
type FieldType string

// Stable values (templates store these exact strings).
const (
	TypeString   FieldType = "string"
	TypeInteger  FieldType = "integer"
	TypeFloat    FieldType = "float"
	TypeDate     FieldType = "date"
	TypeBoolean  FieldType = "boolean"
	TypeRelation FieldType = "relation"
)

// FieldTypes holds every declarable field type, in declaration order.
var FieldTypes = []FieldType{TypeString, TypeInteger, TypeFloat, TypeDate, TypeBoolean, TypeRelation}

// ParseFieldType normalizes and validates a declared type string.
// Unknown types map to "" so callers can reject them explicitly.
func ParseFieldType(s string) FieldType {
	t := FieldType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range FieldTypes {
		if t == known {
			return known
		}
	}
	return ""
}
