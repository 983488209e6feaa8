package patterns

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/clinidocs/fieldmapper/constants"
)

// Pattern is one named, compiled field pattern inside a category. Order
// matters: within a category the first pattern that matches a field label
// wins.
type Pattern struct {
	Name     string
	Category string
	Type     constants.FieldType
	re       *regexp.Regexp
}

// Library holds the ordered pattern lists per category. Data-driven: the
// built-in tables can be replaced wholesale from a YAML file so they are
// testable and extensible independently of the matching engine.
type Library struct {
	byCategory map[string][]Pattern
}

// patternDef is the on-disk shape of one pattern table entry.
type patternDef struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Type    string `yaml:"type"`
}

type libraryDoc struct {
	Categories map[string][]patternDef `yaml:"categories"`
}

// defaultTables mirrors the shipped pattern configuration. Expressions are
// deliberately permissive; the detector's confidence model and the type
// validators downstream do the narrowing.
var defaultTables = map[string][]patternDef{
	constants.CategoryIdentity: {
		{Name: "full_name", Pattern: `(?i)(?:name|nombre|patient|paciente)[ \t]*[:\-][ \t]*([A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(?:[ \t]+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+)+)`, Type: "string"},
		{Name: "id_number", Pattern: `(?i)(?:id|identification|expediente|record)[ \t]*(?:no\.?|#|number)?[ \t]*[:\-][ \t]*([A-Z0-9][A-Z0-9\-]{3,})`, Type: "string"},
	},
	constants.CategoryContact: {
		{Name: "phone", Pattern: `(?:\+?\d{1,3}[\s.-]?)?(?:\(\d{2,3}\)[\s.-]?)?\d{3}[\s.-]?\d{3,4}(?:[\s.-]?\d{2,4})?`, Type: "string"},
		{Name: "email", Pattern: `[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`, Type: "string"},
		{Name: "address", Pattern: `(?i)(?:address|direcci[oó]n|domicilio)[ \t]*[:\-][ \t]*(.+)`, Type: "string"},
	},
	constants.CategoryTemporal: {
		{Name: "date_iso", Pattern: `\b\d{4}-\d{2}-\d{2}\b`, Type: "date"},
		{Name: "date_slash", Pattern: `\b\d{1,2}/\d{1,2}/\d{4}\b`, Type: "date"},
		{Name: "date_long", Pattern: `\b\d{1,2}\s+(?:de\s+)?[A-Za-z]+,?\s+(?:de\s+)?\d{4}\b`, Type: "date"},
	},
	constants.CategoryMedical: {
		{Name: "blood_type", Pattern: `\b(?:A|B|AB|O)[+\-]\b`, Type: "string"},
		{Name: "weight", Pattern: `(?i)(?:weight|peso)[ \t]*[:\-]?[ \t]*(\d{1,3}(?:\.\d{1,2})?)[ \t]*(?:kg|kgs|lb|lbs)?`, Type: "float"},
		{Name: "height", Pattern: `(?i)(?:height|estatura|talla)[ \t]*[:\-]?[ \t]*(\d{1,3}(?:\.\d{1,2})?)[ \t]*(?:cm|m)?`, Type: "float"},
		{Name: "age", Pattern: `(?i)(?:age|edad)[ \t]*[:\-]?[ \t]*(\d{1,3})\b`, Type: "integer"},
	},
	constants.CategoryFinancial: {
		{Name: "amount", Pattern: `(?:[$£€]\s?)?\b\d{1,3}(?:,\d{3})*(?:\.\d{2})\b|\b\d+\.\d{2}\b`, Type: "float"},
		{Name: "currency_code", Pattern: `\b(?:USD|EUR|GBP|MXN|CAD|AUD)\b`, Type: "string"},
	},
}

// DefaultLibrary compiles the built-in pattern tables.
func DefaultLibrary() *Library {
	lib, err := build(defaultTables)
	if err != nil {
		// built-in tables are compile-time constants; a bad expression is a
		// programming error, not an input error
		panic(fmt.Sprintf("built-in pattern tables invalid: %v", err))
	}
	return lib
}

// LoadLibrary reads pattern tables from a YAML file, replacing the defaults.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern tables: %w", err)
	}
	var doc libraryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse pattern tables: %w", err)
	}
	if len(doc.Categories) == 0 {
		return nil, fmt.Errorf("pattern tables: no categories defined")
	}
	return build(doc.Categories)
}

func build(tables map[string][]patternDef) (*Library, error) {
	lib := &Library{byCategory: map[string][]Pattern{}}
	for cat, defs := range tables {
		for _, def := range defs {
			if def.Name == "" || def.Pattern == "" {
				return nil, fmt.Errorf("category %q: pattern entries need name and pattern", cat)
			}
			ft := constants.ParseFieldType(def.Type)
			if ft == "" {
				ft = constants.TypeString
			}
			re, err := regexp.Compile(def.Pattern)
			if err != nil {
				return nil, fmt.Errorf("category %q pattern %q: %w", cat, def.Name, err)
			}
			lib.byCategory[cat] = append(lib.byCategory[cat], Pattern{
				Name:     def.Name,
				Category: cat,
				Type:     ft,
				re:       re,
			})
		}
	}
	return lib, nil
}

// FieldHint carries a declared format from a template field together with the
// field's semantic type, so the format can reach the patterns able to produce
// its candidates.
type FieldHint struct {
	Format string
	Type   constants.FieldType
}

// HintsByLabel rekeys field-level hints onto pattern labels. A field named
// exactly like a pattern label pins its format to that label; any other hint
// fans out to every pattern sharing the field's semantic type. Formats that do
// not describe a pattern's matches are harmless: the detector only rewards a
// format that actually matches the candidate value.
func (l *Library) HintsByLabel(byField map[string]FieldHint) map[string][]string {
	if len(byField) == 0 {
		return nil
	}
	known := map[string]bool{}
	for _, cat := range l.Categories() {
		for _, p := range l.Patterns(cat) {
			known[p.Name] = true
		}
	}

	names := make([]string, 0, len(byField))
	for name := range byField {
		names = append(names, name)
	}
	sort.Strings(names)

	out := map[string][]string{}
	for _, name := range names {
		hint := byField[name]
		if hint.Format == "" {
			continue
		}
		if known[name] {
			out[name] = append(out[name], hint.Format)
			continue
		}
		for _, cat := range l.Categories() {
			for _, p := range l.Patterns(cat) {
				if p.Type == hint.Type {
					out[p.Name] = append(out[p.Name], hint.Format)
				}
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Patterns returns the ordered pattern list for a category.
func (l *Library) Patterns(category string) []Pattern {
	return l.byCategory[category]
}

// Categories returns the categories with at least one pattern, in canonical
// scan order first, then any extras.
func (l *Library) Categories() []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range constants.PatternCategories {
		if len(l.byCategory[c]) > 0 {
			out = append(out, c)
			seen[c] = true
		}
	}
	var extras []string
	for c := range l.byCategory {
		if !seen[c] {
			extras = append(extras, c)
		}
	}
	sort.Strings(extras)
	return append(out, extras...)
}
