package relations

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/clinidocs/fieldmapper/internal/reconcile"
	"github.com/clinidocs/fieldmapper/internal/template"
)

// Relationship kinds derived from a template.
type Kind string

const (
	KindHierarchy Kind = "hierarchy"  // parent/child by name-prefix convention
	KindDependsOn Kind = "depends_on" // explicit prerequisite
	KindExcludes  Kind = "excludes"   // mutual exclusion
)

// Relationship links two declared fields.
type Relationship struct {
	Kind Kind
	From string // child / dependent / excluding field
	To   string // parent / prerequisite / excluded field
}

// Set holds every relationship derived from one schema, plus the groups of
// required fields that travel together under a shared prefix.
type Set struct {
	Relationships    []Relationship
	RequiredTogether [][]string
}

// Result reports relationship validation.
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Manager derives and checks relationships among declared fields.
type Manager struct {
	logger *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Analyze derives the relationship set: hierarchy by "parent_child" naming,
// explicit depends_on and excludes declarations, and required-together groups
// of required fields sharing a name prefix.
func (m *Manager) Analyze(schema *template.Schema) Set {
	var set Set
	names := schema.FieldNames()
	declared := map[string]bool{}
	for _, n := range names {
		declared[n] = true
	}

	requiredGroups := map[string][]string{}
	for _, name := range names {
		spec, _ := schema.Spec(name)

		// hierarchy: "contact_phone" is a child of a declared "contact"
		if parent, ok := parentOf(name, declared); ok {
			set.Relationships = append(set.Relationships, Relationship{
				Kind: KindHierarchy, From: name, To: parent,
			})
		}
		for _, dep := range spec.DependsOn {
			if declared[dep] {
				set.Relationships = append(set.Relationships, Relationship{
					Kind: KindDependsOn, From: name, To: dep,
				})
			} else {
				m.logger.Warn("relations.unknown_dependency", "field", name, "depends_on", dep)
			}
		}
		for _, ex := range spec.Excludes {
			if declared[ex] {
				set.Relationships = append(set.Relationships, Relationship{
					Kind: KindExcludes, From: name, To: ex,
				})
			} else {
				m.logger.Warn("relations.unknown_exclusion", "field", name, "excludes", ex)
			}
		}
		if spec.Required {
			if prefix, ok := groupPrefix(name); ok {
				requiredGroups[prefix] = append(requiredGroups[prefix], name)
			}
		}
	}

	prefixes := make([]string, 0, len(requiredGroups))
	for prefix := range requiredGroups {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		if group := requiredGroups[prefix]; len(group) > 1 {
			set.RequiredTogether = append(set.RequiredTogether, group)
		}
	}

	m.logger.Debug("relations.analyzed",
		"relationships", len(set.Relationships),
		"required_groups", len(set.RequiredTogether),
	)
	return set
}

// Validate checks reconciled fields against the relationship set.
// Hierarchy: a present child without its present parent is invalid.
// Dependency: a valued dependent needs its prerequisite valued.
// Exclusion: two excluding fields must not both carry values.
func (m *Manager) Validate(set Set, fields map[string]reconcile.Field) Result {
	res := Result{Valid: true}

	for _, rel := range set.Relationships {
		switch rel.Kind {
		case KindHierarchy:
			if hasValue(fields, rel.From) && !hasValue(fields, rel.To) {
				res.Valid = false
				res.Errors = append(res.Errors,
					"field "+rel.From+" is present without its parent "+rel.To)
			}
		case KindDependsOn:
			if hasValue(fields, rel.From) && !hasValue(fields, rel.To) {
				res.Valid = false
				res.Errors = append(res.Errors,
					"field "+rel.From+" requires "+rel.To+" to have a value")
			}
		case KindExcludes:
			if hasValue(fields, rel.From) && hasValue(fields, rel.To) {
				res.Valid = false
				res.Errors = append(res.Errors,
					"fields "+rel.From+" and "+rel.To+" are mutually exclusive")
			}
		}
	}

	for _, group := range set.RequiredTogether {
		present := 0
		for _, name := range group {
			if hasValue(fields, name) {
				present++
			}
		}
		if present > 0 && present < len(group) {
			res.Warnings = append(res.Warnings,
				"required group "+strings.Join(group, ", ")+" is only partially populated")
		}
	}

	return res
}

// parentOf finds the longest declared prefix of name above an underscore.
func parentOf(name string, declared map[string]bool) (string, bool) {
	idx := strings.LastIndex(name, "_")
	for idx > 0 {
		prefix := name[:idx]
		if declared[prefix] {
			return prefix, true
		}
		idx = strings.LastIndex(prefix, "_")
	}
	return "", false
}

// groupPrefix extracts the group key of a compound name ("contact_phone" ->
// "contact"). Simple names have no group.
func groupPrefix(name string) (string, bool) {
	idx := strings.Index(name, "_")
	if idx <= 0 {
		return "", false
	}
	return name[:idx], true
}

func hasValue(fields map[string]reconcile.Field, name string) bool {
	f, ok := fields[name]
	return ok && !f.Missing()
}
