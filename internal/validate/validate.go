// Package validate checks raw operation input against per-table,
// per-operation schemas and normalizes it into the canonical form the
// planners consume.
//
// Validation is structural: allowed top-level keys, required keys, known
// field names, and the shape of select/include/orderBy subtrees. Failures
// carry the path to the offending entry. Nested relation payloads are
// validated by the planners, which know the relation context.
package validate

import (
	"fmt"

	"github.com/ebb-sync/ebb/internal/schema"
)

// Kind is the operation kind a schema validates.
type Kind string

const (
	Create     Kind = "create"
	CreateMany Kind = "createMany"
	FindUnique Kind = "findUnique"
	FindFirst  Kind = "findFirst"
	FindMany   Kind = "findMany"
	Update     Kind = "update"
	UpdateMany Kind = "updateMany"
	Upsert     Kind = "upsert"
	Delete     Kind = "delete"
	DeleteMany Kind = "deleteMany"
	Sync       Kind = "sync"
)

// Error is a validation failure with a path-qualified message.
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

func errAt(path, format string, args ...any) error {
	return &Error{Path: path, Message: fmt.Sprintf(format, args...)}
}

// Schema validates one operation kind against one table.
type Schema struct {
	Kind  Kind
	Table *schema.Table

	allowed  map[string]bool
	required []string
}

var kindKeys = map[Kind]struct {
	allowed  []string
	required []string
}{
	Create:     {allowed: []string{"data", "select", "include"}, required: []string{"data"}},
	CreateMany: {allowed: []string{"data"}, required: []string{"data"}},
	FindUnique: {allowed: []string{"where", "select", "include"}, required: []string{"where"}},
	FindFirst:  {allowed: []string{"where", "select", "include", "orderBy", "take", "skip"}},
	FindMany:   {allowed: []string{"where", "select", "include", "orderBy", "take", "skip"}},
	Update:     {allowed: []string{"data", "where", "select", "include"}, required: []string{"data", "where"}},
	UpdateMany: {allowed: []string{"data", "where"}, required: []string{"data"}},
	Upsert:     {allowed: []string{"where", "create", "update", "select", "include"}, required: []string{"where", "create", "update"}},
	Delete:     {allowed: []string{"where", "select"}, required: []string{"where"}},
	DeleteMany: {allowed: []string{"where"}},
	Sync:       {allowed: []string{"where", "include", "key"}},
}

// For builds the validator schema for a table and operation kind.
func For(t *schema.Table, kind Kind) *Schema {
	keys := kindKeys[kind]
	allowed := make(map[string]bool, len(keys.allowed))
	for _, k := range keys.allowed {
		allowed[k] = true
	}
	return &Schema{Kind: kind, Table: t, allowed: allowed, required: keys.required}
}

// Validate checks input against the schema and returns a normalized copy.
// The input map is not mutated.
func (s *Schema) Validate(input map[string]any) (map[string]any, error) {
	if input == nil {
		input = map[string]any{}
	}

	for key := range input {
		if !s.allowed[key] {
			return nil, errAt(string(s.Kind), "unknown argument %q", key)
		}
	}
	for _, key := range s.required {
		if _, ok := input[key]; !ok {
			return nil, errAt(string(s.Kind), "argument %q is required", key)
		}
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		var err error
		switch key {
		case "data", "create", "update":
			out[key], err = s.validateData(value, key)
		case "where":
			out[key], err = s.validateWhere(value, key)
		case "select":
			out[key], err = s.validateSelect(value, key)
		case "include":
			out[key], err = s.validateInclude(value, key)
		case "orderBy":
			out[key], err = validateOrderBy(value, key)
		case "take", "skip":
			out[key], err = asInt(value, key)
		case "key":
			str, ok := value.(string)
			if !ok {
				err = errAt(key, "must be a string")
			}
			out[key] = str
		}
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

// validateData checks a data payload. Scalar keys must name table fields;
// other keys must name relation fields, and their payloads are left for the
// planners. CreateMany and UpdateMany accept scalar fields only.
func (s *Schema) validateData(value any, path string) (any, error) {
	if s.Kind == CreateMany {
		list, ok := value.([]any)
		if !ok {
			return nil, errAt(path, "must be a list of objects")
		}
		out := make([]any, len(list))
		for i, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, errAt(fmt.Sprintf("%s.%d", path, i), "must be an object")
			}
			checked, err := s.checkDataObject(m, fmt.Sprintf("%s.%d", path, i), false)
			if err != nil {
				return nil, err
			}
			out[i] = checked
		}
		return out, nil
	}

	m, ok := value.(map[string]any)
	if !ok {
		return nil, errAt(path, "must be an object")
	}
	return s.checkDataObject(m, path, s.Kind != UpdateMany)
}

func (s *Schema) checkDataObject(m map[string]any, path string, allowRelations bool) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for key, value := range m {
		if _, ok := s.Table.Field(key); ok {
			out[key] = value
			continue
		}
		if _, ok := s.Table.RelationForField(key); ok {
			if !allowRelations {
				return nil, errAt(path+"."+key, "nested relation fields are not supported here")
			}
			out[key] = value
			continue
		}
		return nil, errAt(path+"."+key, "unknown field on table %q", s.Table.Name)
	}
	return out, nil
}

// validateWhere checks a where object. Keys must be scalar fields; nested
// relation filters are not part of this surface. Sync additionally accepts
// the raw string form.
func (s *Schema) validateWhere(value any, path string) (any, error) {
	if s.Kind == Sync {
		if str, ok := value.(string); ok {
			return str, nil
		}
	}

	m, ok := value.(map[string]any)
	if !ok {
		return nil, errAt(path, "must be an object")
	}
	if s.Kind == FindUnique && len(m) == 0 {
		return nil, errAt(path, "must not be empty")
	}

	out := make(map[string]any, len(m))
	for key, v := range m {
		if _, ok := s.Table.Field(key); !ok {
			if _, isRel := s.Table.RelationForField(key); isRel {
				return nil, errAt(path+"."+key, "relation filters are not supported in where")
			}
			return nil, errAt(path+"."+key, "unknown field on table %q", s.Table.Name)
		}
		if s.Kind == Sync {
			if _, isOp := v.(map[string]any); isOp {
				return nil, errAt(path+"."+key, "sync where supports scalar equality only")
			}
		}
		out[key] = v
	}
	return out, nil
}

// validateSelect checks a projection map. The _count aggregator is stripped
// before the planners see the input.
func (s *Schema) validateSelect(value any, path string) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, errAt(path, "must be an object")
	}

	out := make(map[string]any, len(m))
	for key, v := range m {
		if key == "_count" {
			continue
		}
		on, ok := v.(bool)
		if !ok {
			return nil, errAt(path+"."+key, "must be a boolean")
		}
		if _, ok := s.Table.Field(key); !ok {
			return nil, errAt(path+"."+key, "unknown field on table %q", s.Table.Name)
		}
		out[key] = on
	}
	return out, nil
}

// validateInclude checks an include map. Values are booleans or nested find
// inputs; keys are resolved against relations by the planners, which own the
// unknown-include error. The _count aggregator is stripped here too.
func (s *Schema) validateInclude(value any, path string) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, errAt(path, "must be an object")
	}

	out := make(map[string]any, len(m))
	for key, v := range m {
		if key == "_count" {
			continue
		}
		switch nested := v.(type) {
		case bool:
			out[key] = nested
		case map[string]any:
			cleaned := make(map[string]any, len(nested))
			for nk, nv := range nested {
				if nk == "select" || nk == "include" {
					sub, ok := nv.(map[string]any)
					if !ok {
						return nil, errAt(path+"."+key+"."+nk, "must be an object")
					}
					cleaned[nk] = omitCount(sub)
					continue
				}
				cleaned[nk] = nv
			}
			out[key] = cleaned
		default:
			return nil, errAt(path+"."+key, "must be a boolean or a nested query")
		}
	}
	return out, nil
}

// omitCount drops _count aggregator projections from a select/include
// subtree, recursively.
func omitCount(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == "_count" {
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			out[k] = omitCount(sub)
			continue
		}
		out[k] = v
	}
	return out
}

func validateOrderBy(value any, path string) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		if err := checkOrderDirs(v, path); err != nil {
			return nil, err
		}
		return []any{v}, nil
	case []any:
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, errAt(fmt.Sprintf("%s.%d", path, i), "must be an object")
			}
			if err := checkOrderDirs(m, fmt.Sprintf("%s.%d", path, i)); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
	return nil, errAt(path, "must be an object or a list of objects")
}

func checkOrderDirs(m map[string]any, path string) error {
	for field, dir := range m {
		s, ok := dir.(string)
		if !ok || (s != "asc" && s != "desc") {
			return errAt(path+"."+field, `must be "asc" or "desc"`)
		}
	}
	return nil
}

func asInt(value any, path string) (int64, error) {
	switch n := value.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n == float64(int64(n)) {
			return int64(n), nil
		}
	}
	return 0, errAt(path, "must be an integer")
}
