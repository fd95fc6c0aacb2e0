package schema

import "fmt"

// Registry is the process-lifetime catalog of table descriptors.
// All lookup methods are pure: they never mutate state and fail with
// *UnknownEntityError when the key is absent.
type Registry struct {
	tables map[string]*Table
	order  []string
}

// New builds a Registry from table descriptors and checks the structural
// invariants:
//
//  1. Every relation is registered on both tables and the two sides form a
//     dual pair (same name, opposite directions).
//  2. On the outgoing side, FromField exists on the declaring table and
//     ToField exists on the related table.
func New(tables ...*Table) (*Registry, error) {
	r := &Registry{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if _, dup := r.tables[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table %q", t.Name)
		}
		r.tables[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	for _, t := range tables {
		for _, rel := range t.Relations {
			if err := r.checkRelation(t, rel); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Registry) checkRelation(t *Table, rel Relation) error {
	other, ok := r.tables[rel.Table]
	if !ok {
		return fmt.Errorf("relation %q on table %q references unknown table %q", rel.Name, t.Name, rel.Table)
	}
	dual, ok := relationByName(other, rel.Name)
	if !ok {
		return fmt.Errorf("relation %q on table %q has no dual on table %q", rel.Name, t.Name, rel.Table)
	}
	if dual.Direction == rel.Direction {
		return fmt.Errorf("relation %q is %s on both %q and %q", rel.Name, rel.Direction, t.Name, rel.Table)
	}
	if rel.Direction == Outgoing {
		if _, ok := t.Field(rel.FromField); !ok {
			return fmt.Errorf("relation %q: FK column %q missing on table %q", rel.Name, rel.FromField, t.Name)
		}
		if _, ok := other.Field(rel.ToField); !ok {
			return fmt.Errorf("relation %q: referenced column %q missing on table %q", rel.Name, rel.ToField, rel.Table)
		}
	}
	return nil
}

func relationByName(t *Table, name string) (Relation, bool) {
	for _, rel := range t.Relations {
		if rel.Name == name {
			return rel, true
		}
	}
	return Relation{}, false
}

// Table returns the descriptor for the named table.
func (r *Registry) Table(name string) (*Table, error) {
	t, ok := r.tables[name]
	if !ok {
		return nil, unknownTable(name)
	}
	return t, nil
}

// TableNames returns all registered table names in registration order.
func (r *Registry) TableNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Fields returns the field descriptors of a table keyed by column name.
func (r *Registry) Fields(table string) (map[string]Field, error) {
	t, err := r.Table(table)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Field, len(t.Fields))
	for _, f := range t.Fields {
		out[f.Name] = f
	}
	return out, nil
}

// FieldNames returns the column names of a table in declaration order.
func (r *Registry) FieldNames(table string) ([]string, error) {
	t, err := r.Table(table)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		out[i] = f.Name
	}
	return out, nil
}

// Relation returns the relation with the given name as declared on table.
func (r *Registry) Relation(table, relationName string) (Relation, error) {
	t, err := r.Table(table)
	if err != nil {
		return Relation{}, err
	}
	rel, ok := relationByName(t, relationName)
	if !ok {
		return Relation{}, unknownRelation(table, relationName)
	}
	return rel, nil
}

// Relations returns all relations declared on a table in declaration order.
func (r *Registry) Relations(table string) ([]Relation, error) {
	t, err := r.Table(table)
	if err != nil {
		return nil, err
	}
	out := make([]Relation, len(t.Relations))
	copy(out, t.Relations)
	return out, nil
}

// IncomingRelations returns the relations on table whose FK column lives on
// the related table.
func (r *Registry) IncomingRelations(table string) ([]Relation, error) {
	t, err := r.Table(table)
	if err != nil {
		return nil, err
	}
	var out []Relation
	for _, rel := range t.Relations {
		if rel.Direction == Incoming {
			out = append(out, rel)
		}
	}
	return out, nil
}

// HasRelationForField reports whether field names a relation on table.
func (r *Registry) HasRelationForField(table, field string) (bool, error) {
	t, err := r.Table(table)
	if err != nil {
		return false, err
	}
	_, ok := t.RelationForField(field)
	return ok, nil
}

// RelationForField returns the relation exposed through the named virtual
// field on table.
func (r *Registry) RelationForField(table, field string) (Relation, error) {
	t, err := r.Table(table)
	if err != nil {
		return Relation{}, err
	}
	rel, ok := t.RelationForField(field)
	if !ok {
		return Relation{}, unknownRelation(table, field)
	}
	return rel, nil
}

// RelationName returns the edge label of the relation behind field.
func (r *Registry) RelationName(table, field string) (string, error) {
	rel, err := r.RelationForField(table, field)
	if err != nil {
		return "", err
	}
	return rel.Name, nil
}

// RelatedTable returns the table on the far side of the relation behind field.
func (r *Registry) RelatedTable(table, field string) (string, error) {
	rel, err := r.RelationForField(table, field)
	if err != nil {
		return "", err
	}
	return rel.Table, nil
}

// ForeignKey resolves the canonical (FromField, ToField) pair of a relation
// as seen from table. For an outgoing relation the pair is stored on the
// relation itself; for an incoming relation it is recovered from the dual
// descriptor on the related table.
func (r *Registry) ForeignKey(table string, rel Relation) (fromField, toField string, err error) {
	if rel.Direction == Outgoing {
		return rel.FromField, rel.ToField, nil
	}
	dual, err := r.Relation(rel.Table, rel.Name)
	if err != nil {
		return "", "", err
	}
	if dual.Direction != Outgoing {
		return "", "", fmt.Errorf("relation %q: dual on %q is not outgoing", rel.Name, rel.Table)
	}
	return dual.FromField, dual.ToField, nil
}

// RelationsPointingAt returns every incoming relation on table whose
// referenced column is field. These are the edges whose dependents must be
// rewritten when field's value changes on a row.
func (r *Registry) RelationsPointingAt(table, field string) ([]Relation, error) {
	t, err := r.Table(table)
	if err != nil {
		return nil, err
	}
	if _, ok := t.Field(field); !ok {
		return nil, unknownField(table, field)
	}
	var out []Relation
	for _, rel := range t.Relations {
		if rel.Direction != Incoming {
			continue
		}
		_, to, err := r.ForeignKey(table, rel)
		if err != nil {
			return nil, err
		}
		if to == field {
			out = append(out, rel)
		}
	}
	return out, nil
}
