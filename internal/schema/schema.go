// Package schema holds the declarative description of tables: field names
// and types, relations between tables, and the lookups the query planners
// use to resolve them.
//
// A Registry is immutable after construction and safe for concurrent use.
// Relations are registered on both tables of an edge; the foreign-key column
// pair is defined canonically on the outgoing side, and lookups from the
// incoming side consult the opposite descriptor to recover it.
package schema

import "fmt"

// FieldType identifies the scalar type of a column.
type FieldType string

const (
	TypeText      FieldType = "text"
	TypeInteger   FieldType = "integer"
	TypeReal      FieldType = "real"
	TypeBoolean   FieldType = "boolean"
	TypeBlob      FieldType = "blob"
	TypeTimestamp FieldType = "timestamp"
	TypeJSON      FieldType = "json"
)

// Field describes one column of a table.
type Field struct {
	Name string
	Type FieldType

	// Nullable marks columns that accept NULL.
	Nullable bool

	// HasDefault marks columns the database fills when omitted from an insert.
	HasDefault bool

	// AutoGenerated marks columns the database computes when they are
	// omitted from an insert (rowid aliases, generated columns). A value
	// supplied in insert data is inserted as given.
	AutoGenerated bool
}

// Direction says on which side of a relation the foreign key lives.
type Direction string

const (
	// Outgoing: the FK column lives on the table declaring the relation.
	Outgoing Direction = "outgoing"

	// Incoming: the FK column lives on the related table.
	Incoming Direction = "incoming"
)

// Arity says how many related records a relation field can hold.
type Arity string

const (
	One  Arity = "one"
	Many Arity = "many"
)

// Relation describes one side of a typed edge between two tables.
//
// FromField and ToField are only populated on the outgoing side; the
// incoming side carries the relation name and is resolved through the
// opposite descriptor (see Registry.ForeignKey).
type Relation struct {
	// Field is the virtual field exposing the related record(s).
	Field string

	// Name labels the two-sided edge; both sides carry the same name.
	Name string

	// Table is the related table.
	Table string

	Direction Direction
	Arity     Arity

	// FromField is the FK column, ToField the referenced column.
	FromField string
	ToField   string
}

// Table describes one table: its fields in declaration order and its
// relations in declaration order.
type Table struct {
	Name      string
	Fields    []Field
	Relations []Relation
}

// Field returns the named field and whether it exists.
func (t *Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RelationForField returns the relation exposed through the named virtual
// field and whether one exists.
func (t *Table) RelationForField(field string) (Relation, bool) {
	for _, r := range t.Relations {
		if r.Field == field {
			return r, true
		}
	}
	return Relation{}, false
}

// UnknownEntityError reports a lookup against a table, field, or relation
// that is not registered.
type UnknownEntityError struct {
	Kind  string // "table" | "field" | "relation"
	Table string
	Name  string
}

func (e *UnknownEntityError) Error() string {
	if e.Kind == "table" {
		return fmt.Sprintf("unknown table %q", e.Name)
	}
	return fmt.Sprintf("unknown %s %q on table %q", e.Kind, e.Name, e.Table)
}

func unknownTable(name string) error {
	return &UnknownEntityError{Kind: "table", Name: name}
}

func unknownField(table, name string) error {
	return &UnknownEntityError{Kind: "field", Table: table, Name: name}
}

func unknownRelation(table, name string) error {
	return &UnknownEntityError{Kind: "relation", Table: table, Name: name}
}
