package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// LoadCUE reads a schema definition file and compiles it into a Registry.
//
// The file declares a top-level "tables" struct:
//
//	tables: {
//		Post: {
//			fields: {
//				id:       {type: "integer", auto: true}
//				title:    {type: "text"}
//				authorId: {type: "integer", nullable: true}
//			}
//			relations: {
//				author: {
//					name: "PostToAuthor", table: "Author"
//					direction: "outgoing", arity: "one"
//					from: "authorId", to: "id"
//				}
//			}
//		}
//	}
//
// Field and relation order follows declaration order in the file.
func LoadCUE(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return CompileCUE(data, path)
}

// CompileCUE compiles CUE source into a Registry. The filename is used for
// error positions only.
func CompileCUE(src []byte, filename string) (*Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return nil, &CompileError{Field: "tables", Message: "tables struct is required", Pos: v.Pos()}
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var tables []*Table
	for iter.Next() {
		t, err := compileTable(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return nil, &CompileError{Field: "tables", Message: "at least one table is required", Pos: tablesVal.Pos()}
	}

	return New(tables...)
}

func compileTable(name string, v cue.Value) (*Table, error) {
	t := &Table{Name: name}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{Field: name + ".fields", Message: "fields struct is required", Pos: v.Pos()}
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		f, err := compileField(name, iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		t.Fields = append(t.Fields, f)
	}
	if len(t.Fields) == 0 {
		return nil, &CompileError{Field: name + ".fields", Message: "at least one field is required", Pos: fieldsVal.Pos()}
	}

	relsVal := v.LookupPath(cue.ParsePath("relations"))
	if relsVal.Exists() {
		iter, err := relsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			rel, err := compileRelation(name, iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			t.Relations = append(t.Relations, rel)
		}
	}

	return t, nil
}

var fieldTypes = map[string]FieldType{
	"text":      TypeText,
	"integer":   TypeInteger,
	"real":      TypeReal,
	"boolean":   TypeBoolean,
	"blob":      TypeBlob,
	"timestamp": TypeTimestamp,
	"json":      TypeJSON,
}

func compileField(table, name string, v cue.Value) (Field, error) {
	f := Field{Name: name}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return f, &CompileError{Field: fmt.Sprintf("%s.fields.%s.type", table, name), Message: "type is required", Pos: v.Pos()}
	}
	typeStr, err := typeVal.String()
	if err != nil {
		return f, formatCUEError(err)
	}
	ft, ok := fieldTypes[typeStr]
	if !ok {
		return f, &CompileError{
			Field:   fmt.Sprintf("%s.fields.%s.type", table, name),
			Message: fmt.Sprintf("unknown field type %q", typeStr),
			Pos:     typeVal.Pos(),
		}
	}
	f.Type = ft

	f.Nullable, err = boolAt(v, "nullable")
	if err != nil {
		return f, err
	}
	f.HasDefault, err = boolAt(v, "default")
	if err != nil {
		return f, err
	}
	f.AutoGenerated, err = boolAt(v, "auto")
	if err != nil {
		return f, err
	}
	// Generated columns are filled by the database when omitted, so auto
	// implies a default.
	if f.AutoGenerated {
		f.HasDefault = true
	}

	return f, nil
}

func compileRelation(table, field string, v cue.Value) (Relation, error) {
	rel := Relation{Field: field}
	path := fmt.Sprintf("%s.relations.%s", table, field)

	var err error
	if rel.Name, err = stringAt(v, "name", path); err != nil {
		return rel, err
	}
	if rel.Table, err = stringAt(v, "table", path); err != nil {
		return rel, err
	}

	dir, err := stringAt(v, "direction", path)
	if err != nil {
		return rel, err
	}
	switch Direction(dir) {
	case Outgoing, Incoming:
		rel.Direction = Direction(dir)
	default:
		return rel, &CompileError{Field: path + ".direction", Message: fmt.Sprintf("must be %q or %q", Outgoing, Incoming), Pos: v.Pos()}
	}

	arity, err := stringAt(v, "arity", path)
	if err != nil {
		return rel, err
	}
	switch Arity(arity) {
	case One, Many:
		rel.Arity = Arity(arity)
	default:
		return rel, &CompileError{Field: path + ".arity", Message: fmt.Sprintf("must be %q or %q", One, Many), Pos: v.Pos()}
	}

	// The FK column pair is declared on the outgoing side only.
	if rel.Direction == Outgoing {
		if rel.FromField, err = stringAt(v, "from", path); err != nil {
			return rel, err
		}
		if rel.ToField, err = stringAt(v, "to", path); err != nil {
			return rel, err
		}
	}

	return rel, nil
}

func stringAt(v cue.Value, key, path string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(key))
	if !sv.Exists() {
		return "", &CompileError{Field: path + "." + key, Message: key + " is required", Pos: v.Pos()}
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func boolAt(v cue.Value, key string) (bool, error) {
	bv := v.LookupPath(cue.ParsePath(key))
	if !bv.Exists() {
		return false, nil
	}
	b, err := bv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// CompileError is a schema compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
