// Package sqlgen builds parameterized SQL statements from parsed operation
// inputs.
//
// All builders are pure: same input, same statement. Column lists and where
// clauses iterate map keys in sorted order so generated SQL is deterministic
// and testable against golden files. Values are always parameterized, never
// interpolated into the statement text.
package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ebb-sync/ebb/internal/adapter"
)

// Dialect selects the default namespace. Every builder emits ? placeholders
// whatever the dialect.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DefaultNamespace returns the dialect's default schema name.
func (d Dialect) DefaultNamespace() string {
	if d == Postgres {
		return "public"
	}
	return "main"
}

// Builder constructs statements for one dialect.
type Builder struct {
	dialect Dialect
}

// New creates a Builder.
func New(d Dialect) *Builder {
	return &Builder{dialect: d}
}

// Dialect returns the builder's dialect.
func (b *Builder) Dialect() Dialect {
	return b.dialect
}

// Order is one ORDER BY term.
type Order struct {
	Field string
	Desc  bool
}

// FindInput is the parsed form of a read operation.
type FindInput struct {
	Table string

	// Where holds field → filter entries compiled via MakeFilter.
	Where map[string]any

	// Filters are pre-built fragments ANDed with Where. Include expansion
	// uses this for the parent-key IN filter so it composes with a
	// user-supplied filter on the same field.
	Filters []Fragment

	// Select lists the columns to project; empty means all columns.
	Select []string

	OrderBy []Order
	Take    *int64
	Skip    *int64
}

// Fragment is a where-clause piece with its bound arguments.
type Fragment struct {
	SQL  string
	Args []any
}

// Create builds the INSERT for a single row. Columns are sorted.
func (b *Builder) Create(table string, data adapter.Row) adapter.Statement {
	if len(data) == 0 {
		return adapter.Statement{Text: fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", table)}
	}
	cols := sortedKeys(data)
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = "?"
		args[i] = data[c]
	}
	return adapter.Statement{
		Text: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table, strings.Join(cols, ", "), strings.Join(placeholders, ", ")),
		Args: args,
	}
}

// CreateMany builds one multi-row INSERT. The column list is the sorted
// union of all row keys; absent values bind NULL.
func (b *Builder) CreateMany(table string, rows []adapter.Row) adapter.Statement {
	colSet := map[string]struct{}{}
	for _, r := range rows {
		for k := range r {
			colSet[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	rowHole := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	tuples := make([]string, len(rows))
	var args []any
	for i, r := range rows {
		tuples[i] = rowHole
		for _, c := range cols {
			args = append(args, r[c])
		}
	}

	return adapter.Statement{
		Text: fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			table, strings.Join(cols, ", "), strings.Join(tuples, ", ")),
		Args: args,
	}
}

// FindUnique builds the SELECT for a unique read. LIMIT 2 lets the engine
// detect a non-unique where without fetching the full table.
func (b *Builder) FindUnique(in FindInput) (adapter.Statement, error) {
	stmt, err := b.find(in)
	if err != nil {
		return adapter.Statement{}, err
	}
	stmt.Text += " LIMIT 2"
	return stmt, nil
}

// FindMany builds the SELECT for a multi-row read.
func (b *Builder) FindMany(in FindInput) (adapter.Statement, error) {
	stmt, err := b.find(in)
	if err != nil {
		return adapter.Statement{}, err
	}
	if in.Take != nil {
		stmt.Text += fmt.Sprintf(" LIMIT %d", *in.Take)
	} else if in.Skip != nil {
		// OFFSET requires a LIMIT clause in SQLite.
		stmt.Text += " LIMIT -1"
	}
	if in.Skip != nil {
		stmt.Text += fmt.Sprintf(" OFFSET %d", *in.Skip)
	}
	return stmt, nil
}

func (b *Builder) find(in FindInput) (adapter.Statement, error) {
	proj := "*"
	if len(in.Select) > 0 {
		cols := make([]string, len(in.Select))
		copy(cols, in.Select)
		sort.Strings(cols)
		proj = strings.Join(cols, ", ")
	}

	text := fmt.Sprintf("SELECT %s FROM %s", proj, in.Table)

	clause, args, err := b.whereClause(in.Where, in.Filters)
	if err != nil {
		return adapter.Statement{}, err
	}
	text += clause

	if len(in.OrderBy) > 0 {
		terms := make([]string, len(in.OrderBy))
		for i, o := range in.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms[i] = o.Field + " " + dir
		}
		text += " ORDER BY " + strings.Join(terms, ", ")
	}

	return adapter.Statement{Text: text, Args: args}, nil
}

// Update builds the scalar UPDATE for a single record. RETURNING * yields
// the post-image without a second round trip.
func (b *Builder) Update(table string, data adapter.Row, where map[string]any) (adapter.Statement, error) {
	cols := sortedKeys(data)
	sets := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
		args[i] = data[c]
	}

	clause, whereArgs, err := b.whereClause(where, nil)
	if err != nil {
		return adapter.Statement{}, err
	}

	return adapter.Statement{
		Text: fmt.Sprintf("UPDATE %s SET %s%s RETURNING *", table, strings.Join(sets, ", "), clause),
		Args: append(args, whereArgs...),
	}, nil
}

// UpdateMany builds a plain UPDATE with no RETURNING clause.
func (b *Builder) UpdateMany(table string, data adapter.Row, where map[string]any) (adapter.Statement, error) {
	cols := sortedKeys(data)
	sets := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
		args[i] = data[c]
	}

	clause, whereArgs, err := b.whereClause(where, nil)
	if err != nil {
		return adapter.Statement{}, err
	}

	return adapter.Statement{
		Text: fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(sets, ", "), clause),
		Args: append(args, whereArgs...),
	}, nil
}

// Delete builds the DELETE for a where clause. DeleteMany is the same
// statement; only the engine-side row accounting differs.
func (b *Builder) Delete(table string, where map[string]any) (adapter.Statement, error) {
	clause, args, err := b.whereClause(where, nil)
	if err != nil {
		return adapter.Statement{}, err
	}
	return adapter.Statement{
		Text: fmt.Sprintf("DELETE FROM %s%s", table, clause),
		Args: args,
	}, nil
}

// whereClause compiles a where map plus extra fragments into " WHERE …".
// Returns the empty string when there is nothing to filter on.
func (b *Builder) whereClause(where map[string]any, extra []Fragment) (string, []any, error) {
	frags := make([]Fragment, 0, len(where)+len(extra))
	for _, key := range sortedKeys(where) {
		fs, err := MakeFilter(where[key], key, "")
		if err != nil {
			return "", nil, err
		}
		frags = append(frags, fs...)
	}
	frags = append(frags, extra...)

	if len(frags) == 0 {
		return "", nil, nil
	}

	parts := make([]string, len(frags))
	var args []any
	for i, f := range frags {
		parts[i] = "(" + f.SQL + ")"
		args = append(args, f.Args...)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
