package engine

import (
	"context"

	"github.com/ebb-sync/ebb/internal/adapter"
	"github.com/ebb-sync/ebb/internal/schema"
	"github.com/ebb-sync/ebb/internal/sqlgen"
	"github.com/ebb-sync/ebb/internal/txn"
	"github.com/ebb-sync/ebb/internal/validate"
)

// FindUnique reads at most one record by a uniquely-identifying where.
// Returns (nil, nil) when no record matches; fails with a not-unique error
// when more than one does.
func (e *Engine) FindUnique(ctx context.Context, table string, input map[string]any) (adapter.Row, error) {
	_, norm, err := e.validated(table, validate.FindUnique, input)
	if err != nil {
		return nil, err
	}
	args, err := parseFindArgs(norm)
	if err != nil {
		return nil, err
	}
	return plan(ctx, e, func(ctx context.Context, s *txn.Session) (adapter.Row, error) {
		return e.findUnique(ctx, s, table, args, true)
	})
}

// FindFirst reads the first matching record, or (nil, nil) when none match.
func (e *Engine) FindFirst(ctx context.Context, table string, input map[string]any) (adapter.Row, error) {
	_, norm, err := e.validated(table, validate.FindFirst, input)
	if err != nil {
		return nil, err
	}
	args, err := parseFindArgs(norm)
	if err != nil {
		return nil, err
	}
	return plan(ctx, e, func(ctx context.Context, s *txn.Session) (adapter.Row, error) {
		rows, err := e.findMany(ctx, s, table, args, nil)
		if err != nil {
			return nil, err
		}
		// Narrow to the first row after include expansion.
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0], nil
	})
}

// FindMany reads all matching records.
func (e *Engine) FindMany(ctx context.Context, table string, input map[string]any) ([]adapter.Row, error) {
	_, norm, err := e.validated(table, validate.FindMany, input)
	if err != nil {
		return nil, err
	}
	args, err := parseFindArgs(norm)
	if err != nil {
		return nil, err
	}
	return plan(ctx, e, func(ctx context.Context, s *txn.Session) ([]adapter.Row, error) {
		return e.findMany(ctx, s, table, args, nil)
	})
}

// findUnique is the in-transaction unique read: LIMIT 2, not-unique check,
// include expansion on the single row.
func (e *Engine) findUnique(ctx context.Context, s *txn.Session, table string, args findArgs, autoSelect bool) (adapter.Row, error) {
	where, err := e.transformWhere(s, table, args.where)
	if err != nil {
		return nil, err
	}

	sel := selectColumns(args.sel)
	if autoSelect {
		needed, err := e.includeKeyColumns(table, args.include)
		if err != nil {
			return nil, err
		}
		sel = selectColumns(args.sel, needed...)
	}

	stmt, err := e.gen.FindUnique(sqlgen.FindInput{Table: table, Where: where, Select: sel})
	if err != nil {
		return nil, invalidArgument("%s", err.Error())
	}
	rows, err := s.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if len(rows) > 1 {
		return nil, notUnique(table)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if err := e.fetchIncludes(ctx, s, table, rows, args.include); err != nil {
		return nil, err
	}
	return rows[0], nil
}

// findMany is the in-transaction multi-row read. extra filters are ANDed
// with the user where; include expansion uses them for the parent-key
// restriction.
func (e *Engine) findMany(ctx context.Context, s *txn.Session, table string, args findArgs, extra []sqlgen.Fragment) ([]adapter.Row, error) {
	where, err := e.transformWhere(s, table, args.where)
	if err != nil {
		return nil, err
	}

	needed, err := e.includeKeyColumns(table, args.include)
	if err != nil {
		return nil, err
	}

	stmt, err := e.gen.FindMany(sqlgen.FindInput{
		Table:   table,
		Where:   where,
		Filters: extra,
		Select:  selectColumns(args.sel, needed...),
		OrderBy: args.orderBy,
		Take:    args.take,
		Skip:    args.skip,
	})
	if err != nil {
		return nil, invalidArgument("%s", err.Error())
	}
	rows, err := s.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if err := e.fetchIncludes(ctx, s, table, rows, args.include); err != nil {
		return nil, err
	}
	return rows, nil
}

// fetchIncludes attaches related rows to the parents, one relation field at
// a time. Each relation is resolved against the registry, fetched with a
// single IN query over the parents' key values, and joined in memory so
// arity can be enforced per parent.
func (e *Engine) fetchIncludes(ctx context.Context, s *txn.Session, table string, rows []adapter.Row, include map[string]any) error {
	if len(rows) == 0 || len(include) == 0 {
		return nil
	}

	tbl, err := e.reg.Table(table)
	if err != nil {
		return wrapSchemaErr(err)
	}

	for _, field := range sortedKeys(include) {
		arg := include[field]
		if on, ok := arg.(bool); ok && !on {
			continue
		}

		rel, ok := tbl.RelationForField(field)
		if !ok {
			return invalidArgument("unknown relation field %q in include on table %q", field, table)
		}
		parentCol, childCol, err := e.keySides(table, rel)
		if err != nil {
			return err
		}

		// Distinct non-null parent keys, in row order.
		var keys []any
		seen := map[any]struct{}{}
		for _, row := range rows {
			v, ok := row[parentCol]
			if !ok || v == nil {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			keys = append(keys, v)
		}

		nested, err := nestedFindArgs(arg)
		if err != nil {
			return invalidArgument("include.%s: %s", field, err.Error())
		}
		nested.sel = widenSelect(nested.sel, childCol)

		related, err := e.findMany(ctx, s, rel.Table, nested, []sqlgen.Fragment{
			sqlgen.InFilter(childCol, keys),
		})
		if err != nil {
			return err
		}

		if err := attachRelated(rows, related, rel, parentCol, childCol); err != nil {
			return err
		}
	}

	return nil
}

// attachRelated joins related rows onto each parent under the relation
// field, enforcing arity.
func attachRelated(rows, related []adapter.Row, rel schema.Relation, parentCol, childCol string) error {
	for _, row := range rows {
		parentKey, ok := row[parentCol]
		if !ok || parentKey == nil {
			if rel.Arity == schema.Many {
				row[rel.Field] = []adapter.Row{}
			}
			continue
		}

		var matches []adapter.Row
		for _, child := range related {
			if valuesEqual(parentKey, child[childCol]) {
				matches = append(matches, child)
			}
		}

		if rel.Arity == schema.One {
			if len(matches) > 1 {
				return invalidArgument("Relation %q is one-to-one but found several related objects", rel.Name)
			}
			if len(matches) == 1 {
				row[rel.Field] = matches[0]
			}
			continue
		}

		if matches == nil {
			matches = []adapter.Row{}
		}
		row[rel.Field] = matches
	}
	return nil
}

// nestedFindArgs parses the include argument: true means everything, an
// object is a nested find input.
func nestedFindArgs(arg any) (findArgs, error) {
	if _, ok := arg.(bool); ok {
		return findArgs{}, nil
	}
	m, ok := arg.(map[string]any)
	if !ok {
		return findArgs{}, invalidArgument("must be a boolean or a nested query")
	}
	norm := make(map[string]any, len(m))
	for k, v := range m {
		switch k {
		case "where", "select", "include", "orderBy":
			norm[k] = v
		case "take", "skip":
			n, ok := v.(int64)
			if !ok {
				if i, isInt := v.(int); isInt {
					n = int64(i)
				} else if f, isFloat := v.(float64); isFloat && f == float64(int64(f)) {
					n = int64(f)
				} else {
					return findArgs{}, invalidArgument("%s must be an integer", k)
				}
			}
			norm[k] = n
		default:
			return findArgs{}, invalidArgument("unknown argument %q", k)
		}
	}
	return parseFindArgs(norm)
}

// includeKeyColumns lists the parent-side join columns every included
// relation needs, so a narrow select still carries them.
func (e *Engine) includeKeyColumns(table string, include map[string]any) ([]string, error) {
	if len(include) == 0 {
		return nil, nil
	}
	tbl, err := e.reg.Table(table)
	if err != nil {
		return nil, wrapSchemaErr(err)
	}
	var cols []string
	for _, field := range sortedKeys(include) {
		rel, ok := tbl.RelationForField(field)
		if !ok {
			// fetchIncludes reports the unknown field with full context.
			continue
		}
		parentCol, _, err := e.keySides(table, rel)
		if err != nil {
			return nil, err
		}
		cols = append(cols, parentCol)
	}
	return cols, nil
}

func widenSelect(sel map[string]any, col string) map[string]any {
	if len(sel) == 0 {
		return sel
	}
	out := shallowCopy(sel)
	out[col] = true
	return out
}

// transformWhere applies the per-field input conversions to a where map.
func (e *Engine) transformWhere(s *txn.Session, table string, where map[string]any) (map[string]any, error) {
	if len(where) == 0 {
		return where, nil
	}
	tr, err := s.TransformerFor(table)
	if err != nil {
		return nil, wrapSchemaErr(err)
	}
	return tr.ConvertValues(where), nil
}
