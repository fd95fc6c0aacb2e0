// Package engine plans and executes the relational operations: nested reads
// through include expansion with in-memory joins, and nested writes ordered
// by foreign-key direction inside a single transaction.
//
// Planners run sequentially on one transactional session; every call into
// the adapter is the only suspension point, and the first error aborts the
// plan and rolls the transaction back.
package engine

import (
	"context"
	"errors"
	"sort"

	"github.com/ebb-sync/ebb/internal/adapter"
	"github.com/ebb-sync/ebb/internal/schema"
	"github.com/ebb-sync/ebb/internal/sqlgen"
	"github.com/ebb-sync/ebb/internal/txn"
	"github.com/ebb-sync/ebb/internal/validate"
)

// Engine is the relational query engine over one registry and one adapter.
type Engine struct {
	reg  *schema.Registry
	exec *txn.Executor
	gen  *sqlgen.Builder
}

// New creates an Engine.
func New(reg *schema.Registry, ad adapter.Adapter, dialect sqlgen.Dialect) *Engine {
	return &Engine{
		reg:  reg,
		exec: txn.NewExecutor(ad, reg),
		gen:  sqlgen.New(dialect),
	}
}

// Registry returns the engine's schema registry.
func (e *Engine) Registry() *schema.Registry {
	return e.reg
}

// Adapter returns the engine's adapter.
func (e *Engine) Adapter() adapter.Adapter {
	return e.exec.Adapter()
}

// validated runs the C2 validator for one operation kind and converts
// validation failures into invalid-argument errors.
func (e *Engine) validated(table string, kind validate.Kind, input map[string]any) (*schema.Table, map[string]any, error) {
	tbl, err := e.reg.Table(table)
	if err != nil {
		return nil, nil, wrapSchemaErr(err)
	}
	norm, err := validate.For(tbl, kind).Validate(input)
	if err != nil {
		var ve *validate.Error
		if errors.As(err, &ve) {
			return nil, nil, invalidArgument("%s", ve.Error())
		}
		return nil, nil, err
	}
	return tbl, norm, nil
}

// wrapSchemaErr converts registry lookup failures into invalid-argument
// errors; anything else passes through.
func wrapSchemaErr(err error) error {
	var ue *schema.UnknownEntityError
	if errors.As(err, &ue) {
		return invalidArgument("%s", ue.Error())
	}
	return err
}

// findArgs is the parsed read payload shared by the find planners.
type findArgs struct {
	where   map[string]any
	sel     map[string]any
	include map[string]any
	orderBy []sqlgen.Order
	take    *int64
	skip    *int64
}

func parseFindArgs(norm map[string]any) (findArgs, error) {
	var args findArgs
	if w, ok := norm["where"].(map[string]any); ok {
		args.where = w
	}
	if s, ok := norm["select"].(map[string]any); ok {
		args.sel = s
	}
	if inc, ok := norm["include"].(map[string]any); ok {
		args.include = inc
	}
	if raw, ok := norm["orderBy"]; ok {
		orders, err := parseOrderBy(raw)
		if err != nil {
			return args, err
		}
		args.orderBy = orders
	}
	if n, ok := norm["take"].(int64); ok {
		args.take = &n
	}
	if n, ok := norm["skip"].(int64); ok {
		args.skip = &n
	}
	return args, nil
}

func parseOrderBy(raw any) ([]sqlgen.Order, error) {
	list, ok := raw.([]any)
	if !ok {
		if m, isMap := raw.(map[string]any); isMap {
			list = []any{m}
		} else {
			return nil, invalidArgument("orderBy must be an object or a list of objects")
		}
	}
	var orders []sqlgen.Order
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, invalidArgument("orderBy entries must be objects")
		}
		for _, field := range sortedKeys(m) {
			dir, _ := m[field].(string)
			orders = append(orders, sqlgen.Order{Field: field, Desc: dir == "desc"})
		}
	}
	return orders, nil
}

// selectColumns turns a select map into a column list, widening it with the
// key columns the caller needs for joins and nested writes. Returns nil (all
// columns) when there is no projection.
func selectColumns(sel map[string]any, needed ...string) []string {
	if len(sel) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var cols []string
	add := func(c string) {
		if _, dup := seen[c]; !dup {
			seen[c] = struct{}{}
			cols = append(cols, c)
		}
	}
	for field, v := range sel {
		if on, ok := v.(bool); ok && on {
			add(field)
		}
	}
	for _, c := range needed {
		add(c)
	}
	return cols
}

// valuesEqual compares two column values across the numeric representations
// the driver may hand back.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	if as, aok := asString(a); aok {
		if bs, bok := asString(b); bok {
			return as == bs
		}
		return false
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func shallowCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// keySides returns the parent-side and child-side join columns of a relation
// as seen from the parent table.
func (e *Engine) keySides(table string, rel schema.Relation) (parentCol, childCol string, err error) {
	from, to, err := e.reg.ForeignKey(table, rel)
	if err != nil {
		return "", "", wrapSchemaErr(err)
	}
	if rel.Direction == schema.Outgoing {
		return from, to, nil
	}
	return to, from, nil
}

// plan runs fn inside one transaction.
func plan[T any](ctx context.Context, e *Engine, fn func(context.Context, *txn.Session) (T, error)) (T, error) {
	return txn.Transact(ctx, e.exec, fn)
}
