package engine

import (
	"context"
	"fmt"

	"github.com/ebb-sync/ebb/internal/adapter"
	"github.com/ebb-sync/ebb/internal/schema"
	"github.com/ebb-sync/ebb/internal/txn"
	"github.com/ebb-sync/ebb/internal/validate"
)

// Create inserts one record, recursively creating related records named in
// the data payload. Outgoing relations are created before the base insert
// (their key feeds the FK column), incoming relations after it. The returned
// record is re-fetched so generated and defaulted columns are populated.
func (e *Engine) Create(ctx context.Context, table string, input map[string]any) (adapter.Row, error) {
	_, norm, err := e.validated(table, validate.Create, input)
	if err != nil {
		return nil, err
	}
	data, _ := norm["data"].(map[string]any)
	sel, _ := norm["select"].(map[string]any)
	inc, _ := norm["include"].(map[string]any)

	return plan(ctx, e, func(ctx context.Context, s *txn.Session) (adapter.Row, error) {
		return e.create(ctx, s, table, data, sel, inc)
	})
}

// CreateMany inserts a batch with one statement and no nested traversal.
// Returns the number of inserted rows.
func (e *Engine) CreateMany(ctx context.Context, table string, input map[string]any) (int64, error) {
	tbl, norm, err := e.validated(table, validate.CreateMany, input)
	if err != nil {
		return 0, err
	}

	list, _ := norm["data"].([]any)
	if len(list) == 0 {
		return 0, nil
	}
	tr := &validate.Transformer{Fields: fieldMap(tbl)}
	rows := make([]adapter.Row, len(list))
	for i, item := range list {
		m, _ := item.(map[string]any)
		rows[i] = adapter.Row(tr.ConvertValues(m))
	}

	stmt := e.gen.CreateMany(table, rows)
	_, res, err := e.exec.ExecuteStatement(ctx, stmt, true)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// create is the in-transaction create planner.
func (e *Engine) create(ctx context.Context, s *txn.Session, table string, data map[string]any, sel, inc map[string]any) (adapter.Row, error) {
	tbl, err := e.reg.Table(table)
	if err != nil {
		return nil, wrapSchemaErr(err)
	}
	data = shallowCopy(data)

	// Outgoing pre-pass: the related record must exist before the base
	// insert so its key can fill the FK column.
	for _, rel := range tbl.Relations {
		if rel.Direction != schema.Outgoing {
			continue
		}
		payload, present := data[rel.Field]
		if !present {
			continue
		}
		nested, err := nestedCreateData(payload, rel.Field)
		if err != nil {
			return nil, err
		}
		obj, ok := nested.(map[string]any)
		if !ok {
			return nil, invalidArgument("data.%s.create: must be a single object", rel.Field)
		}
		related, err := e.create(ctx, s, rel.Table, obj, nil, nil)
		if err != nil {
			return nil, err
		}
		delete(data, rel.Field)
		data[rel.FromField] = related[rel.ToField]
	}

	// Incoming relations wait until the base insert: their FK points at
	// this record.
	type pendingCreate struct {
		rel     schema.Relation
		objects []map[string]any
	}
	var incoming []pendingCreate
	for _, rel := range tbl.Relations {
		if rel.Direction != schema.Incoming {
			continue
		}
		payload, present := data[rel.Field]
		if !present {
			continue
		}
		nested, err := nestedCreateData(payload, rel.Field)
		if err != nil {
			return nil, err
		}
		objects, err := asObjectList(nested, rel.Field)
		if err != nil {
			return nil, err
		}
		delete(data, rel.Field)
		incoming = append(incoming, pendingCreate{rel: rel, objects: objects})
	}

	tr, err := s.TransformerFor(table)
	if err != nil {
		return nil, wrapSchemaErr(err)
	}
	data = tr.ConvertValues(data)

	res, err := s.Run(ctx, e.gen.Create(table, adapter.Row(data)))
	if err != nil {
		return nil, err
	}
	if res.RowsAffected != 1 {
		return nil, fmt.Errorf("Wrong amount of objects were created")
	}

	// Incoming post-pass, in declaration order. The child's FK takes the
	// parent's key value: from the supplied data when present, otherwise
	// resolved with an interim lookup (the key may be generated). Children
	// never contribute to the re-fetch below.
	var inserted adapter.Row
	for _, pending := range incoming {
		from, to, err := e.reg.ForeignKey(table, pending.rel)
		if err != nil {
			return nil, wrapSchemaErr(err)
		}
		parentKey, supplied := data[to]
		if !supplied {
			if inserted == nil {
				inserted, err = e.findUnique(ctx, s, table, findArgs{where: data}, true)
				if err != nil {
					return nil, err
				}
				if inserted == nil {
					return nil, recordNotFound("Create")
				}
			}
			parentKey = inserted[to]
		}
		for _, obj := range pending.objects {
			child := shallowCopy(obj)
			child[from] = parentKey
			if _, err := e.create(ctx, s, pending.rel.Table, child, nil, nil); err != nil {
				return nil, err
			}
		}
	}

	// Re-fetch with every scalar value actually supplied, so generated and
	// defaulted columns come back populated.
	row, err := e.findUnique(ctx, s, table, findArgs{where: data, sel: sel, include: inc}, true)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, recordNotFound("Create")
	}
	return row, nil
}

// nestedCreateData unwraps a {create: …} relation payload, rejecting the
// nested forms the create planner does not support.
func nestedCreateData(payload any, field string) (any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, invalidArgument("data.%s: must be a nested operation object", field)
	}
	for _, op := range []string{"connect", "connectOrCreate", "createMany"} {
		if _, present := m[op]; present {
			return nil, invalidArgument("Unsupported operation: %s", op)
		}
	}
	nested, ok := m["create"]
	if !ok {
		return nil, invalidArgument("data.%s: nested create requires a create entry", field)
	}
	return nested, nil
}

func asObjectList(v any, field string) ([]map[string]any, error) {
	switch items := v.(type) {
	case map[string]any:
		return []map[string]any{items}, nil
	case []any:
		out := make([]map[string]any, len(items))
		for i, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, invalidArgument("data.%s.create.%d: must be an object", field, i)
			}
			out[i] = m
		}
		return out, nil
	}
	return nil, invalidArgument("data.%s.create: must be an object or a list of objects", field)
}

func fieldMap(tbl *schema.Table) map[string]schema.Field {
	out := make(map[string]schema.Field, len(tbl.Fields))
	for _, f := range tbl.Fields {
		out[f.Name] = f
	}
	return out
}
