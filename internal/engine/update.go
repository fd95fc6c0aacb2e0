package engine

import (
	"context"

	"github.com/ebb-sync/ebb/internal/adapter"
	"github.com/ebb-sync/ebb/internal/schema"
	"github.com/ebb-sync/ebb/internal/txn"
	"github.com/ebb-sync/ebb/internal/validate"
)

// Update modifies one record identified by a unique where, propagates any
// referenced-column change to dependent FK columns, applies nested relation
// updates, and returns the re-fetched record.
func (e *Engine) Update(ctx context.Context, table string, input map[string]any) (adapter.Row, error) {
	_, norm, err := e.validated(table, validate.Update, input)
	if err != nil {
		return nil, err
	}
	where, _ := norm["where"].(map[string]any)
	data, _ := norm["data"].(map[string]any)
	sel, _ := norm["select"].(map[string]any)
	inc, _ := norm["include"].(map[string]any)

	return plan(ctx, e, func(ctx context.Context, s *txn.Session) (adapter.Row, error) {
		return e.update(ctx, s, table, where, data, sel, inc)
	})
}

// Upsert updates the record matching where if it exists, creates it
// otherwise. Validation only at the top level; the chosen sub-planner
// transforms its own input.
func (e *Engine) Upsert(ctx context.Context, table string, input map[string]any) (adapter.Row, error) {
	_, norm, err := e.validated(table, validate.Upsert, input)
	if err != nil {
		return nil, err
	}
	where, _ := norm["where"].(map[string]any)
	createData, _ := norm["create"].(map[string]any)
	updateData, _ := norm["update"].(map[string]any)
	sel, _ := norm["select"].(map[string]any)
	inc, _ := norm["include"].(map[string]any)

	return plan(ctx, e, func(ctx context.Context, s *txn.Session) (adapter.Row, error) {
		existing, err := e.findUnique(ctx, s, table, findArgs{where: where}, true)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return e.create(ctx, s, table, createData, sel, inc)
		}
		return e.update(ctx, s, table, where, updateData, sel, inc)
	})
}

// update is the in-transaction update planner. Steps run strictly in order:
// pre-image fetch, scalar update, FK rewrite, nested relation updates,
// re-fetch.
func (e *Engine) update(ctx context.Context, s *txn.Session, table string, where, data map[string]any, sel, inc map[string]any) (adapter.Row, error) {
	tbl, err := e.reg.Table(table)
	if err != nil {
		return nil, wrapSchemaErr(err)
	}

	og, err := e.findUnique(ctx, s, table, findArgs{where: where}, true)
	if err != nil {
		return nil, err
	}
	if og == nil {
		return nil, recordNotFound("Update")
	}

	// Partition data into scalar columns and relation fields.
	scalar := map[string]any{}
	relations := map[string]any{}
	for key, value := range data {
		if _, ok := tbl.Field(key); ok {
			scalar[key] = value
			continue
		}
		relations[key] = value
	}

	tr, err := s.TransformerFor(table)
	if err != nil {
		return nil, wrapSchemaErr(err)
	}
	where, err = e.transformWhere(s, table, where)
	if err != nil {
		return nil, err
	}

	upd := og
	if len(scalar) > 0 {
		scalar = tr.ConvertValues(scalar)
		stmt, err := e.gen.Update(table, adapter.Row(scalar), where)
		if err != nil {
			return nil, invalidArgument("%s", err.Error())
		}
		rows, err := s.Query(ctx, stmt)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, recordNotFound("Update")
		}
		if len(rows) > 1 {
			return nil, notUnique(table)
		}
		upd = rows[0]
	}

	if err := e.fkRewrite(ctx, s, table, og, upd); err != nil {
		return nil, err
	}

	// Nested relation updates. Outgoing relations feed the changed FK value
	// into the re-fetch where; incoming relations are verified to stay
	// attached to this record.
	nonRelational := shallowCopy(scalar)
	for _, field := range sortedKeys(relations) {
		rel, ok := tbl.RelationForField(field)
		if !ok {
			return nil, invalidArgument("unknown field %q in update data on table %q", field, table)
		}
		payload, ok := relations[field].(map[string]any)
		if !ok {
			return nil, invalidArgument("data.%s: must be a nested operation object", field)
		}

		if rel.Direction == schema.Outgoing {
			if err := e.updateOutgoing(ctx, s, rel, payload, og, nonRelational); err != nil {
				return nil, err
			}
			continue
		}
		if err := e.updateIncoming(ctx, s, table, rel, payload, og); err != nil {
			return nil, err
		}
	}

	// Re-fetch with the updated scalar values overriding the original
	// where, so a changed unique key resolves by its new value.
	refetchWhere := shallowCopy(where)
	for k, v := range nonRelational {
		refetchWhere[k] = v
	}
	row, err := e.findUnique(ctx, s, table, findArgs{where: refetchWhere, sel: sel, include: inc}, true)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, recordNotFound("Update")
	}
	return row, nil
}

// updateOutgoing applies a nested {update: …} on an outgoing relation. The
// related record is addressed through the FK value of the pre-image, and the
// possibly-changed key is recorded for the parent's re-fetch.
func (e *Engine) updateOutgoing(ctx context.Context, s *txn.Session, rel schema.Relation, payload map[string]any, og adapter.Row, nonRelational map[string]any) error {
	for key := range payload {
		if key != "update" {
			return invalidArgument("data.%s: nested operation %q is not supported in update", rel.Field, key)
		}
	}
	nested, ok := payload["update"].(map[string]any)
	if !ok {
		return invalidArgument("data.%s.update: must be an object", rel.Field)
	}

	child, err := e.update(ctx, s, rel.Table, map[string]any{rel.ToField: og[rel.FromField]}, nested, nil, nil)
	if err != nil {
		return err
	}
	nonRelational[rel.FromField] = child[rel.ToField]
	return nil
}

// updateIncoming applies nested {update: …} and {updateMany: …} operations
// on an incoming relation.
func (e *Engine) updateIncoming(ctx context.Context, s *txn.Session, table string, rel schema.Relation, payload map[string]any, og adapter.Row) error {
	from, to, err := e.reg.ForeignKey(table, rel)
	if err != nil {
		return wrapSchemaErr(err)
	}

	for _, op := range sortedKeys(payload) {
		switch op {
		case "update":
			items, err := asObjectList(payload[op], rel.Field)
			if err != nil {
				return err
			}
			for _, item := range items {
				if err := e.updateIncomingOne(ctx, s, rel, item, from, to, og); err != nil {
					return err
				}
			}
		case "updateMany":
			items, err := asObjectList(payload[op], rel.Field)
			if err != nil {
				return err
			}
			for _, item := range items {
				data, _ := item["data"].(map[string]any)
				where, _ := item["where"].(map[string]any)
				// Restrict to children of this record; no per-row check.
				where = shallowCopy(where)
				where[from] = og[to]
				if _, err := e.updateMany(ctx, s, rel.Table, where, data); err != nil {
					return err
				}
			}
		default:
			return invalidArgument("data.%s: nested operation %q is not supported in update", rel.Field, op)
		}
	}
	return nil
}

// updateIncomingOne runs one nested update against a child record. For a
// *-to-many relation the nested where alone identifies the child, so after
// the update the child's FK must still point at this record.
func (e *Engine) updateIncomingOne(ctx context.Context, s *txn.Session, rel schema.Relation, item map[string]any, from, to string, og adapter.Row) error {
	if rel.Arity == schema.Many {
		where, ok := item["where"].(map[string]any)
		if !ok {
			return invalidArgument("data.%s.update: where is required for a *-to-many relation", rel.Field)
		}
		data, ok := item["data"].(map[string]any)
		if !ok {
			return invalidArgument("data.%s.update: data is required", rel.Field)
		}
		child, err := e.update(ctx, s, rel.Table, where, data, nil, nil)
		if err != nil {
			return err
		}
		if !valuesEqual(child[from], og[to]) {
			return invalidArgument("Nested update cannot update an unrelated object")
		}
		return nil
	}

	// Arity one: the child is addressed through the FK; the payload is
	// either {where?, data} or the bare data object.
	data := item
	if nested, ok := item["data"].(map[string]any); ok {
		data = nested
	}
	_, err := e.update(ctx, s, rel.Table, map[string]any{from: og[to]}, data, nil, nil)
	return err
}

// fkRewrite propagates referenced-column changes to dependents: for every
// changed field with incoming relations pointing at it, dependents' FK
// columns are rewritten from the old value to the new one.
func (e *Engine) fkRewrite(ctx context.Context, s *txn.Session, table string, og, upd adapter.Row) error {
	for _, field := range sortedKeys(og) {
		before := og[field]
		after, ok := upd[field]
		if !ok || valuesEqual(before, after) {
			continue
		}
		rels, err := e.reg.RelationsPointingAt(table, field)
		if err != nil {
			return wrapSchemaErr(err)
		}
		for _, rel := range rels {
			from, _, err := e.reg.ForeignKey(table, rel)
			if err != nil {
				return wrapSchemaErr(err)
			}
			stmt, err := e.gen.UpdateMany(rel.Table, adapter.Row{from: after}, map[string]any{from: before})
			if err != nil {
				return invalidArgument("%s", err.Error())
			}
			if _, err := s.Run(ctx, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}
