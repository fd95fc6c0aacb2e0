package engine

import (
	"context"

	"github.com/ebb-sync/ebb/internal/adapter"
	"github.com/ebb-sync/ebb/internal/txn"
	"github.com/ebb-sync/ebb/internal/validate"
)

// Delete removes one record identified by a unique where and returns it as
// it was before deletion.
func (e *Engine) Delete(ctx context.Context, table string, input map[string]any) (adapter.Row, error) {
	_, norm, err := e.validated(table, validate.Delete, input)
	if err != nil {
		return nil, err
	}
	where, _ := norm["where"].(map[string]any)
	sel, _ := norm["select"].(map[string]any)

	return plan(ctx, e, func(ctx context.Context, s *txn.Session) (adapter.Row, error) {
		return e.delete(ctx, s, table, where, sel)
	})
}

// delete is the in-transaction delete planner: fetch the record without
// select widening so it can be returned, then delete by the caller's where.
func (e *Engine) delete(ctx context.Context, s *txn.Session, table string, where, sel map[string]any) (adapter.Row, error) {
	row, err := e.findUnique(ctx, s, table, findArgs{where: where, sel: sel}, false)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, recordNotFound("Delete")
	}

	transformed, err := e.transformWhere(s, table, where)
	if err != nil {
		return nil, err
	}
	stmt, err := e.gen.Delete(table, transformed)
	if err != nil {
		return nil, invalidArgument("%s", err.Error())
	}
	if _, err := s.Run(ctx, stmt); err != nil {
		return nil, err
	}
	return row, nil
}
