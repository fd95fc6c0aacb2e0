package engine

import (
	"context"

	"github.com/ebb-sync/ebb/internal/adapter"
	"github.com/ebb-sync/ebb/internal/txn"
	"github.com/ebb-sync/ebb/internal/validate"
)

// UpdateMany updates all matching rows with one statement and no nested
// traversal. Returns the number of affected rows.
func (e *Engine) UpdateMany(ctx context.Context, table string, input map[string]any) (int64, error) {
	tbl, norm, err := e.validated(table, validate.UpdateMany, input)
	if err != nil {
		return 0, err
	}
	data, _ := norm["data"].(map[string]any)
	where, _ := norm["where"].(map[string]any)
	if len(data) == 0 {
		return 0, invalidArgument("updateMany: data must not be empty")
	}

	tr := &validate.Transformer{Fields: fieldMap(tbl)}
	stmt, err := e.gen.UpdateMany(table, adapter.Row(tr.ConvertValues(data)), tr.ConvertValues(where))
	if err != nil {
		return 0, invalidArgument("%s", err.Error())
	}
	_, res, err := e.exec.ExecuteStatement(ctx, stmt, true)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// DeleteMany deletes all matching rows with one statement. Returns the
// number of deleted rows.
func (e *Engine) DeleteMany(ctx context.Context, table string, input map[string]any) (int64, error) {
	tbl, norm, err := e.validated(table, validate.DeleteMany, input)
	if err != nil {
		return 0, err
	}
	where, _ := norm["where"].(map[string]any)

	tr := &validate.Transformer{Fields: fieldMap(tbl)}
	stmt, err := e.gen.Delete(table, tr.ConvertValues(where))
	if err != nil {
		return 0, invalidArgument("%s", err.Error())
	}
	_, res, err := e.exec.ExecuteStatement(ctx, stmt, true)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// updateMany is the in-transaction variant used by nested updateMany
// operations.
func (e *Engine) updateMany(ctx context.Context, s *txn.Session, table string, where, data map[string]any) (int64, error) {
	if len(data) == 0 {
		return 0, invalidArgument("updateMany: data must not be empty")
	}
	tr, err := s.TransformerFor(table)
	if err != nil {
		return 0, wrapSchemaErr(err)
	}
	stmt, err := e.gen.UpdateMany(table, adapter.Row(tr.ConvertValues(data)), tr.ConvertValues(where))
	if err != nil {
		return 0, invalidArgument("%s", err.Error())
	}
	res, err := s.Run(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
