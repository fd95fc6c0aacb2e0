// Package txn wraps the adapter with the two execution modes the engine
// uses: single-statement execution and multi-statement transactional plans.
//
// A plan is a function holding the transactional handle for its whole
// duration; its error return is the single terminal outcome. Success commits
// and returns the value, failure rolls back and surfaces the error. Exactly
// one of the two happens per invocation.
package txn

import (
	"context"
	"fmt"

	"github.com/ebb-sync/ebb/internal/adapter"
	"github.com/ebb-sync/ebb/internal/schema"
	"github.com/ebb-sync/ebb/internal/validate"
)

// Executor owns the adapter and hands out transactional sessions.
type Executor struct {
	ad  adapter.Adapter
	reg *schema.Registry
}

// NewExecutor creates an Executor.
func NewExecutor(ad adapter.Adapter, reg *schema.Registry) *Executor {
	return &Executor{ad: ad, reg: reg}
}

// Adapter returns the wrapped adapter.
func (e *Executor) Adapter() adapter.Adapter {
	return e.ad
}

// Session is the handle a plan runs on: one transaction plus the per-table
// field descriptors the nested planners need for input conversion.
type Session struct {
	db  adapter.Queryer
	reg *schema.Registry

	fields map[string]map[string]schema.Field
}

// Query runs a statement inside the session's transaction.
func (s *Session) Query(ctx context.Context, stmt adapter.Statement) ([]adapter.Row, error) {
	return s.db.Query(ctx, stmt)
}

// Run executes a statement inside the session's transaction.
func (s *Session) Run(ctx context.Context, stmt adapter.Statement) (adapter.RunResult, error) {
	return s.db.Run(ctx, stmt)
}

// Registry returns the schema registry the session was opened with.
func (s *Session) Registry() *schema.Registry {
	return s.reg
}

// FieldsFor returns the field descriptors of a table, cached per session so
// nested planners share one lookup.
func (s *Session) FieldsFor(table string) (map[string]schema.Field, error) {
	if f, ok := s.fields[table]; ok {
		return f, nil
	}
	f, err := s.reg.Fields(table)
	if err != nil {
		return nil, err
	}
	s.fields[table] = f
	return f, nil
}

// TransformerFor returns the input transformer for a table, built over the
// session's cached field descriptors.
func (s *Session) TransformerFor(table string) (*validate.Transformer, error) {
	f, err := s.FieldsFor(table)
	if err != nil {
		return nil, err
	}
	return &validate.Transformer{Fields: f}, nil
}

// ExecuteStatement runs one statement outside any explicit transaction.
// Mutating statements go through Run, reads through Query.
func (e *Executor) ExecuteStatement(ctx context.Context, stmt adapter.Statement, mutating bool) ([]adapter.Row, adapter.RunResult, error) {
	if mutating {
		res, err := e.ad.Run(ctx, stmt)
		return nil, res, err
	}
	rows, err := e.ad.Query(ctx, stmt)
	return rows, adapter.RunResult{}, err
}

// Transact runs a plan inside one transaction. The plan's error is the
// single terminal outcome: nil commits, non-nil rolls back. A panic in the
// plan rolls back before propagating.
func Transact[T any](ctx context.Context, e *Executor, plan func(context.Context, *Session) (T, error)) (T, error) {
	var zero T

	tx, err := e.ad.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("begin transaction: %w", err)
	}

	s := &Session{db: tx, reg: e.reg, fields: make(map[string]map[string]schema.Field)}

	done := false
	defer func() {
		if !done {
			tx.Rollback()
		}
	}()

	value, err := plan(ctx, s)
	if err != nil {
		done = true
		if rbErr := tx.Rollback(); rbErr != nil {
			return zero, fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return zero, err
	}

	done = true
	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("commit transaction: %w", err)
	}
	return value, nil
}
