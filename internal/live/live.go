// Package live wraps a read operation into a re-runnable result that can be
// subscribed to table-change notifications.
package live

import (
	"context"

	"github.com/ebb-sync/ebb/internal/adapter"
)

// Notifier publishes table-change events. The engine only wires
// subscriptions up; delivery semantics belong to the implementation.
type Notifier interface {
	// Subscribe registers fn to run whenever any of the tables change.
	// The returned function cancels the registration.
	Subscribe(tables []string, fn func()) (cancel func())
}

// Runner executes the underlying read and returns its rows.
type Runner func(ctx context.Context) ([]adapter.Row, error)

// Result is a live query: a re-runnable read plus the set of tables it
// depends on, computed from the query's include tree.
type Result struct {
	tables   []string
	run      Runner
	notifier Notifier
}

// New creates a live Result.
func New(tables []string, run Runner, notifier Notifier) *Result {
	return &Result{tables: tables, run: run, notifier: notifier}
}

// Tables returns the tables the query depends on.
func (r *Result) Tables() []string {
	out := make([]string, len(r.tables))
	copy(out, r.tables)
	return out
}

// Run executes the underlying read and returns the rows together with the
// tracked tables.
func (r *Result) Run(ctx context.Context) ([]adapter.Row, []string, error) {
	rows, err := r.run(ctx)
	if err != nil {
		return nil, nil, err
	}
	return rows, r.Tables(), nil
}

// Subscribe registers fn against the change notifier for every tracked
// table. Without a notifier the registration is a no-op.
func (r *Result) Subscribe(fn func()) (cancel func()) {
	if r.notifier == nil {
		return func() {}
	}
	return r.notifier.Subscribe(r.Tables(), fn)
}
