// Package adapter defines the narrow database interface the query planners
// run against, plus the SQLite implementation.
//
// Statements are parameterized: Text with ? placeholders, Args bound by the
// driver. Rows are dynamic column → value maps; decoding is the adapter's
// job so the planners never touch database/sql directly.
package adapter

import "context"

// Statement is one parameterized SQL statement.
type Statement struct {
	Text string
	Args []any
}

// Row maps column names to scalar values. After include assembly a row may
// additionally hold relation fields containing a Row or a []Row.
type Row map[string]any

// RunResult reports the outcome of a mutating statement.
type RunResult struct {
	RowsAffected int64
}

// Queryer executes statements. Both the base connection and transactions
// implement it.
type Queryer interface {
	// Query runs a statement and decodes all result rows.
	Query(ctx context.Context, stmt Statement) ([]Row, error)

	// Run executes a statement that returns no rows.
	Run(ctx context.Context, stmt Statement) (RunResult, error)
}

// Tx is a transactional handle. Exactly one of Commit or Rollback terminates
// it; further calls on a terminated handle are errors from the driver.
type Tx interface {
	Queryer
	Commit() error
	Rollback() error
}

// Adapter is the full database surface the executor needs.
type Adapter interface {
	Queryer

	// Begin opens a transaction owned by a single top-level operation.
	Begin(ctx context.Context) (Tx, error)

	// DefaultNamespace is the dialect's default schema name:
	// "main" for SQLite, "public" for Postgres.
	DefaultNamespace() string

	Close() error
}
