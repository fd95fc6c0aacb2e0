package adapter

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the embedded-database adapter.
// Uses WAL mode for concurrent read access during writes.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite database at the given path.
// Applies required pragmas automatically. Use ":memory:" for tests.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &SQLite{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (a *SQLite) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// DB returns the underlying sql.DB for direct access.
// Use with caution - prefer the Queryer methods.
func (a *SQLite) DB() *sql.DB {
	return a.db
}

// DefaultNamespace returns SQLite's default schema name.
func (a *SQLite) DefaultNamespace() string {
	return "main"
}

// Query runs a statement on the connection pool and decodes all rows.
func (a *SQLite) Query(ctx context.Context, stmt Statement) ([]Row, error) {
	rows, err := a.db.QueryContext(ctx, stmt.Text, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return decodeRows(rows)
}

// Run executes a statement on the connection pool.
func (a *SQLite) Run(ctx context.Context, stmt Statement) (RunResult, error) {
	res, err := a.db.ExecContext(ctx, stmt.Text, stmt.Args...)
	if err != nil {
		return RunResult{}, fmt.Errorf("run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return RunResult{}, fmt.Errorf("rows affected: %w", err)
	}
	return RunResult{RowsAffected: affected}, nil
}

// Begin opens a transaction.
func (a *SQLite) Begin(ctx context.Context) (Tx, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Query(ctx context.Context, stmt Statement) ([]Row, error) {
	rows, err := t.tx.QueryContext(ctx, stmt.Text, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return decodeRows(rows)
}

func (t *sqliteTx) Run(ctx context.Context, stmt Statement) (RunResult, error) {
	res, err := t.tx.ExecContext(ctx, stmt.Text, stmt.Args...)
	if err != nil {
		return RunResult{}, fmt.Errorf("run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return RunResult{}, fmt.Errorf("rows affected: %w", err)
	}
	return RunResult{RowsAffected: affected}, nil
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }

// decodeRows scans every result row into a column → value map.
// Byte slices are copied to strings: SQLite reuses scan buffers, and TEXT
// columns round-trip as []byte through database/sql.
func decodeRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	out := []Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return out, nil
}
