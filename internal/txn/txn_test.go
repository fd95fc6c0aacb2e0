package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebb-sync/ebb/internal/adapter"
	"github.com/ebb-sync/ebb/internal/schema"
)

func testExecutor(t *testing.T) *Executor {
	t.Helper()

	db, err := adapter.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Run(context.Background(), adapter.Statement{
		Text: "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)",
	})
	require.NoError(t, err)

	reg, err := schema.New(&schema.Table{
		Name: "notes",
		Fields: []schema.Field{
			{Name: "id", Type: schema.TypeInteger, AutoGenerated: true, HasDefault: true},
			{Name: "body", Type: schema.TypeText},
		},
	})
	require.NoError(t, err)

	return NewExecutor(db, reg)
}

func countNotes(t *testing.T, e *Executor) int {
	t.Helper()
	rows, _, err := e.ExecuteStatement(context.Background(), adapter.Statement{Text: "SELECT id FROM notes"}, false)
	require.NoError(t, err)
	return len(rows)
}

func TestTransactCommitsOnSuccess(t *testing.T) {
	e := testExecutor(t)

	got, err := Transact(context.Background(), e, func(ctx context.Context, s *Session) (int64, error) {
		res, err := s.Run(ctx, adapter.Statement{Text: "INSERT INTO notes (body) VALUES ('a')"})
		if err != nil {
			return 0, err
		}
		return res.RowsAffected, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
	assert.Equal(t, 1, countNotes(t, e))
}

func TestTransactRollsBackOnError(t *testing.T) {
	e := testExecutor(t)
	boom := errors.New("boom")

	_, err := Transact(context.Background(), e, func(ctx context.Context, s *Session) (any, error) {
		if _, err := s.Run(ctx, adapter.Statement{Text: "INSERT INTO notes (body) VALUES ('a')"}); err != nil {
			return nil, err
		}
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countNotes(t, e), "first error aborts the whole plan")
}

func TestTransactRollsBackOnPanic(t *testing.T) {
	e := testExecutor(t)

	require.Panics(t, func() {
		Transact(context.Background(), e, func(ctx context.Context, s *Session) (any, error) {
			s.Run(ctx, adapter.Statement{Text: "INSERT INTO notes (body) VALUES ('a')"})
			panic("mid-plan")
		})
	})
	assert.Equal(t, 0, countNotes(t, e))
}

func TestSessionFieldsForCaches(t *testing.T) {
	e := testExecutor(t)

	_, err := Transact(context.Background(), e, func(ctx context.Context, s *Session) (any, error) {
		f1, err := s.FieldsFor("notes")
		if err != nil {
			return nil, err
		}
		f2, err := s.FieldsFor("notes")
		if err != nil {
			return nil, err
		}
		assert.Equal(t, f1["body"], f2["body"])

		tr, err := s.TransformerFor("notes")
		if err != nil {
			return nil, err
		}
		assert.NotNil(t, tr)

		_, err = s.FieldsFor("missing")
		assert.Error(t, err)
		return nil, nil
	})
	require.NoError(t, err)
}

func TestExecuteStatementModes(t *testing.T) {
	e := testExecutor(t)
	ctx := context.Background()

	_, res, err := e.ExecuteStatement(ctx, adapter.Statement{
		Text: "INSERT INTO notes (body) VALUES (?), (?)", Args: []any{"a", "b"},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)

	rows, _, err := e.ExecuteStatement(ctx, adapter.Statement{Text: "SELECT body FROM notes ORDER BY id"}, false)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0]["body"])
}
