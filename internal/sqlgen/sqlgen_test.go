package sqlgen

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebb-sync/ebb/internal/adapter"
)

func take(n int64) *int64 { return &n }

func TestDialectDefaultNamespace(t *testing.T) {
	assert.Equal(t, "main", SQLite.DefaultNamespace())
	assert.Equal(t, "public", Postgres.DefaultNamespace())
}

// Statement texts are compared against golden files; arguments are asserted
// inline since they carry the actual values.
func TestStatementGolden(t *testing.T) {
	g := goldie.New(t)
	b := New(SQLite)

	t.Run("create", func(t *testing.T) {
		stmt := b.Create("Post", adapter.Row{"title": "T", "authorId": int64(1)})
		g.Assert(t, "create", []byte(stmt.Text+"\n"))
		assert.Equal(t, []any{int64(1), "T"}, stmt.Args)
	})

	t.Run("create_default_values", func(t *testing.T) {
		stmt := b.Create("Post", adapter.Row{})
		g.Assert(t, "create_default_values", []byte(stmt.Text+"\n"))
		assert.Empty(t, stmt.Args)
	})

	t.Run("create_many", func(t *testing.T) {
		stmt := b.CreateMany("Post", []adapter.Row{
			{"title": "a"},
			{"title": "b", "authorId": int64(1)},
		})
		g.Assert(t, "create_many", []byte(stmt.Text+"\n"))
		assert.Equal(t, []any{nil, "a", int64(1), "b"}, stmt.Args)
	})

	t.Run("find_unique", func(t *testing.T) {
		stmt, err := b.FindUnique(FindInput{Table: "Post", Where: map[string]any{"id": int64(1)}})
		require.NoError(t, err)
		g.Assert(t, "find_unique", []byte(stmt.Text+"\n"))
		assert.Equal(t, []any{int64(1)}, stmt.Args)
	})

	t.Run("find_many", func(t *testing.T) {
		stmt, err := b.FindMany(FindInput{
			Table:   "Post",
			Where:   map[string]any{"authorId": map[string]any{"in": []any{int64(1), int64(2)}}},
			Select:  []string{"title", "id"},
			OrderBy: []Order{{Field: "title", Desc: true}},
			Take:    take(5),
			Skip:    take(2),
		})
		require.NoError(t, err)
		g.Assert(t, "find_many", []byte(stmt.Text+"\n"))
		assert.Equal(t, []any{int64(1), int64(2)}, stmt.Args)
	})

	t.Run("find_many_range", func(t *testing.T) {
		stmt, err := b.FindMany(FindInput{
			Table: "Post",
			Where: map[string]any{"id": map[string]any{"gte": int64(1), "lt": int64(5)}},
		})
		require.NoError(t, err)
		g.Assert(t, "find_many_range", []byte(stmt.Text+"\n"))
		assert.Equal(t, []any{int64(1), int64(5)}, stmt.Args)
	})

	t.Run("update", func(t *testing.T) {
		stmt, err := b.Update("Post", adapter.Row{"title": "x"}, map[string]any{"id": int64(1)})
		require.NoError(t, err)
		g.Assert(t, "update", []byte(stmt.Text+"\n"))
		assert.Equal(t, []any{"x", int64(1)}, stmt.Args)
	})

	t.Run("update_many", func(t *testing.T) {
		stmt, err := b.UpdateMany("Post", adapter.Row{"authorId": int64(2)}, map[string]any{"authorId": int64(1)})
		require.NoError(t, err)
		g.Assert(t, "update_many", []byte(stmt.Text+"\n"))
		assert.Equal(t, []any{int64(2), int64(1)}, stmt.Args)
	})

	t.Run("delete", func(t *testing.T) {
		stmt, err := b.Delete("Post", map[string]any{"id": int64(1)})
		require.NoError(t, err)
		g.Assert(t, "delete", []byte(stmt.Text+"\n"))
		assert.Equal(t, []any{int64(1)}, stmt.Args)
	})

	t.Run("delete_all", func(t *testing.T) {
		stmt, err := b.Delete("Post", nil)
		require.NoError(t, err)
		g.Assert(t, "delete_all", []byte(stmt.Text+"\n"))
		assert.Empty(t, stmt.Args)
	})
}

func TestFindManyKeyFilterComposesWithUserWhere(t *testing.T) {
	b := New(SQLite)

	stmt, err := b.FindMany(FindInput{
		Table:   "Post",
		Where:   map[string]any{"published": int64(1)},
		Filters: []Fragment{InFilter("authorId", []any{int64(1), int64(3)})},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM Post WHERE (published = ?) AND (authorId IN (?, ?))",
		stmt.Text)
	assert.Equal(t, []any{int64(1), int64(1), int64(3)}, stmt.Args)
}

func TestFindSkipWithoutTake(t *testing.T) {
	b := New(SQLite)

	stmt, err := b.FindMany(FindInput{Table: "Post", Skip: take(3)})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM Post LIMIT -1 OFFSET 3", stmt.Text)
}

func TestWhereNilCompilesToIsNull(t *testing.T) {
	b := New(SQLite)

	stmt, err := b.FindMany(FindInput{Table: "Post", Where: map[string]any{"authorId": nil}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM Post WHERE (authorId IS NULL)", stmt.Text)
	assert.Empty(t, stmt.Args)
}
