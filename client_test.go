package ebb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebb-sync/ebb/internal/engine"
	"github.com/ebb-sync/ebb/internal/schema"
)

func testClient(t *testing.T, cfg Config) *Client {
	t.Helper()

	reg, err := schema.CompileCUE([]byte(`
tables: {
	Author: {
		fields: {
			id:   {type: "integer", auto: true}
			name: {type: "text"}
		}
		relations: {
			posts: {name: "PostToAuthor", table: "Post", direction: "incoming", arity: "many"}
		}
	}
	Post: {
		fields: {
			id:        {type: "integer", auto: true}
			title:     {type: "text"}
			published: {type: "boolean"}
			authorId:  {type: "integer", nullable: true}
		}
		relations: {
			author: {
				name: "PostToAuthor", table: "Author"
				direction: "outgoing", arity: "one"
				from: "authorId", to: "id"
			}
		}
	}
}`), "client_test.cue")
	require.NoError(t, err)

	cfg.DatabasePath = ":memory:"
	cfg.Registry = reg
	client, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	for _, ddl := range []string{
		"CREATE TABLE Author (id INTEGER PRIMARY KEY, name TEXT)",
		"CREATE TABLE Post (id INTEGER PRIMARY KEY, title TEXT, published INTEGER, authorId INTEGER)",
	} {
		_, err := client.UnsafeExec(ctx, ddl)
		require.NoError(t, err)
	}
	return client
}

func TestOpenRequiresRegistry(t *testing.T) {
	_, err := Open(Config{DatabasePath: ":memory:"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Registry is required")

	_, err = Open(Config{Registry: &schema.Registry{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DatabasePath or Adapter")
}

func TestTableOperationSurface(t *testing.T) {
	client := testClient(t, Config{})
	ctx := context.Background()
	posts := client.Table("Post")

	created, err := posts.Create(ctx, Input{
		"data": Input{
			"title":     "T",
			"published": true,
			"author":    Input{"create": Input{"name": "A"}},
		},
		"include": Input{"author": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "T", created["title"])
	assert.Equal(t, int64(1), created["published"], "booleans stored as integers")
	assert.Equal(t, "A", created["author"].(Row)["name"])

	found, err := posts.FindFirst(ctx, Input{"where": Input{"published": true}})
	require.NoError(t, err)
	assert.Equal(t, created["id"], found["id"])

	updated, err := posts.Update(ctx, Input{
		"where": Input{"id": created["id"]},
		"data":  Input{"title": "T2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "T2", updated["title"])

	count, err := posts.UpdateMany(ctx, Input{"data": Input{"published": false}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	deleted, err := posts.Delete(ctx, Input{"where": Input{"id": created["id"]}})
	require.NoError(t, err)
	assert.Equal(t, "T2", deleted["title"])

	all, err := posts.FindMany(ctx, Input{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUnknownTableFailsLazily(t *testing.T) {
	client := testClient(t, Config{})

	_, err := client.Table("Comment").FindMany(context.Background(), Input{})
	require.Error(t, err)
	assert.True(t, engine.IsInvalidArgument(err))
}

type fakeShapes struct {
	shapes []engine.Shape
	keys   []string
}

func (f *fakeShapes) Subscribe(shapes []engine.Shape, key string) error {
	f.shapes = shapes
	f.keys = append(f.keys, key)
	return nil
}

func TestSync(t *testing.T) {
	shapes := &fakeShapes{}
	client := testClient(t, Config{Shapes: shapes})
	ctx := context.Background()

	res, err := client.Table("Post").Sync(ctx, Input{
		"where":   Input{"published": true},
		"include": Input{"author": true},
		"key":     "posts-shape",
	})
	require.NoError(t, err)
	assert.Equal(t, "posts-shape", res.Key)

	require.Len(t, shapes.shapes, 2, "root plus included table")
	var root engine.Shape
	for _, s := range shapes.shapes {
		if s.Table == "Post" {
			root = s
		}
	}
	assert.Equal(t, "(this.published = true)", root.Where)
	assert.Equal(t, []string{"author"}, root.Include)

	// A missing key gets a generated one.
	res, err = client.Table("Post").Sync(ctx, Input{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Key)
	assert.NotEqual(t, "posts-shape", res.Key)
}

func TestSyncWithoutShapeManager(t *testing.T) {
	client := testClient(t, Config{})
	_, err := client.Table("Post").Sync(context.Background(), Input{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no shape manager")
}

type fakeNotifier struct {
	tables [][]string
}

func (n *fakeNotifier) Subscribe(tables []string, fn func()) func() {
	n.tables = append(n.tables, tables)
	return func() {}
}

func TestLiveQueries(t *testing.T) {
	notifier := &fakeNotifier{}
	client := testClient(t, Config{Notifier: notifier})
	ctx := context.Background()

	_, err := client.Table("Author").Create(ctx, Input{
		"data": Input{"name": "A", "posts": Input{"create": Input{"title": "p", "published": false}}},
	})
	require.NoError(t, err)

	liveQuery, err := client.Table("Author").LiveMany(Input{"include": Input{"posts": true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Author", "Post"}, liveQuery.Tables())

	rows, tables, err := liveQuery.Run(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Author", "Post"}, tables)

	liveQuery.Subscribe(func() {})
	require.Len(t, notifier.tables, 1)
	assert.Equal(t, []string{"Author", "Post"}, notifier.tables[0])

	one, err := client.Table("Author").LiveUnique(Input{"where": Input{"name": "A"}})
	require.NoError(t, err)
	rows, _, err = one.Run(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

type fakeReplication struct {
	set     map[string]bool
	cleared []string
}

func (f *fakeReplication) SetTableTransform(name string, transform func(Row) Row) error {
	if f.set == nil {
		f.set = map[string]bool{}
	}
	f.set[name] = true
	return nil
}

func (f *fakeReplication) ClearTableTransform(name string) error {
	f.cleared = append(f.cleared, name)
	return nil
}

func TestReplicationTransforms(t *testing.T) {
	repl := &fakeReplication{}
	client := testClient(t, Config{Replication: repl})

	require.NoError(t, client.Table("Post").SetReplicationTransform(func(r Row) Row { return r }))
	assert.True(t, repl.set["main.Post"], "qualified by the dialect's default namespace")

	require.NoError(t, client.Table("Post").ClearReplicationTransform())
	assert.Equal(t, []string{"main.Post"}, repl.cleared)
}

func TestRawQueryAndUnsafeExec(t *testing.T) {
	client := testClient(t, Config{})
	ctx := context.Background()

	_, err := client.UnsafeExec(ctx, "INSERT INTO Post (id, title) VALUES (1, 'p')")
	require.NoError(t, err)

	rows, err := client.RawQuery(ctx, "SELECT title FROM Post WHERE id = ?", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "p", rows[0]["title"])

	_, err = client.RawQuery(ctx, "DELETE FROM Post")
	require.Error(t, err)
	assert.True(t, engine.IsUnsupported(err))
}
