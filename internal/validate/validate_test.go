package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebb-sync/ebb/internal/schema"
)

func postTable() *schema.Table {
	return &schema.Table{
		Name: "Post",
		Fields: []schema.Field{
			{Name: "id", Type: schema.TypeInteger, AutoGenerated: true, HasDefault: true},
			{Name: "title", Type: schema.TypeText},
			{Name: "published", Type: schema.TypeBoolean},
			{Name: "authorId", Type: schema.TypeInteger, Nullable: true},
		},
		Relations: []schema.Relation{
			{Field: "author", Name: "PostToAuthor", Table: "Author", Direction: schema.Outgoing, Arity: schema.One, FromField: "authorId", ToField: "id"},
		},
	}
}

func TestValidateRequiredAndUnknownKeys(t *testing.T) {
	tbl := postTable()

	_, err := For(tbl, Create).Validate(map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `argument "data" is required`)

	_, err = For(tbl, Create).Validate(map[string]any{
		"data":  map[string]any{"title": "t"},
		"where": map[string]any{"id": 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown argument "where"`)

	_, err = For(tbl, FindUnique).Validate(map[string]any{"where": map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be empty")
}

func TestValidateDataFields(t *testing.T) {
	tbl := postTable()

	// Relation fields pass through for create.
	norm, err := For(tbl, Create).Validate(map[string]any{
		"data": map[string]any{
			"title":  "t",
			"author": map[string]any{"create": map[string]any{"name": "a"}},
		},
	})
	require.NoError(t, err)
	data := norm["data"].(map[string]any)
	assert.Contains(t, data, "author")

	// Unknown fields are path-qualified.
	_, err = For(tbl, Create).Validate(map[string]any{
		"data": map[string]any{"caption": "t"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.caption")

	// CreateMany rejects relation fields.
	_, err = For(tbl, CreateMany).Validate(map[string]any{
		"data": []any{
			map[string]any{"title": "t", "author": map[string]any{"create": map[string]any{}}},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested relation fields are not supported")
}

func TestValidateWhere(t *testing.T) {
	tbl := postTable()

	// Relation filters are rejected.
	_, err := For(tbl, FindMany).Validate(map[string]any{
		"where": map[string]any{"author": map[string]any{"name": "a"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation filters are not supported")

	// Operator objects are fine for non-sync reads.
	norm, err := For(tbl, FindMany).Validate(map[string]any{
		"where": map[string]any{"id": map[string]any{"in": []any{1, 2}}},
	})
	require.NoError(t, err)
	assert.Contains(t, norm["where"].(map[string]any), "id")
}

func TestValidateSelectStripsCount(t *testing.T) {
	tbl := postTable()

	norm, err := For(tbl, FindMany).Validate(map[string]any{
		"select": map[string]any{"title": true, "_count": true},
	})
	require.NoError(t, err)
	sel := norm["select"].(map[string]any)
	assert.Contains(t, sel, "title")
	assert.NotContains(t, sel, "_count")
}

func TestValidateIncludeStripsNestedCount(t *testing.T) {
	tbl := postTable()

	norm, err := For(tbl, FindMany).Validate(map[string]any{
		"include": map[string]any{
			"author": map[string]any{
				"select": map[string]any{"name": true, "_count": true},
			},
			"_count": true,
		},
	})
	require.NoError(t, err)
	inc := norm["include"].(map[string]any)
	assert.NotContains(t, inc, "_count")
	sel := inc["author"].(map[string]any)["select"].(map[string]any)
	assert.NotContains(t, sel, "_count")
	assert.Contains(t, sel, "name")
}

func TestValidateOrderByAndPagination(t *testing.T) {
	tbl := postTable()

	norm, err := For(tbl, FindMany).Validate(map[string]any{
		"orderBy": map[string]any{"title": "asc"},
		"take":    float64(10),
		"skip":    2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), norm["take"])
	assert.Equal(t, int64(2), norm["skip"])
	assert.Len(t, norm["orderBy"], 1)

	_, err = For(tbl, FindMany).Validate(map[string]any{
		"orderBy": map[string]any{"title": "sideways"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"asc" or "desc"`)

	_, err = For(tbl, FindMany).Validate(map[string]any{"take": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be an integer")
}

func TestValidateSync(t *testing.T) {
	tbl := postTable()

	// Raw string where passes through.
	norm, err := For(tbl, Sync).Validate(map[string]any{"where": "this.published = true"})
	require.NoError(t, err)
	assert.Equal(t, "this.published = true", norm["where"])

	// Scalar equality only: operator objects are rejected.
	_, err = For(tbl, Sync).Validate(map[string]any{
		"where": map[string]any{"id": map[string]any{"gt": 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scalar equality only")

	// Optional subscription key.
	norm, err = For(tbl, Sync).Validate(map[string]any{"key": "my-shape"})
	require.NoError(t, err)
	assert.Equal(t, "my-shape", norm["key"])
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	tbl := postTable()

	input := map[string]any{
		"select": map[string]any{"title": true, "_count": true},
	}
	_, err := For(tbl, FindMany).Validate(input)
	require.NoError(t, err)
	assert.Contains(t, input["select"].(map[string]any), "_count")
}
