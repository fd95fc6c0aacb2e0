package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blogCUE = `
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
			id:       {type: "integer", auto: true}
			title:    {type: "text"}
			authorId: {type: "integer", nullable: true}
		}
		relations: {
			author: {
				name: "PostToAuthor", table: "Author"
				direction: "outgoing", arity: "one"
				from: "authorId", to: "id"
			}
		}
	}
}
`

func TestCompileCUE(t *testing.T) {
	reg, err := CompileCUE([]byte(blogCUE), "blog.cue")
	require.NoError(t, err)

	assert.Equal(t, []string{"Author", "Post"}, reg.TableNames())

	names, err := reg.FieldNames("Post")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "title", "authorId"}, names)

	fields, err := reg.Fields("Post")
	require.NoError(t, err)
	assert.True(t, fields["id"].AutoGenerated)
	assert.True(t, fields["id"].HasDefault, "auto implies default")
	assert.True(t, fields["authorId"].Nullable)

	rel, err := reg.RelationForField("Post", "author")
	require.NoError(t, err)
	assert.Equal(t, Outgoing, rel.Direction)
	assert.Equal(t, One, rel.Arity)
	assert.Equal(t, "authorId", rel.FromField)
	assert.Equal(t, "id", rel.ToField)

	rel, err = reg.RelationForField("Author", "posts")
	require.NoError(t, err)
	assert.Equal(t, Incoming, rel.Direction)
	assert.Equal(t, Many, rel.Arity)
}

func TestCompileCUEErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "missing tables",
			src:     `foo: {}`,
			wantErr: "tables struct is required",
		},
		{
			name: "missing field type",
			src: `tables: T: {
				fields: id: {auto: true}
			}`,
			wantErr: "type is required",
		},
		{
			name: "unknown field type",
			src: `tables: T: {
				fields: id: {type: "uuid7"}
			}`,
			wantErr: `unknown field type "uuid7"`,
		},
		{
			name: "bad direction",
			src: `tables: {
				T: {
					fields: {id: {type: "integer"}, uId: {type: "integer"}}
					relations: u: {name: "TToU", table: "U", direction: "sideways", arity: "one", from: "uId", to: "id"}
				}
				U: {fields: id: {type: "integer"}}
			}`,
			wantErr: "direction",
		},
		{
			name: "outgoing without from",
			src: `tables: {
				T: {
					fields: {id: {type: "integer"}}
					relations: u: {name: "TToU", table: "U", direction: "outgoing", arity: "one", to: "id"}
				}
				U: {fields: id: {type: "integer"}}
			}`,
			wantErr: "from is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileCUE([]byte(tt.src), tt.name+".cue")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompileCUEChecksRegistryInvariants(t *testing.T) {
	src := `tables: {
		T: {
			fields: {id: {type: "integer"}, uId: {type: "integer"}}
			relations: u: {name: "TToU", table: "U", direction: "outgoing", arity: "one", from: "uId", to: "id"}
		}
	}`
	_, err := CompileCUE([]byte(src), "bad.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table")
}
