package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querycanvas/internal/compiler"
	"github.com/roach88/querycanvas/internal/ir"
)

func rel(id string, cols ...string) *ir.RelationDefinition {
	r := &ir.RelationDefinition{ID: id, Name: id}
	for i, c := range cols {
		r.Columns = append(r.Columns, ir.ColumnDefinition{
			ID: id + "." + c, Name: c, Type: "integer", IsPrimaryKey: i == 0,
		})
	}
	return r
}

func TestNewPreservesOrder(t *testing.T) {
	c, err := New([]*ir.RelationDefinition{rel("users", "id"), rel("orders", "id"), rel("products", "id")})
	require.NoError(t, err)

	list := c.List()
	require.Len(t, list, 3)
	assert.Equal(t, "users", list[0].ID)
	assert.Equal(t, "orders", list[1].ID)
	assert.Equal(t, "products", list[2].ID)
	assert.Equal(t, 3, c.Len())
}

func TestNewCopiesDefinitions(t *testing.T) {
	users := rel("users", "id", "email")
	c := MustNew(users)

	users.Columns[0].Name = "mutated"
	users.Name = "mutated"

	got, ok := c.Lookup("users")
	require.True(t, ok)
	assert.Equal(t, "users", got.Name)
	assert.Equal(t, "id", got.Columns[0].Name)
}

func TestNewRejectsInvalid(t *testing.T) {
	_, err := New([]*ir.RelationDefinition{rel("users", "id"), rel("users", "id")})
	require.Error(t, err)

	var ice *InvalidCatalogError
	require.ErrorAs(t, err, &ice)
	require.Len(t, ice.Errors, 1)
	assert.Equal(t, compiler.ErrDuplicateRelationID, ice.Errors[0].Code)
}

func TestLookupAndResolve(t *testing.T) {
	renamed := rel("order_items", "id")
	renamed.Name = "line_items"
	c := MustNew(rel("users", "id"), renamed)

	_, ok := c.Lookup("missing")
	assert.False(t, ok)

	r, ok := c.Resolve("line_items")
	require.True(t, ok, "resolve falls back to display name")
	assert.Equal(t, "order_items", r.ID)

	r, ok = c.Resolve("users")
	require.True(t, ok)
	assert.Equal(t, "users", r.ID)
}

func TestListReturnsCopy(t *testing.T) {
	c := MustNew(rel("users", "id"), rel("orders", "id"))
	list := c.List()
	list[0] = nil

	assert.NotNil(t, c.List()[0])
}

func TestLoadDirFixture(t *testing.T) {
	c, err := LoadDir(filepath.Join("..", "..", "testdata", "catalog"))
	require.NoError(t, err)

	require.Equal(t, 3, c.Len())
	users, ok := c.Lookup("users")
	require.True(t, ok)
	assert.Equal(t, "Registered accounts", users.Description)
	require.Len(t, users.Columns, 3)
	assert.Equal(t, []string{"id", "email", "manager_id"},
		[]string{users.Columns[0].Name, users.Columns[1].Name, users.Columns[2].Name})
}

func TestLoadDirErrors(t *testing.T) {
	t.Run("no cue files", func(t *testing.T) {
		_, err := LoadDir(t.TempDir())
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, ErrCodeNoFiles, le.Code)
	})

	t.Run("no relations", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "x.cue"), []byte("package x\n\nother: 1\n"), 0644))

		_, err := LoadDir(dir)
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, ErrCodeEmpty, le.Code)
	})

	t.Run("compile error carries position", func(t *testing.T) {
		dir := t.TempDir()
		src := "package x\n\nrelation: bad: {\n\tdescription: \"no columns\"\n}\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(src), 0644))

		_, err := LoadDir(dir)
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, ErrCodeBuildFailed, le.Code)
		assert.Contains(t, le.Message, "columns is required")
	})

	t.Run("validation failure", func(t *testing.T) {
		dir := t.TempDir()
		src := "package x\n\nrelation: bad: columns: [{name: \"id\", type: \"int\"}, {name: \"id\", type: \"int\"}]\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(src), 0644))

		_, err := LoadDir(dir)
		var ice *InvalidCatalogError
		require.ErrorAs(t, err, &ice)
		assert.Equal(t, compiler.ErrDuplicateColumn, ice.Errors[0].Code)
	})
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	src := `relations:
  - id: users
    description: Registered accounts
    columns:
      - {name: id, type: integer, primary_key: true}
      - {name: email, type: text}
  - id: orders
    columns:
      - {name: id, type: integer, primary_key: true}
      - {name: user_id, type: integer}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	users, ok := c.Lookup("users")
	require.True(t, ok)
	assert.Equal(t, "users", users.Name, "name defaults to id")
	assert.True(t, users.Columns[0].IsPrimaryKey)
	assert.Equal(t, "users.email", users.Columns[1].ID)
}

func TestLoadYAMLRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("relations:\n  - id: users\n    colums: []\n"), 0644))

	_, err := LoadYAML(path)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeParseFailed, le.Code)
}

func TestLoadMissingPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}
