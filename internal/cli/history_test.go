package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compiledHistory compiles the orders design under three dialects into a
// new store and returns its path.
func compiledHistory(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "canvas.db")
	design := writeFile(t, dir, "orders.yaml", usersOrdersDesign)

	for _, dialect := range []string{"plain", "mysql", "ansi"} {
		_, err := execute(NewCompileCommand(&RootOptions{Format: "text", DB: dbPath, Dialect: dialect}), shopCatalog, design)
		require.NoError(t, err)
	}
	return dbPath
}

func TestHistoryMissingDatabase(t *testing.T) {
	_, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "orders_by_user")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistoryText(t *testing.T) {
	dbPath := compiledHistory(t)

	out, err := execute(NewHistoryCommand(&RootOptions{Format: "text", DB: dbPath}), "orders_by_user")
	require.NoError(t, err)
	assert.Regexp(t, `^-- #1  [0-9a-f]{12}  dialect=plain\nSELECT\n`, out)
	assert.Contains(t, out, "LEFT JOIN orders ON users.id = orders.user_id\n\n-- #2  ")
	assert.Contains(t, out, "dialect=mysql\n")
	assert.Contains(t, out, "LEFT JOIN \"orders\" ON \"users\".\"id\" = \"orders\".\"user_id\"\n")
}

func TestHistoryLimit(t *testing.T) {
	dbPath := compiledHistory(t)

	out, err := execute(NewHistoryCommand(&RootOptions{Format: "json", DB: dbPath}), "orders_by_user", "-n", "2")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Compilations, 2)
	assert.Equal(t, int64(2), resp.Data.Compilations[0].Seq)
	assert.Equal(t, "mysql", resp.Data.Compilations[0].Dialect)
	assert.Equal(t, "ansi", resp.Data.Compilations[1].Dialect)
}

func TestHistoryEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "canvas.db")

	out, err := execute(NewHistoryCommand(&RootOptions{Format: "text", DB: dbPath}), "orders_by_user")
	require.NoError(t, err)
	assert.Equal(t, "No compilations recorded for orders_by_user.\n", out)
}
