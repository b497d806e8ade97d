package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querycanvas/internal/store"
)

// shopCatalog is the shared users/orders/products catalog.
var shopCatalog = filepath.Join("..", "..", "testdata", "catalog")

const usersOrdersDesign = `name: orders_by_user
instances:
  - {id: i1, relation: users}
  - {id: i2, relation: orders, x: 240}
connections:
  - {id: c1, from: i1.id, to: i2.user_id, kind: left}
`

const usersOrdersSQL = `SELECT
    users.id,
    users.email,
    users.manager_id,
    orders.id,
    orders.user_id,
    orders.total
FROM users
LEFT JOIN orders ON users.id = orders.user_id`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// seedStore draws each design in a fresh shell and saves it to a new
// store. Lines prefixed with ! must be rejected. It returns the store path.
func seedStore(t *testing.T, designs map[string][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "canvas.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	for name, lines := range designs {
		sh, _ := newTestShell(t, st)
		for _, line := range lines {
			if rejected, ok := strings.CutPrefix(line, "!"); ok {
				require.Error(t, sh.Execute(rejected), rejected)
				continue
			}
			require.NoError(t, sh.Execute(line), line)
		}
		runLines(t, sh, "save "+name)
		sh.Close()
	}
	return path
}
