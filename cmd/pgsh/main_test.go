package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/pgsqlkit"
	"github.com/tuannm99/pgsqlkit/internal"
)

func TestTakeStatements(t *testing.T) {
	var buf strings.Builder

	buf.WriteString("SELECT 1")
	require.Empty(t, takeStatements(&buf))
	require.Equal(t, "SELECT 1", buf.String())

	buf.WriteString("\n, ';' AS semi; SELECT")
	require.Equal(t, []string{"SELECT 1\n, ';' AS semi"}, takeStatements(&buf))
	require.Equal(t, "SELECT", buf.String())

	buf.Reset()
	buf.WriteString("CREATE FUNCTION one() RETURNS int AS $$\n  SELECT 1;")
	require.Empty(t, takeStatements(&buf))
	buf.WriteString("\n$$ LANGUAGE sql;")
	require.Equal(t, []string{"CREATE FUNCTION one() RETURNS int AS $$\n  SELECT 1;\n$$ LANGUAGE sql"}, takeStatements(&buf))
	require.Zero(t, buf.Len())

	// a line comment ends at the newline the shell inserts between lines
	buf.WriteString("SELECT 2 -- two;")
	require.Empty(t, takeStatements(&buf))
	buf.WriteString("\n;")
	stmts := takeStatements(&buf)
	require.Equal(t, []string{"SELECT 2 -- two;"}, stmts)
	require.Equal(t, "SELECT 2;", historyLine(stmts[0]))
}

func TestHistory_AddAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", ".pgsh_history")

	h, err := openHistory(path, 10)
	require.NoError(t, err)
	require.Empty(t, h.entries)

	require.NoError(t, h.add("SELECT 1;"))
	require.NoError(t, h.add("SELECT 1"))
	require.NoError(t, h.add("SELECT 'a  b' -- note\n  FROM t;"))
	require.NoError(t, h.add("   "))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "SELECT 1;\nSELECT 'a  b' FROM t;\n", string(raw))

	again, err := openHistory(path, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"SELECT 'a  b' FROM t;"}, again.entries)
}

func TestHistory_Write(t *testing.T) {
	h, err := openHistory("", 0)
	require.NoError(t, err)
	for _, s := range []string{"SELECT 1;", "SELECT 2;", "SELECT 3;"} {
		require.NoError(t, h.add(s))
	}

	var out bytes.Buffer
	h.write(&out, 2)
	require.Equal(t, "    2  SELECT 2;\n    3  SELECT 3;\n", out.String())

	out.Reset()
	h.write(&out, 0)
	require.Equal(t, 3, strings.Count(out.String(), "\n"))
}

func TestNewConnection_FromConfig(t *testing.T) {
	t.Cleanup(pgsqlkit.ResetDefaultConnection)

	cfg, err := internal.LoadConfig("", nil)
	require.NoError(t, err)
	cfg.Connection.User = "ann"
	cfg.Connection.Encoding = "MACROMAN"
	cfg.Connection.LogSQL = true

	conn, err := newConnection(cfg)
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 dbname=template1 user=ann", conn.MakeConnectionString())
	require.Equal(t, pgsqlkit.MacRoman, conn.Encoding())
	require.True(t, conn.LogSQL)

	cfg.Connection.Encoding = "KLINGON"
	_, err = newConnection(cfg)
	require.Error(t, err)
}
