package pgsqlkit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	cases := []struct {
		sql   string
		stmts []string
		rest  string
	}{
		{"SELECT 1", nil, "SELECT 1"},
		{"SELECT 1;", []string{"SELECT 1"}, ""},
		{"SELECT 1; SELECT 2;  ", []string{"SELECT 1", "SELECT 2"}, "  "},
		{"SELECT 1; SELECT", []string{"SELECT 1"}, " SELECT"},
		{";;", nil, ""},
		{"SELECT ';'", nil, "SELECT ';'"},
		{"SELECT ';';", []string{"SELECT ';'"}, ""},
		{`SELECT E'\';' ;`, []string{`SELECT E'\';'`}, ""},
		{`SELECT "a;b" FROM t;`, []string{`SELECT "a;b" FROM t`}, ""},
		{"SELECT 1 -- done;\n", nil, "SELECT 1 -- done;\n"},
		{"SELECT 1 /* ; */;", []string{"SELECT 1 /* ; */"}, ""},
		{
			"CREATE FUNCTION one() RETURNS int AS $$ SELECT 1; $$ LANGUAGE sql;",
			[]string{"CREATE FUNCTION one() RETURNS int AS $$ SELECT 1; $$ LANGUAGE sql"},
			"",
		},
		{"DO $body$ BEGIN PERFORM 1; END $body$", nil, "DO $body$ BEGIN PERFORM 1; END $body$"},
		{"SELECT $1;", []string{"SELECT $1"}, ""},
	}
	for _, tc := range cases {
		stmts, rest := SplitStatements(tc.sql)
		require.Equal(t, tc.stmts, stmts, tc.sql)
		require.Equal(t, tc.rest, rest, tc.sql)
	}
}

func TestCompactStatement(t *testing.T) {
	cases := map[string]string{
		"SELECT a\n   FROM t;\n":                  "SELECT a FROM t;",
		"SELECT 'a   b'  ,\t\"x  y\"":             `SELECT 'a   b' , "x  y"`,
		"SELECT 1 -- trailing note\nFROM t;":      "SELECT 1 FROM t;",
		"SELECT /* inline */ 1;":                  "SELECT 1;",
		"SELECT a/**/b":                           "SELECT a b",
		"SELECT $$  two  spaces  $$;":             "SELECT $$  two  spaces  $$;",
		"  \n ":                                   "",
		"-- only a comment":                       "",
		"SELECT 1; -- first\nSELECT 2; -- second": "SELECT 1; SELECT 2;",
	}
	for in, want := range cases {
		require.Equal(t, want, CompactStatement(in), in)
	}
}
