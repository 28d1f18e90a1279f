package sqlparse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractTables(t *testing.T) {
	assert := require.New(t)

	tests := map[string]struct {
		sql    string
		tables []string
	}{
		"single table": {
			sql:    "SELECT * FROM products",
			tables: []string{"products"},
		},
		"join with aliases": {
			sql: `SELECT p.name, c.email FROM Products p
				JOIN customers c ON c.id = p.owner
				JOIN orders o ON o.product = p.id`,
			tables: []string{"customers", "orders", "products"},
		},
		"subquery": {
			sql:    "SELECT name FROM products WHERE id IN (SELECT product FROM orders WHERE qty > ?)",
			tables: []string{"orders", "products"},
		},
		"derived table": {
			sql:    "SELECT t.n FROM (SELECT count(*) AS n FROM orders) AS t",
			tables: []string{"orders"},
		},
		"qualified name": {
			sql:    "SELECT * FROM shop.products",
			tables: []string{"products"},
		},
		"duplicates": {
			sql:    "SELECT * FROM orders a JOIN orders b ON a.parent = b.id",
			tables: []string{"orders"},
		},
		"positional placeholders": {
			sql:    "SELECT name, pages FROM books WHERE pages > $1 AND author = $2",
			tables: []string{"books"},
		},
		"insert": {
			sql:    "INSERT INTO audit (id, msg) VALUES (:id, :msg)",
			tables: []string{"audit"},
		},
		"update": {
			sql:    "UPDATE customers SET email = ? WHERE id = ?",
			tables: []string{"customers"},
		},
		"dual": {
			sql:    "SELECT 1 FROM dual",
			tables: []string{},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			stmt, err := Parse(tc.sql)
			assert.Nil(err)
			assert.Equal(tc.tables, ExtractTables(stmt))
		})
	}

	assert.Nil(ExtractTables(nil))
}

func TestParseError(t *testing.T) {
	assert := require.New(t)

	_, err := Parse("SELEKT nothing")
	assert.True(errors.Is(err, ErrParse))

	var p Parser
	_, err = p.Parse("")
	assert.True(errors.Is(err, ErrParse))
}

func TestRewritePlaceholders(t *testing.T) {
	assert := require.New(t)

	tests := map[string]string{
		"SELECT 1":                        "SELECT 1",
		"WHERE a = $1 AND b = $12":        "WHERE a = :v1 AND b = :v12",
		"WHERE a = '$1' AND b = $2":       "WHERE a = '$1' AND b = :v2",
		`WHERE "col$1" = $1`:              `WHERE "col$1" = :v1`,
		"WHERE price = '$' || $1":         "WHERE price = '$' || :v1",
		"WHERE a = 'it''s $1' AND b = $3": "WHERE a = 'it''s $1' AND b = :v3",
		"SELECT $ FROM t":                 "SELECT $ FROM t",
	}
	for in, want := range tests {
		assert.Equal(want, rewritePlaceholders(in), in)
	}
}

func TestFingerprint(t *testing.T) {
	assert := require.New(t)

	a := Fingerprint("SELECT * FROM blah")
	assert.Equal(a, Fingerprint("  SELECT *\n\tFROM   blah "))
	assert.NotEqual(a, Fingerprint("SELECT * FROM blah2"))
	assert.NotEqual(a, Fingerprint("select * from blah"))
	assert.Regexp(`^[0-9]+$`, a)
	assert.Equal("SELECT * FROM blah", Normalize("SELECT  *\nFROM blah\n"))
}
