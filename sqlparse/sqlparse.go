// Package sqlparse turns SQL text into a statement and the set of tables it
// reads or writes. It also computes query fingerprints.
package sqlparse

import (
	"errors"
	"fmt"
	"hash/crc32"
	"sort"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// ErrParse is returned for statements the parser does not understand.
var ErrParse = errors.New("sqlparse: cannot parse statement")

// Statement is a parsed SQL statement.
type Statement = sqlparser.Statement

// Parser implements the statement parser used by the cache.
type Parser struct{}

func (Parser) Parse(sql string) (Statement, error) {
	return Parse(sql)
}

func (Parser) ExtractTables(stmt Statement) []string {
	return ExtractTables(stmt)
}

// Parse parses a single statement. PostgreSQL style $n placeholders are
// accepted alongside ? and :name.
func Parse(sql string) (Statement, error) {
	stmt, err := sqlparser.Parse(rewritePlaceholders(sql))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if stmt == nil {
		return nil, fmt.Errorf("%w: empty statement", ErrParse)
	}
	return stmt, nil
}

// ExtractTables returns the lower-cased, sorted and de-duplicated names of
// the tables stmt references, including tables in subqueries and joins.
// Names are unqualified; aliases are not tables. A nil statement has none.
func ExtractTables(stmt Statement) []string {
	if stmt == nil {
		return nil
	}
	seen := make(map[string]struct{})
	add := func(t sqlparser.TableName) {
		name := strings.ToLower(t.Name.String())
		if name == "" || name == "dual" {
			return
		}
		seen[name] = struct{}{}
	}
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch n := node.(type) {
		case *sqlparser.AliasedTableExpr:
			if t, ok := n.Expr.(sqlparser.TableName); ok {
				add(t)
			}
		case *sqlparser.Insert:
			add(n.Table)
		case *sqlparser.DDL:
			add(n.Table)
			add(n.NewName)
		}
		return true, nil
	}, stmt)

	tables := make([]string, 0, len(seen))
	for t := range seen {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// Normalize collapses runs of whitespace to a single space and trims both
// ends.
func Normalize(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// Fingerprint returns the CRC-32 of the normalized SQL text as a decimal
// string. Statements differing only in whitespace share a fingerprint.
func Fingerprint(sql string) string {
	return strconv.FormatUint(uint64(crc32.ChecksumIEEE([]byte(Normalize(sql)))), 10)
}

// rewritePlaceholders turns $1 into :v1 outside of quoted text.
func rewritePlaceholders(sql string) string {
	if !strings.Contains(sql, "$") {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql) + 8)
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '$' && i+1 < len(sql) && isDigit(sql[i+1]):
			b.WriteString(":v")
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
