// Package web's validation helpers guard the table-name path parameter
// before it gets interpolated into a synthesized SQL string: handlers build
// queries like "SELECT * FROM <name> LIMIT ... OFFSET ..." by fmt.Sprintf
// rather than bind parameters, so an unchecked name is a SQL injection
// vector as soon as it reaches the lexer.
package web

import "regexp"

// identifierPattern matches valid SQL identifiers: a leading letter or
// underscore, then any run of letters, digits, and underscores.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsValidIdentifier reports whether s could be a table or column name:
// non-empty, starting with a letter or underscore, with no spaces,
// quotes, or SQL punctuation that could escape a synthesized query.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	return identifierPattern.MatchString(s)
}

// ValidTypes is the list of canonical column type names the parser accepts
// in a CREATE TABLE/ALTER TABLE column definition (see sql/parser's
// parseDataType); aliases the parser also takes, such as INT, REAL and
// BOOL, are not listed.
var ValidTypes = []string{
	"INTEGER", "BIGINT", "FLOAT", "DOUBLE", "TEXT", "VARCHAR", "BOOLEAN",
	"DATE", "TIMESTAMP",
}

// IsValidType reports whether t is one of ValidTypes.
func IsValidType(t string) bool {
	for _, vt := range ValidTypes {
		if t == vt {
			return true
		}
	}
	return false
}
