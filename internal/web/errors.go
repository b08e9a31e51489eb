package web

import (
	"strings"

	"github.com/relicdb/relicdb/internal/dberr"
)

// errorHints maps a dberr.Code to a short, actionable hint appended to the
// API response so a client doesn't have to guess why a query failed.
var errorHints = map[dberr.Code]string{
	dberr.TableNotFound:   "Check the table name, or GET /api/tables to list what exists.",
	dberr.ColumnNotFound:  "Check the column name, or GET /api/tables/{name} to see its columns.",
	dberr.AmbiguousColumn: "Qualify the column with its table name (table.column).",
	dberr.DuplicateKey:    "A row with this key already exists.",
	dberr.TableExists:     "Drop or rename the existing table first.",
	dberr.SyntaxError:     "Check SQL syntax near the indicated position.",
	dberr.TypeError:       "Check that the value's type matches the column's declared type.",
	dberr.SchemaMismatch:  "A stored row does not match the table's current column list.",
}

// GetErrorHint returns a hint for err if it carries (directly or wrapped) a
// dberr.Code with a known hint. For errors with no dberr.Code in the chain,
// such as a lexer/parser error raised before execution reaches the engine,
// it falls back to matching the literal text "syntax error". Returns ""
// when nothing matches.
func GetErrorHint(err error) string {
	if err == nil {
		return ""
	}
	if code, ok := dberr.CodeOf(err); ok {
		if hint, ok := errorHints[code]; ok {
			return hint
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "syntax error") {
		return "Check SQL syntax near the indicated position."
	}
	return ""
}
