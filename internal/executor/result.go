package executor

import (
	"fmt"
	"strings"

	"github.com/relicdb/relicdb/internal/record"
)

// Result is the outcome of executing one statement: either a message
// (DDL, or a DML row count) or a projected result set.
type Result struct {
	Columns  []string
	Rows     [][]record.Value
	RowCount int
	Message  string
}

// String renders a bordered ASCII table for CLI output.
func (r *Result) String() string {
	if r.Message != "" {
		return r.Message
	}
	if len(r.Rows) == 0 {
		return "(no rows)"
	}

	widths := make([]int, len(r.Columns))
	for i, col := range r.Columns {
		widths[i] = len(col)
	}
	for _, row := range r.Rows {
		for i, val := range row {
			if s := valueDisplay(val); len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	border := func(sb *strings.Builder) {
		sb.WriteString("+")
		for _, w := range widths {
			sb.WriteString(strings.Repeat("-", w+2))
			sb.WriteString("+")
		}
		sb.WriteString("\n")
	}

	var sb strings.Builder
	border(&sb)
	sb.WriteString("|")
	for i, col := range r.Columns {
		sb.WriteString(fmt.Sprintf(" %-*s |", widths[i], col))
	}
	sb.WriteString("\n")
	border(&sb)
	for _, row := range r.Rows {
		sb.WriteString("|")
		for i, val := range row {
			sb.WriteString(fmt.Sprintf(" %-*s |", widths[i], valueDisplay(val)))
		}
		sb.WriteString("\n")
	}
	border(&sb)
	sb.WriteString(fmt.Sprintf("(%d rows)\n", len(r.Rows)))
	return sb.String()
}

func valueDisplay(v record.Value) string {
	if v.Null {
		return "NULL"
	}
	return v.String()
}
