package executor

import (
	"strings"

	"github.com/relicdb/relicdb/internal/dberr"
	"github.com/relicdb/relicdb/internal/rid"
	"github.com/relicdb/relicdb/internal/sql/parser"
)

// Execute dispatches a parsed statement to the matching DDL/DML method.
func (e *Engine) Execute(stmt parser.Statement) (*Result, error) {
	switch s := stmt.(type) {
	case *parser.SelectStatement:
		return e.Select(s)
	case *parser.InsertStatement:
		return e.Insert(s)
	case *parser.UpdateStatement:
		return e.Update(s)
	case *parser.DeleteStatement:
		return e.Delete(s)
	case *parser.CreateTableStatement:
		return e.CreateTable(s)
	case *parser.DropTableStatement:
		return e.DropTable(s)
	case *parser.CreateIndexStatement:
		return e.CreateIndex(s)
	case *parser.DropIndexStatement:
		return e.DropIndex(s)
	case *parser.AlterTableStatement:
		return e.AlterTable(s)
	case *parser.TruncateStatement:
		return e.TruncateTable(s)
	case *parser.ExplainStatement:
		return e.Explain(s)
	default:
		return nil, dberr.Query(dberr.NotImplemented, "unsupported statement %T", stmt)
	}
}

// Explain executes the wrapped statement with index-usage tracking
// enabled and prepends the chosen plan to the statement's own result.
func (e *Engine) Explain(stmt *parser.ExplainStatement) (*Result, error) {
	var used []string
	prior := e.opts.OnIndexUsage
	e.opts.OnIndexUsage = func(name string, _ []rid.RecordID) { used = append(used, name) }
	defer func() { e.opts.OnIndexUsage = prior }()

	res, err := e.Execute(stmt.Statement)
	if err != nil {
		return nil, err
	}
	plan := "full heap scan"
	if len(used) > 0 {
		plan = "index scan via " + strings.Join(used, ", ")
	}
	return &Result{Message: "plan: " + plan + "\n" + res.String()}, nil
}

// ColumnSummary is a web/CLI-facing view of one table column.
type ColumnSummary struct {
	Name       string
	Type       string
	PrimaryKey bool
	NotNull    bool
}

// TableSummary is a web/CLI-facing view of one table's schema.
type TableSummary struct {
	Name       string
	Columns    []ColumnSummary
	PrimaryKey string
	RowCount   int64
}

// Tables lists every table name known to the catalog.
func (e *Engine) Tables() []string {
	infos := e.cat.ListTables()
	names := make([]string, len(infos))
	for i, t := range infos {
		names[i] = t.Name
	}
	return names
}

// TableSchema returns a display-friendly summary of a table's columns
// and row count, used by the web UI's table browser.
func (e *Engine) TableSchema(name string) (*TableSummary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, ok := e.cat.GetTable(name)
	if !ok {
		return nil, false
	}
	cols, err := e.cat.ListColumns(info.ID)
	if err != nil {
		return nil, false
	}
	summary := &TableSummary{Name: info.Name, Columns: make([]ColumnSummary, len(cols))}
	for i, c := range cols {
		summary.Columns[i] = ColumnSummary{Name: c.Name, Type: c.Type.String(), PrimaryKey: c.PrimaryKey, NotNull: c.NotNull}
		if c.PrimaryKey {
			summary.PrimaryKey = c.Name
		}
	}
	rows, err := e.fullHeapScan(info)
	if err == nil {
		summary.RowCount = int64(len(rows))
	}
	return summary, true
}
