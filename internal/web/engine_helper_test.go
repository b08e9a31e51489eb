package web

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/relicdb/relicdb/internal/catalog"
	"github.com/relicdb/relicdb/internal/executor"
	"github.com/relicdb/relicdb/internal/sql/lexer"
	"github.com/relicdb/relicdb/internal/sql/parser"
	"github.com/relicdb/relicdb/internal/storage"
)

// newTestEngine builds a fresh on-disk Engine rooted in a test temp
// directory, used by every web-layer test that needs a live database.
func newTestEngine(t *testing.T) *executor.Engine {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.OpenFileStore(filepath.Join(dir, "test.db"), true)
	if err != nil {
		t.Fatalf("opening file store: %v", err)
	}
	pm, err := storage.OpenPageManager(store, 64, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("opening page manager: %v", err)
	}
	cat, err := catalog.Open(pm, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	eng, err := executor.Open(dir, pm, cat, zap.NewNop().Sugar(), executor.Options{})
	if err != nil {
		t.Fatalf("opening engine: %v", err)
	}
	return eng
}

// runSQL parses and executes a single statement against eng, failing the
// test on any error.
func runSQL(t *testing.T, eng *executor.Engine, sql string) *executor.Result {
	t.Helper()

	l := lexer.New(sql)
	p := parser.New(l)
	stmt, err := p.Parse()
	if err != nil {
		t.Fatalf("failed to parse %q: %v", sql, err)
	}
	result, err := eng.Execute(stmt)
	if err != nil {
		t.Fatalf("failed to execute %q: %v", sql, err)
	}
	return result
}
