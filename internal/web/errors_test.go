package web

import (
	"errors"
	"strings"
	"testing"

	"github.com/relicdb/relicdb/internal/dberr"
)

func TestGetErrorHintKnownCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"table not found", dberr.Query(dberr.TableNotFound, "table %q", "users"), "table name"},
		{"column not found", dberr.Query(dberr.ColumnNotFound, "column %q", "age"), "column name"},
		{"duplicate key", dberr.Index(dberr.DuplicateKey, "key already present"), "already exists"},
		{"table exists", dberr.Query(dberr.TableExists, "table %q", "users"), "Drop or rename"},
		{"ambiguous column", dberr.Query(dberr.AmbiguousColumn, "column %q", "id"), "Qualify"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hint := GetErrorHint(tt.err)
			if hint == "" {
				t.Fatalf("expected a hint for %v, got empty string", tt.err)
			}
			if !strings.Contains(hint, tt.contains) {
				t.Errorf("expected hint for %v to contain %q, got %q", tt.err, tt.contains, hint)
			}
		})
	}
}

func TestGetErrorHintStringWrapHasNoCode(t *testing.T) {
	wrapped := errors.New("wrapper: " + dberr.Query(dberr.TableNotFound, "table %q", "users").Error())
	// dberr.CodeOf only follows Unwrap() chains, so a plain errors.New of
	// the formatted message carries no recoverable code.
	if hint := GetErrorHint(wrapped); hint != "" {
		t.Errorf("expected no hint for a plain-string wrap with no dberr.Code, got %q", hint)
	}
}

func TestGetErrorHintSyntaxErrorFallback(t *testing.T) {
	err := errors.New("parse error: syntax error near SELECT")
	hint := GetErrorHint(err)
	if !strings.Contains(hint, "syntax") {
		t.Errorf("expected a syntax hint for a lexer/parser error with no dberr.Code, got %q", hint)
	}
}

func TestGetErrorHintNoMatch(t *testing.T) {
	if hint := GetErrorHint(errors.New("connection reset by peer")); hint != "" {
		t.Errorf("expected empty hint for an unrecognized error, got %q", hint)
	}
	if hint := GetErrorHint(nil); hint != "" {
		t.Errorf("expected empty hint for a nil error, got %q", hint)
	}
}
