// Package dberr defines the stable, categorized error values used across
// the storage engine. Every layer below the SQL surface raises one of these
// instead of an ad hoc string so that callers — in particular the web API
// and the REPL — can switch on a stable Code rather than pattern-match
// error text.
package dberr

import "fmt"

// Category groups related codes for reporting purposes.
type Category string

const (
	CategoryStorage  Category = "storage"
	CategoryIndex    Category = "index"
	CategoryQuery    Category = "query"
	CategoryRecord   Category = "record"
	CategoryInternal Category = "internal"
)

// Code is a stable identifier for a specific failure mode. Intermediate
// layers may wrap an Error for context but must never translate its Code.
type Code string

const (
	// Storage
	PageFull            Code = "PAGE_FULL"
	InvalidPageType     Code = "INVALID_PAGE_TYPE"
	InvalidRecordFormat Code = "INVALID_RECORD_FORMAT"
	RecordTooLarge      Code = "RECORD_TOO_LARGE"
	NoFreeFrames        Code = "NO_FREE_FRAMES"
	IORead              Code = "IO_READ"
	IOWrite             Code = "IO_WRITE"

	// Index
	DuplicateKey  Code = "DUPLICATE_KEY"
	IndexNotFound Code = "INDEX_NOT_FOUND"

	// Query
	SyntaxError       Code = "SYNTAX_ERROR"
	TableNotFound     Code = "TABLE_NOT_FOUND"
	TableExists       Code = "TABLE_EXISTS"
	ColumnNotFound    Code = "COLUMN_NOT_FOUND"
	DuplicateColumn   Code = "DUPLICATE_COLUMN"
	AmbiguousColumn   Code = "AMBIGUOUS_COLUMN"
	TypeError         Code = "TYPE_ERROR"
	InvalidConstraint Code = "INVALID_CONSTRAINT"
	UnsupportedType   Code = "UNSUPPORTED_TYPE"
	NotImplemented    Code = "NOT_IMPLEMENTED"

	// Record
	SchemaMismatch Code = "SCHEMA_MISMATCH"

	// Internal
	InternalError   Code = "INTERNAL_ERROR"
	InvalidArgument Code = "INVALID_ARGUMENT"
)

// Error is the concrete type every dberr constructor returns. It satisfies
// the standard error interface and is recoverable from a wrapped chain via
// CodeOf.
type Error struct {
	Category Category
	Code     Code
	Message  string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a leaf error for the given category and code.
func New(cat Category, code Code, msg string) *Error {
	return &Error{Category: cat, Code: code, Message: msg}
}

// Newf is New with fmt.Sprintf-style formatting of the message.
func Newf(cat Category, code Code, format string, args ...any) *Error {
	return New(cat, code, fmt.Sprintf(format, args...))
}

func Storage(code Code, format string, args ...any) error {
	return Newf(CategoryStorage, code, format, args...)
}

func Index(code Code, format string, args ...any) error {
	return Newf(CategoryIndex, code, format, args...)
}

func Query(code Code, format string, args ...any) error {
	return Newf(CategoryQuery, code, format, args...)
}

func Record(code Code, format string, args ...any) error {
	return Newf(CategoryRecord, code, format, args...)
}

func Internal(code Code, format string, args ...any) error {
	return Newf(CategoryInternal, code, format, args...)
}

// CodeOf unwraps err (through any number of pkg/errors.Wrap layers) looking
// for a *Error and returns its Code. ok is false when no dberr.Error is
// anywhere in the chain.
func CodeOf(err error) (Code, bool) {
	var derr *Error
	if unwrapAs(err, &derr) {
		return derr.Code, true
	}
	return "", false
}

// unwrapAs mirrors errors.As without importing the standard "errors"
// package twice across the module; kept local so dberr has no dependency
// on anything except fmt.
func unwrapAs(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
