// Package web provides the HTTP server for the database web UI.
//
// This file contains the JSON API endpoints for programmatic access.

package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/relicdb/relicdb/internal/record"
	"github.com/relicdb/relicdb/internal/sql/lexer"
	"github.com/relicdb/relicdb/internal/sql/parser"
)

// ============================================================================
// API Response Types
// ============================================================================

// APIResponse wraps all API responses with success/error info.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// TableListResponse contains the list of tables.
type TableListResponse struct {
	Tables []string `json:"tables"`
}

// ColumnInfo describes a single column in a table.
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primary_key"`
	NotNull    bool   `json:"not_null"`
}

// TableSchemaResponse describes a table's structure.
type TableSchemaResponse struct {
	Name       string       `json:"name"`
	Columns    []ColumnInfo `json:"columns"`
	PrimaryKey string       `json:"primary_key,omitempty"`
	RowCount   int64        `json:"row_count"`
}

// RowsResponse contains paginated row data.
type RowsResponse struct {
	Columns    []string        `json:"columns"`
	Rows       []RowData       `json:"rows"`
	TotalCount int64           `json:"total_count"`
	Offset     int             `json:"offset"`
	Limit      int             `json:"limit"`
	HasMore    bool            `json:"has_more"`
}

// RowData represents a single row's column values.
type RowData struct {
	Values map[string]interface{} `json:"values"`
}

// QueryRequest is the body for query execution.
type QueryRequest struct {
	SQL string `json:"sql"`
}

// QueryResponse contains query results.
type QueryResponse struct {
	Columns  []string        `json:"columns,omitempty"`
	Rows     [][]interface{} `json:"rows,omitempty"`
	RowCount int             `json:"row_count"`
	Message  string          `json:"message,omitempty"`
}

// ============================================================================
// Helper Functions
// ============================================================================

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful API response.
func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error API response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   message,
	})
}

// valueToInterface converts a record.Value to a JSON-serializable interface{}.
func valueToInterface(v record.Value) interface{} {
	if v.Null {
		return nil
	}
	switch v.Type {
	case record.TypeBoolean:
		return v.Bool
	case record.TypeInteger:
		return v.I32
	case record.TypeBigInt, record.TypeDate, record.TypeTimestamp:
		return v.I64
	case record.TypeFloat:
		return v.F32
	case record.TypeDouble:
		return v.F64
	case record.TypeVarchar, record.TypeText:
		return v.Str
	default:
		return v.String()
	}
}

// ============================================================================
// API Handlers
// ============================================================================

// handleAPITables returns a list of all tables.
// GET /api/tables
func (s *Server) handleAPITables(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "database not initialized")
		return
	}

	writeSuccess(w, TableListResponse{Tables: s.engine.Tables()})
}

// handleAPITableSchema returns the schema for a specific table.
// GET /api/tables/{name}
func (s *Server) handleAPITableSchema(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "database not initialized")
		return
	}

	tableName := chi.URLParam(r, "name")
	summary, exists := s.engine.TableSchema(tableName)
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Sprintf("table '%s' not found", tableName))
		return
	}

	columns := make([]ColumnInfo, len(summary.Columns))
	for i, col := range summary.Columns {
		columns[i] = ColumnInfo{
			Name:       col.Name,
			Type:       col.Type,
			PrimaryKey: col.PrimaryKey,
			NotNull:    col.NotNull,
		}
	}

	writeSuccess(w, TableSchemaResponse{
		Name:       tableName,
		Columns:    columns,
		PrimaryKey: summary.PrimaryKey,
		RowCount:   summary.RowCount,
	})
}

// handleAPITableRows returns paginated rows from a table via a synthesized
// SELECT * LIMIT/OFFSET query, reusing the same query path as /api/query.
// GET /api/tables/{name}/rows?limit=50&offset=0
func (s *Server) handleAPITableRows(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "database not initialized")
		return
	}

	tableName := chi.URLParam(r, "name")
	if !IsValidIdentifier(tableName) {
		writeError(w, http.StatusBadRequest, "invalid table name")
		return
	}
	summary, exists := s.engine.TableSchema(tableName)
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Sprintf("table '%s' not found", tableName))
		return
	}

	// Parse pagination params
	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d OFFSET %d", tableName, limit+1, offset)
	l := lexer.New(query)
	p := parser.New(l)
	stmt, err := p.Parse()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("query build failed: %v", err))
		return
	}
	result, err := s.engine.Execute(stmt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("scan failed: %v", err))
		return
	}

	hasMore := len(result.Rows) > limit
	if hasMore {
		result.Rows = result.Rows[:limit]
	}

	rows := make([]RowData, len(result.Rows))
	for i, row := range result.Rows {
		values := make(map[string]interface{})
		for j, val := range row {
			if j < len(result.Columns) {
				values[result.Columns[j]] = valueToInterface(val)
			}
		}
		rows[i] = RowData{Values: values}
	}

	writeSuccess(w, RowsResponse{
		Columns:    result.Columns,
		Rows:       rows,
		TotalCount: summary.RowCount,
		Offset:     offset,
		Limit:      limit,
		HasMore:    hasMore,
	})
}

// handleAPIQuery executes an arbitrary SQL query.
// POST /api/query
func (s *Server) handleAPIQuery(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "database not initialized")
		return
	}

	// Parse request body
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SQL == "" {
		writeError(w, http.StatusBadRequest, "sql field is required")
		return
	}

	// Parse SQL
	l := lexer.New(req.SQL)
	p := parser.New(l)
	stmt, err := p.Parse()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse error: %v", err))
		return
	}

	// Execute
	result, err := s.engine.Execute(stmt)
	if err != nil {
		msg := fmt.Sprintf("execution error: %v", err)
		if hint := GetErrorHint(err); hint != "" {
			msg = fmt.Sprintf("%s (%s)", msg, hint)
		}
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	// Convert result to response
	resp := QueryResponse{
		RowCount: result.RowCount,
		Message:  result.Message,
	}

	if len(result.Columns) > 0 {
		resp.Columns = result.Columns
		resp.Rows = make([][]interface{}, len(result.Rows))
		for i, row := range result.Rows {
			resp.Rows[i] = make([]interface{}, len(row))
			for j, val := range row {
				resp.Rows[i][j] = valueToInterface(val)
			}
		}
	}

	writeSuccess(w, resp)
}
