// Package web's middleware stamps a request id and gives handlers a second,
// context-based path to the engine alongside the Server.engine field the
// route methods use directly.
package web

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/relicdb/relicdb/internal/executor"
)

// requestIDHeader is the header carrying this request's correlation id.
const requestIDHeader = "X-Request-ID"

// RequestID stamps every request with a fresh uuid, echoed back in the
// response header, so DDL/DML operations logged by the engine can be
// correlated back to the HTTP request that triggered them.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// contextKey is a custom type for context keys to avoid collisions.
// Using a custom type prevents other packages from accidentally
// overwriting our context values with the same string key.
type contextKey string

// engineKey is the context key for storing the storage engine.
const engineKey contextKey = "engine"

// WithEngine returns middleware that injects the storage engine into
// the request context. Handlers can retrieve it using GetEngine.
func WithEngine(eng *executor.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), engineKey, eng)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetEngine retrieves the storage engine from the request context.
// Returns nil if the engine was not set (middleware not applied).
func GetEngine(r *http.Request) *executor.Engine {
	eng, ok := r.Context().Value(engineKey).(*executor.Engine)
	if !ok {
		return nil
	}
	return eng
}

// RequireEngine returns middleware that ensures an engine is present
// in the request context. If not found, it returns 500 Internal Server Error.
func RequireEngine(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetEngine(r) == nil {
			http.Error(w, "Database not available", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}
