package web

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIndexPageRenders(t *testing.T) {
	eng := newTestEngine(t)
	srv := NewServer(0, eng)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("Failed to GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "relicdb") {
		t.Error("expected 'relicdb' in response")
	}
}

func TestHealthEndpoint(t *testing.T) {
	eng := newTestEngine(t)
	srv := NewServer(0, eng)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("Failed to GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("expected 'ok', got: %s", body)
	}
}

func TestTableListEmpty(t *testing.T) {
	eng := newTestEngine(t)
	srv := NewServer(0, eng)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/tables")
	if err != nil {
		t.Fatalf("Failed to GET /tables: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "No tables") {
		t.Errorf("expected empty-state message, got: %s", body)
	}
}

func TestTableListWithTables(t *testing.T) {
	eng := newTestEngine(t)
	runSQL(t, eng, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")

	srv := NewServer(0, eng)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/tables")
	if err != nil {
		t.Fatalf("Failed to GET /tables: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "users") {
		t.Errorf("expected 'users' link in response, got: %s", body)
	}
}

func TestTableListWithoutEngine(t *testing.T) {
	srv := NewServer(0, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/tables")
	if err != nil {
		t.Fatalf("Failed to GET /tables: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", resp.StatusCode)
	}
}

func TestTableDataEmpty(t *testing.T) {
	eng := newTestEngine(t)
	runSQL(t, eng, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")

	srv := NewServer(0, eng)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/tables/users/data")
	if err != nil {
		t.Fatalf("Failed to GET /tables/users/data: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "empty") {
		t.Errorf("expected empty-table message, got: %s", body)
	}
}

func TestTableDataNotFound(t *testing.T) {
	eng := newTestEngine(t)
	srv := NewServer(0, eng)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/tables/nonexistent/data")
	if err != nil {
		t.Fatalf("Failed to GET /tables/nonexistent/data: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", resp.StatusCode)
	}
}

func TestTableDataRejectsInvalidTableName(t *testing.T) {
	eng := newTestEngine(t)
	srv := NewServer(0, eng)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/tables/users%3B%20DROP%20TABLE%20users/data")
	if err != nil {
		t.Fatalf("Failed to GET table data: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400 for a non-identifier table name, got %d", resp.StatusCode)
	}
}

func TestTableDataPagination(t *testing.T) {
	eng := newTestEngine(t)
	runSQL(t, eng, "CREATE TABLE nums (id INTEGER PRIMARY KEY, val INTEGER)")
	for i := 1; i <= 5; i++ {
		runSQL(t, eng, fmt.Sprintf("INSERT INTO nums (id, val) VALUES (%d, %d)", i, i*10))
	}

	srv := NewServer(0, eng)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/tables/nums/data?limit=2&offset=0")
	if err != nil {
		t.Fatalf("Failed to GET table data: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	html := string(body)

	if !strings.Contains(html, "Next") {
		t.Errorf("expected a Next link for a partial page, got: %s", html)
	}
}
