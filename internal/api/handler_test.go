package api_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-gateway/internal/api"
	"duck-gateway/internal/engine"
	"duck-gateway/internal/middleware"
)

// stubConn skips initialization statements and sends queries to a real
// in-memory DuckDB.
type stubConn struct {
	db      *sql.DB
	initErr error
}

func (c *stubConn) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, c.initErr
}

func (c *stubConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSession(t *testing.T, plan engine.Plan, initErr error) *engine.Session {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return engine.NewSession(&stubConn{db: db, initErr: initErr}, plan, engine.Options{
		Extensions: []string{},
		Logger:     quietLogger(),
	})
}

func newServer(t *testing.T, opts api.RouterOptions) *httptest.Server {
	t.Helper()
	return newServerWithSession(t, newSession(t, engine.Plan{}, nil), opts)
}

func newServerWithSession(t *testing.T, s *engine.Session, opts api.RouterOptions) *httptest.Server {
	t.Helper()
	opts.Logger = quietLogger()
	srv := httptest.NewServer(api.NewRouter(s, opts))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func postQuery(t *testing.T, srv *httptest.Server, body string) (*http.Response, string) {
	t.Helper()
	return do(t, srv, http.MethodPost, "/query", body, http.Header{"Content-Type": {"application/json"}})
}

func errorMessage(t *testing.T, body string) string {
	t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &e), body)
	return e.Error
}

func TestRoot(t *testing.T) {
	srv := newServer(t, api.RouterOptions{})
	resp, body := do(t, srv, http.MethodGet, "/", "", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Welcome to DuckDB API"}`, body)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
}

func TestHealth(t *testing.T) {
	s := newSession(t, engine.Plan{}, nil)
	srv := newServerWithSession(t, s, api.RouterOptions{})
	resp, body := do(t, srv, http.MethodGet, "/_health", "", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)
	assert.Equal(t, engine.StateUninitialized, s.State(), "health checks do not initialize the engine")
}

func TestNotFound(t *testing.T) {
	srv := newServer(t, api.RouterOptions{})
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/nope"},
		{http.MethodGet, "/query"},
	} {
		resp, body := do(t, srv, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, tc.path)
		assert.JSONEq(t, `{"message":"Not Found","ok":false}`, body)
	}
}

func TestQuery_Success(t *testing.T) {
	srv := newServer(t, api.RouterOptions{})
	resp, body := postQuery(t, srv, `{"query":"SELECT 2 AS b, 1 AS a, 9007199254740993::BIGINT AS big"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, `[{"b":2,"a":1,"big":"9007199254740993"}]`+"\n", body)
}

func TestQuery_Pretty(t *testing.T) {
	srv := newServer(t, api.RouterOptions{})
	resp, body := do(t, srv, http.MethodPost, "/query?pretty", `{"query":"SELECT 1 AS a"}`, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[\n  {\n    \"a\": 1\n  }\n]\n", body)
}

func TestQuery_BadRequests(t *testing.T) {
	srv := newServer(t, api.RouterOptions{})

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "missing_key", body: `{"sql":"SELECT 1"}`, wantMsg: "Missing query property in request body!"},
		{name: "empty_object", body: `{}`, wantMsg: "Missing query property in request body!"},
		{name: "malformed_json", body: `{"query":`, wantMsg: "Invalid JSON body"},
		{name: "not_an_object", body: `["SELECT 1"]`, wantMsg: "Invalid JSON body"},
		{name: "number_query", body: `{"query":1}`, wantMsg: "query property must be a string"},
		{name: "null_query", body: `{"query":null}`, wantMsg: "query property must be a string"},
		{name: "empty_query", body: `{"query":"  "}`, wantMsg: "query is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postQuery(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.wantMsg, errorMessage(t, body))
		})
	}
}

func TestQuery_Rejected(t *testing.T) {
	srv := newServer(t, api.RouterOptions{})
	resp, body := postQuery(t, srv, `{"query":"SET threads = 1"}`)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, errorMessage(t, body), "SET statements are not allowed")
}

func TestQuery_LockdownRejectsLocalFiles(t *testing.T) {
	s := newSession(t, engine.Plan{LocalFilesystemDisabled: true}, nil)
	srv := newServerWithSession(t, s, api.RouterOptions{})
	resp, body := postQuery(t, srv, `{"query":"SELECT * FROM '/etc/passwd'"}`)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, errorMessage(t, body), "local file access is disabled")
}

func TestQuery_EngineErrorIsSanitized(t *testing.T) {
	srv := newServer(t, api.RouterOptions{})
	resp, body := postQuery(t, srv, `{"query":"SELECT * FROM \"missing_table\""}`)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	msg := errorMessage(t, body)
	assert.Contains(t, msg, "missing_table")
	assert.NotContains(t, msg, "\n")
	assert.NotContains(t, msg, `"`)
}

func TestQuery_InitFailure(t *testing.T) {
	s := newSession(t, engine.Plan{}, errors.New("IO Error: cannot open \"/tmp\"\nLINE 1"))
	srv := newServerWithSession(t, s, api.RouterOptions{})

	for range 2 {
		resp, body := postQuery(t, srv, `{"query":"SELECT 1"}`)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		msg := errorMessage(t, body)
		assert.Contains(t, msg, "initialize engine (set home directory /tmp)")
		assert.NotContains(t, msg, "\n")
	}
	assert.Equal(t, engine.StateFailed, s.State())
}

func TestQuery_BearerAuth(t *testing.T) {
	srv := newServer(t, api.RouterOptions{APIToken: "tok"})

	resp, _ := postQuery(t, srv, `{"query":"SELECT 1 AS a"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := do(t, srv, http.MethodPost, "/query", `{"query":"SELECT 1 AS a"}`,
		http.Header{"Authorization": {"Bearer tok"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"a":1}]`, body)

	resp, _ = do(t, srv, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "auth applies to /query only")
}

func TestRateLimit(t *testing.T) {
	srv := newServer(t, api.RouterOptions{RateLimit: &middleware.RateLimitConfig{RequestsPerSecond: 0.1, Burst: 1}})

	resp, _ := do(t, srv, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	srv := newServer(t, api.RouterOptions{CORSAllowedOrigins: []string{"https://app.example.com"}})

	resp, _ := do(t, srv, http.MethodOptions, "/query", "", http.Header{
		"Origin":                        {"https://app.example.com"},
		"Access-Control-Request-Method": {http.MethodPost},
	})
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = do(t, srv, http.MethodGet, "/", "", http.Header{"Origin": {"https://evil.example.com"}})
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
