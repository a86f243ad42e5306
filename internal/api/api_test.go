package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/catalog"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/session"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/store"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/testutil"
)

const seed = `
CREATE TABLE projects (id INTEGER PRIMARY KEY, name TEXT, status TEXT);
INSERT INTO projects (id, name, status) VALUES
	(1, 'Alpha Plant', '進行中'),
	(2, 'beta line', '完了'),
	(3, 'Gamma Yard', '進行中');
`

func newTestServer(t *testing.T, cfg Config) (http.Handler, *session.Session) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Seed(context.Background(), seed))

	sess := session.New(st, catalog.NewDescriber(st, nil), session.Config{
		MaxRows:   100,
		Timeout:   5 * time.Second,
		IDs:       testutil.NewFixedIDGenerator("api-session"),
		Sequencer: testutil.NewDeterministicClock(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRouter(ctx, sess, cfg), sess
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func TestQuery_Success(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	rec, body := do(t, h, http.MethodPost, "/v1/query", map[string]any{"query": "SELECT id, name FROM projects"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["outcome"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	result := body["result"].(map[string]any)
	assert.Equal(t, float64(3), result["row_count"])
	assert.Equal(t, []any{"id", "name"}, result["columns"])
}

func TestQuery_RejectedIs422(t *testing.T) {
	h, sess := newTestServer(t, Config{})

	rec, body := do(t, h, http.MethodPost, "/v1/query", map[string]any{"query": "DROP TABLE projects;"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "rejected", body["outcome"])
	assert.Equal(t, "not_read_only", body["reason"])
	assert.Equal(t, 1, sess.HistoryPage(0, 10).TotalCount)
}

func TestQuery_StoreErrorIs502(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	rec, body := do(t, h, http.MethodPost, "/v1/query", map[string]any{"query": "SELECT * FROM missing"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "failed", body["outcome"])
	assert.Equal(t, "store_error", body["reason"])
}

func TestQuery_MaxRowsCanOnlyTighten(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	_, body := do(t, h, http.MethodPost, "/v1/query", map[string]any{"query": "SELECT * FROM projects", "max_rows": 2})
	assert.Equal(t, float64(2), body["result"].(map[string]any)["row_count"])

	_, body = do(t, h, http.MethodPost, "/v1/query", map[string]any{"query": "SELECT * FROM projects", "max_rows": 5000})
	assert.Equal(t, float64(3), body["result"].(map[string]any)["row_count"])
}

func TestQuery_View(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	_, body := do(t, h, http.MethodPost, "/v1/query", map[string]any{
		"query": "SELECT * FROM projects",
		"view":  map[string]any{"sort": "id", "direction": "desc", "page_size": 2},
	})

	window := body["window"].(map[string]any)
	assert.Equal(t, float64(3), window["total"])
	assert.Equal(t, float64(2), window["page_count"])
	rows := window["rows"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, float64(3), rows[0].(map[string]any)["id"])
}

func TestQuery_BadBody(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	rec, _ := do(t, h, http.MethodPost, "/v1/query", map[string]any{"sql": "SELECT 1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/v1/query", map[string]any{"query": "SELECT 1", "view": map[string]any{"page_size": -1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	rec, body := do(t, h, http.MethodPost, "/v1/search", map[string]any{
		"table":    "projects",
		"column":   "status",
		"operator": "equals",
		"value":    "進行中",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["result"].(map[string]any)["row_count"])

	rec, body = do(t, h, http.MethodPost, "/v1/search", map[string]any{
		"table":    "projects",
		"column":   "name",
		"operator": "greater_than",
		"value":    "a",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_filter", body["reason"])
}

func TestHistoryEndpoints(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	do(t, h, http.MethodPost, "/v1/query", map[string]any{"query": "SELECT 1"})
	do(t, h, http.MethodPost, "/v1/query", map[string]any{"query": "DELETE FROM projects"})

	rec, body := do(t, h, http.MethodGet, "/v1/history?page=0&page_size=1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["total_count"])
	assert.Equal(t, true, body["has_next"])
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "DELETE FROM projects", entries[0].(map[string]any)["query_text"])

	rec, body = do(t, h, http.MethodGet, "/v1/history/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	rec, body = do(t, h, http.MethodPost, "/v1/history/2/replay", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DELETE FROM projects", body["query_text"])

	rec, _ = do(t, h, http.MethodGet, "/v1/history/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, h, http.MethodGet, "/v1/history/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, h, http.MethodGet, "/v1/history?page=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/v1/history", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, body = do(t, h, http.MethodGet, "/v1/history", nil)
	assert.Equal(t, float64(0), body["total_count"])
}

func TestSchemaEndpoints(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	rec, body := do(t, h, http.MethodGet, "/v1/tables", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"projects"}, body["tables"])

	rec, body = do(t, h, http.MethodGet, "/v1/tables/projects/columns", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["columns"], 3)

	rec, _ = do(t, h, http.MethodGet, "/v1/tables/missing/columns", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLintAndExplain(t *testing.T) {
	h, sess := newTestServer(t, Config{})

	rec, body := do(t, h, http.MethodPost, "/v1/lint", map[string]any{"query": "SELECT * FROM projects"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["valid"])
	assert.Len(t, body["suggestions"], 1)

	rec, body = do(t, h, http.MethodPost, "/v1/explain", map[string]any{"query": "SELECT * FROM projects"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["plan"])

	rec, _ = do(t, h, http.MethodPost, "/v1/explain", map[string]any{"query": "DELETE FROM projects"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Neither lint nor explain is an execution.
	assert.Equal(t, 0, sess.HistoryPage(0, 10).TotalCount)
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), "api-session")
}

func TestRateLimit(t *testing.T) {
	h, _ := newTestServer(t, Config{RateLimit: RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}})

	for i := 0; i < 2; i++ {
		rec, _ := do(t, h, http.MethodGet, "/v1/tables", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec, body := do(t, h, http.MethodGet, "/v1/tables", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", body["message"])

	// Health is outside the limited group.
	rec, _ = do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	h, _ := newTestServer(t, Config{CORSOrigins: []string{"https://pme.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/query", nil)
	req.Header.Set("Origin", "https://pme.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://pme.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
