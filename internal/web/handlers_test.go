package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universe-mcp/harvester/internal/index"
	"github.com/universe-mcp/harvester/internal/store"
	"github.com/universe-mcp/harvester/pkg/model"
)

func testAPI(t *testing.T, records store.Store, indexDir string) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("Test API", "1.0.0"))
	RegisterEndpoints(api, records, indexDir)
	return mux
}

func seedRecords(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	for _, id := range []string{"alpha", "beta"} {
		require.NoError(t, s.Upsert(ctx, &model.Record{
			ID:          id,
			Category:    model.CategoryServers,
			Name:        "Server " + id,
			URL:         "https://example.com/servers/" + id,
			HarvestedAt: time.Now().UTC(),
		}))
	}
	return s
}

func TestListRecords(t *testing.T) {
	mux := testAPI(t, seedRecords(t), t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/v0/records/servers", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body RecordListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "alpha", body.Records[0].ID)
}

func TestListRecordsLimit(t *testing.T) {
	mux := testAPI(t, seedRecords(t), t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/v0/records/servers?limit=1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body RecordListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestGetRecord(t *testing.T) {
	mux := testAPI(t, seedRecords(t), t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/v0/records/servers/alpha", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body model.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alpha", body.ID)
}

func TestGetRecordNotFound(t *testing.T) {
	mux := testAPI(t, seedRecords(t), t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/v0/records/servers/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStatistics(t *testing.T) {
	indexDir := t.TempDir()
	records := seedRecords(t)
	require.NoError(t, index.NewBuilder(records, indexDir, nil).Build(context.Background()))

	mux := testAPI(t, records, indexDir)

	req := httptest.NewRequest(http.MethodGet, "/v0/statistics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats index.Statistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Totals["servers"])
}

func TestGetIndexDocument(t *testing.T) {
	indexDir := t.TempDir()
	records := seedRecords(t)
	require.NoError(t, index.NewBuilder(records, indexDir, nil).Build(context.Background()))

	mux := testAPI(t, records, indexDir)

	req := httptest.NewRequest(http.MethodGet, "/v0/indexes/"+index.DocAllServers, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var listing index.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 2, listing.Count)

	req = httptest.NewRequest(http.MethodGet, "/v0/indexes/not-a-document.json", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStatisticsNotPublished(t *testing.T) {
	mux := testAPI(t, seedRecords(t), t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/v0/statistics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticHandler(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, index.DocStatistics), []byte(`{"totals":{}}`), 0o644))

	h := newStaticHandler("/indexes/", dir, indexAllowlist)

	t.Run("serves allowed document with cors and no-cache", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/indexes/"+index.DocStatistics, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	})

	t.Run("rejects unknown documents", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "private.json"), []byte(`{}`), 0o644))
		req := httptest.NewRequest(http.MethodGet, "/indexes/private.json", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects traversal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/indexes/..%2Fsecret.json", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("answers preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/indexes/"+index.DocStatistics, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestTrailingSlashRedirect(t *testing.T) {
	h := trailingSlashMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v0/records/servers/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/v0/records/servers", rec.Header().Get("Location"))
}
