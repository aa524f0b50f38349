package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlight/townfeed/internal/config"
	"github.com/harborlight/townfeed/internal/feed"
	"github.com/harborlight/townfeed/internal/ingest"
	"github.com/harborlight/townfeed/internal/metrics"
	"github.com/harborlight/townfeed/internal/produce"
	"github.com/harborlight/townfeed/internal/runlog"
	"github.com/harborlight/townfeed/internal/server"
	storageAdapter "github.com/harborlight/townfeed/internal/storage"
	"github.com/harborlight/townfeed/internal/storage/local"
)

const testSecret = "test-secret"

func newTestEngine(t *testing.T, upstreamHTML string) *gin.Engine {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(upstreamHTML))
	}))
	t.Cleanup(upstream.Close)

	cfg := config.NewConfig()
	cfg.Townfeed.Server.TaskSecret = testSecret
	cfg.Townfeed.Scrape.SourceURL = upstream.URL
	cfg.Townfeed.Database.Database = filepath.Join(t.TempDir(), "runs.db")
	cfg.Townfeed.Storage.Connections["blob"] = map[string]interface{}{
		"type":     "local",
		"base_dir": t.TempDir(),
	}

	resolver := storageAdapter.NewConnectionResolver(storageAdapter.ResolverParams{
		Cfg:       cfg,
		Providers: []storageAdapter.StorageProvider{local.NewLocalProvider(cfg)},
	})
	store := produce.NewSnapshotStore(cfg, resolver)
	builder := produce.NewPartitionBuilder(store, produce.NewParser())
	coordinator := produce.NewBackfillCoordinator(store, builder)
	recorder := metrics.NewRecorder()
	feeds := feed.NewService(cfg, store, builder, produce.NewAnalyticsEngine(), feed.NewSystemClock(), recorder)

	db, err := runlog.OpenDB(cfg)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&runlog.JobRun{}))
	t.Cleanup(func() { _ = runlog.CloseDB(db) })
	runs := runlog.NewRepository(db)

	scrape := ingest.NewScrapeJob(cfg, ingest.NewFetcher(cfg, recorder), store, builder, runs, recorder)
	return server.NewRouter(cfg, scrape, coordinator, feeds, runs, recorder).Engine()
}

const appleTable = `<html><body><table>
<tr><td>Apple</td><td>$2.40 / lb</td></tr>
</table></body></html>`

func doRequest(engine *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	engine := newTestEngine(t, appleTable)

	w := doRequest(engine, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_TaskSecretRejections(t *testing.T) {
	engine := newTestEngine(t, appleTable)

	w := doRequest(engine, http.MethodPost, "/tasks/scrape", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(engine, http.MethodPost, "/tasks/scrape", map[string]string{"X-Task-Secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_ScrapeThenQuery(t *testing.T) {
	engine := newTestEngine(t, appleTable)

	w := doRequest(engine, http.MethodPost, "/tasks/scrape", map[string]string{"X-Task-Secret": testSecret})
	require.Equal(t, http.StatusOK, w.Code)

	var scrapeResp struct {
		Month     string `json:"month"`
		ItemCount int    `json:"itemCount"`
		DaysCount int    `json:"daysCount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scrapeResp))
	assert.Equal(t, 1, scrapeResp.ItemCount)
	assert.Equal(t, 1, scrapeResp.DaysCount)

	w = doRequest(engine, http.MethodGet, "/api/produce", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var produceResp struct {
		State string                 `json:"state"`
		Rows  []produce.AnalyticsRow `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &produceResp))
	assert.Equal(t, "ok", produceResp.State)
	require.Len(t, produceResp.Rows, 1)
	assert.Equal(t, "Apple", produceResp.Rows[0].RawName)
	assert.Equal(t, 2.40, produceResp.Rows[0].Price)

	w = doRequest(engine, http.MethodGet, "/api/produce/months", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), scrapeResp.Month)
}

func TestRouter_ProduceWithoutDataReportsNoData(t *testing.T) {
	engine := newTestEngine(t, appleTable)

	w := doRequest(engine, http.MethodGet, "/api/produce", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "no_data", resp.State)
}

func TestRouter_BackfillWithQuerySecret(t *testing.T) {
	engine := newTestEngine(t, appleTable)

	w := doRequest(engine, http.MethodPost, "/tasks/scrape", map[string]string{"X-Task-Secret": testSecret})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(engine, http.MethodPost, "/tasks/backfill?secret="+testSecret, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "results")
}

func TestRouter_RunsRecorded(t *testing.T) {
	engine := newTestEngine(t, appleTable)

	w := doRequest(engine, http.MethodPost, "/tasks/scrape", map[string]string{"X-Task-Secret": testSecret})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(engine, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Runs []runlog.JobRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, runlog.JobScrape, resp.Runs[0].JobName)
	assert.Equal(t, runlog.StatusCompleted, resp.Runs[0].Status)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	engine := newTestEngine(t, appleTable)

	w := doRequest(engine, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
