package ingest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlight/townfeed/internal/config"
	"github.com/harborlight/townfeed/internal/ingest"
	"github.com/harborlight/townfeed/internal/metrics"
	"github.com/harborlight/townfeed/internal/support/exception"
)

func newFetcher(sourceURL string) *ingest.Fetcher {
	cfg := config.NewConfig()
	cfg.Townfeed.Scrape.SourceURL = sourceURL
	return ingest.NewFetcher(cfg, metrics.NewRecorder())
}

func TestFetcher_FirstSuccessWins(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("<html>price list</html>"))
	}))
	defer srv.Close()

	body, err := newFetcher(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<html>price list</html>", string(body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetcher_RetriesUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newFetcher(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetcher_AllAttemptsFailing(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newFetcher(srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	var appErr *exception.AppError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.IsRetryable())
}

func TestFetcher_MissingSourceURL(t *testing.T) {
	_, err := newFetcher("").Fetch(context.Background())
	require.Error(t, err)

	var appErr *exception.AppError
	require.ErrorAs(t, err, &appErr)
	assert.False(t, appErr.IsRetryable())
}
