// Package ingest fetches the upstream price page and runs the daily
// scrape job.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harborlight/townfeed/internal/config"
	"github.com/harborlight/townfeed/internal/metrics"
	"github.com/harborlight/townfeed/internal/support/exception"
	"github.com/harborlight/townfeed/internal/support/logger"
)

// Fetcher retrieves the upstream price page with bounded retries.
type Fetcher struct {
	client      *http.Client
	sourceURL   string
	maxAttempts int
	recorder    *metrics.Recorder
}

// NewFetcher creates a Fetcher from the scrape configuration.
func NewFetcher(cfg *config.Config, recorder *metrics.Recorder) *Fetcher {
	scrape := cfg.Townfeed.Scrape
	return &Fetcher{
		client:      &http.Client{Timeout: time.Duration(scrape.TimeoutSeconds) * time.Second},
		sourceURL:   scrape.SourceURL,
		maxAttempts: scrape.MaxAttempts,
		recorder:    recorder,
	}
}

// Fetch downloads the price page. Up to maxAttempts tries, first success
// wins, no backoff between attempts. All attempts failing yields a
// retryable error and no body.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	if f.sourceURL == "" {
		return nil, exception.New("ingest", "scrape source URL is not configured", nil, false, false)
	}

	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		body, err := f.fetchOnce(ctx)
		if err == nil {
			f.recorder.RecordFetchAttempt("success")
			return body, nil
		}
		f.recorder.RecordFetchAttempt("failure")
		logger.Warnf("Fetch attempt %d/%d failed: %v", attempt, f.maxAttempts, err)
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}
	return nil, exception.New("ingest", fmt.Sprintf("all %d fetch attempts failed for %s", f.maxAttempts, f.sourceURL), lastErr, false, true)
}

func (f *Fetcher) fetchOnce(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, f.sourceURL)
	}

	return io.ReadAll(resp.Body)
}
