package ingest

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/harborlight/townfeed/internal/config"
	"github.com/harborlight/townfeed/internal/metrics"
	"github.com/harborlight/townfeed/internal/produce"
	"github.com/harborlight/townfeed/internal/runlog"
	"github.com/harborlight/townfeed/internal/support/exception"
	"github.com/harborlight/townfeed/internal/support/logger"
)

// ScrapeJob fetches today's price page, stores the snapshot, and rebuilds
// the affected month's partition. Each execution is recorded in the run
// log.
type ScrapeJob struct {
	fetcher  *Fetcher
	store    *produce.SnapshotStore
	builder  *produce.PartitionBuilder
	runs     *runlog.Repository
	recorder *metrics.Recorder
	timezone string
}

// NewScrapeJob creates a ScrapeJob.
func NewScrapeJob(
	cfg *config.Config,
	fetcher *Fetcher,
	store *produce.SnapshotStore,
	builder *produce.PartitionBuilder,
	runs *runlog.Repository,
	recorder *metrics.Recorder,
) *ScrapeJob {
	return &ScrapeJob{
		fetcher:  fetcher,
		store:    store,
		builder:  builder,
		runs:     runs,
		recorder: recorder,
		timezone: cfg.Townfeed.System.Timezone,
	}
}

// Today resolves the current calendar date in the configured time zone.
func (j *ScrapeJob) Today() (string, error) {
	loc, err := time.LoadLocation(j.timezone)
	if err != nil {
		return "", exception.New("ingest", "invalid timezone '"+j.timezone+"'", err, false, false)
	}
	return time.Now().In(loc).Format("2006-01-02"), nil
}

var tracer trace.Tracer = otel.Tracer("townfeed/ingest")

// Run executes one scrape: fetch, snapshot write, month rebuild. A fetch
// failure writes no snapshot. The rebuild result is returned for the
// trigger response.
func (j *ScrapeJob) Run(ctx context.Context) (produce.RebuildResult, error) {
	ctx, span := tracer.Start(ctx, "scrape")
	defer span.End()

	run, err := j.runs.Start(ctx, runlog.JobScrape)
	if err != nil {
		return produce.RebuildResult{}, err
	}
	j.recorder.RecordJobStart(runlog.JobScrape)
	started := time.Now()

	result, err := j.run(ctx)
	if err != nil {
		span.RecordError(err)
		j.recorder.RecordJobEnd(runlog.JobScrape, runlog.StatusFailed, time.Since(started))
		if failErr := j.runs.Fail(ctx, run, err); failErr != nil {
			logger.Errorf("Failed to record scrape failure: %v", failErr)
		}
		return produce.RebuildResult{}, err
	}

	j.recorder.RecordJobEnd(runlog.JobScrape, runlog.StatusCompleted, time.Since(started))
	j.recorder.RecordRebuild(result.Month, result.ItemCount, result.DaysCount)
	if err := j.runs.Complete(ctx, run, result.ItemCount, result.DaysCount); err != nil {
		logger.Errorf("Failed to record scrape completion: %v", err)
	}
	return result, nil
}

func (j *ScrapeJob) run(ctx context.Context) (produce.RebuildResult, error) {
	date, err := j.Today()
	if err != nil {
		return produce.RebuildResult{}, err
	}

	body, err := j.fetcher.Fetch(ctx)
	if err != nil {
		return produce.RebuildResult{}, err
	}
	j.recorder.RecordSnapshotSize(len(body))

	if _, err := j.store.WriteSnapshot(ctx, date, body); err != nil {
		return produce.RebuildResult{}, err
	}

	month := date[:7]
	result, err := j.builder.RebuildMonth(ctx, month)
	if err != nil {
		return produce.RebuildResult{}, err
	}

	logger.Infof("Scrape for %s complete: %d items over %d days in %s.", date, result.ItemCount, result.DaysCount, month)
	return result, nil
}
