package feed

import (
	"context"
	"time"

	"github.com/harborlight/townfeed/internal/config"
	"github.com/harborlight/townfeed/internal/metrics"
	"github.com/harborlight/townfeed/internal/produce"
	"github.com/harborlight/townfeed/internal/support/logger"
)

const (
	cacheKeyRows   = "produce:rows"
	cacheKeyEvents = "produce:events"
)

// Service answers produce queries behind a TTL cache: current analytics
// rows and the date-windowed activity feed.
type Service struct {
	store      *produce.SnapshotStore
	builder    *produce.PartitionBuilder
	engine     *produce.AnalyticsEngine
	cache      *Cache
	clock      Clock
	recorder   *metrics.Recorder
	windowDays int
	timezone   string
}

// NewService creates a feed Service.
func NewService(
	cfg *config.Config,
	store *produce.SnapshotStore,
	builder *produce.PartitionBuilder,
	engine *produce.AnalyticsEngine,
	clock Clock,
	recorder *metrics.Recorder,
) *Service {
	return &Service{
		store:      store,
		builder:    builder,
		engine:     engine,
		cache:      NewCache(time.Duration(cfg.Townfeed.Feed.CacheTTLSeconds)*time.Second, clock),
		clock:      clock,
		recorder:   recorder,
		windowDays: cfg.Townfeed.Feed.WindowDays,
		timezone:   cfg.Townfeed.System.Timezone,
	}
}

// Months lists the available monthly partitions with their locations.
func (s *Service) Months(ctx context.Context) ([]produce.PartitionRef, error) {
	return s.store.ListPartitions(ctx)
}

// CurrentRows computes the current analytics rows over every stored
// partition, serving from cache within the TTL. produce.ErrNoData is
// returned when no partitions exist.
func (s *Service) CurrentRows(ctx context.Context) ([]produce.AnalyticsRow, error) {
	if cached, ok := s.cache.Get(cacheKeyRows); ok {
		s.recorder.RecordFeedCache("hit")
		return cached.([]produce.AnalyticsRow), nil
	}
	s.recorder.RecordFeedCache("miss")

	refs, err := s.store.ListPartitions(ctx)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, produce.ErrNoData
	}

	partitions := make([][]produce.ItemRecord, 0, len(refs))
	for _, ref := range refs {
		records, err := s.builder.LoadMonth(ctx, ref.Month)
		if err != nil {
			logger.Warnf("Skipping unreadable partition %s: %v", ref.Month, err)
			continue
		}
		partitions = append(partitions, records)
	}

	rows, err := s.engine.ComputeCurrent(partitions...)
	if err != nil {
		return nil, err
	}

	s.cache.Set(cacheKeyRows, rows)
	return rows, nil
}

// ProduceEvents derives the activity feed from the current analytics
// rows and prunes events outside the configured window around today.
func (s *Service) ProduceEvents(ctx context.Context) ([]produce.ProduceEvent, error) {
	if cached, ok := s.cache.Get(cacheKeyEvents); ok {
		s.recorder.RecordFeedCache("hit")
		return cached.([]produce.ProduceEvent), nil
	}
	s.recorder.RecordFeedCache("miss")

	rows, err := s.CurrentRows(ctx)
	if err != nil {
		return nil, err
	}

	events := s.pruneEvents(produce.DeriveEvents(rows))
	s.cache.Set(cacheKeyEvents, events)
	return events, nil
}

// Invalidate drops the cached rows and events, used after a scrape or
// backfill changes the partitions.
func (s *Service) Invalidate() {
	s.cache.Clear()
}

// pruneEvents keeps events whose date falls within windowDays of today,
// both past and future, judged as local calendar days.
func (s *Service) pruneEvents(events []produce.ProduceEvent) []produce.ProduceEvent {
	loc, err := time.LoadLocation(s.timezone)
	if err != nil {
		loc = time.UTC
	}
	now := s.clock.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	earliest := today.AddDate(0, 0, -s.windowDays).Format("2006-01-02")
	latest := today.AddDate(0, 0, s.windowDays).Format("2006-01-02")

	kept := make([]produce.ProduceEvent, 0, len(events))
	for _, event := range events {
		if event.Date < earliest || event.Date > latest {
			continue
		}
		kept = append(kept, event)
	}
	return kept
}
