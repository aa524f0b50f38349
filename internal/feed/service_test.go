package feed_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlight/townfeed/internal/config"
	"github.com/harborlight/townfeed/internal/feed"
	"github.com/harborlight/townfeed/internal/metrics"
	"github.com/harborlight/townfeed/internal/produce"
	storageAdapter "github.com/harborlight/townfeed/internal/storage"
	"github.com/harborlight/townfeed/internal/storage/local"
)

type fixture struct {
	store   *produce.SnapshotStore
	builder *produce.PartitionBuilder
	service *feed.Service
	clock   *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.NewConfig()
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
	clock := &fakeClock{now: time.Date(2025, 1, 30, 9, 0, 0, 0, time.UTC)}
	service := feed.NewService(cfg, store, builder, produce.NewAnalyticsEngine(), clock, metrics.NewRecorder())

	return &fixture{store: store, builder: builder, service: service, clock: clock}
}

func snapshotHTML(rows string) []byte {
	return []byte(fmt.Sprintf(`<html><body><table>%s</table></body></html>`, rows))
}

func row(name string, price float64) string {
	return fmt.Sprintf(`<tr><td>%s</td><td>$%.2f / lb</td></tr>`, name, price)
}

func (f *fixture) ingest(t *testing.T, date, rows string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.store.WriteSnapshot(ctx, date, snapshotHTML(rows))
	require.NoError(t, err)
	_, err = f.builder.RebuildMonth(ctx, date[:7])
	require.NoError(t, err)
}

func TestService_NoPartitionsYieldsErrNoData(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CurrentRows(context.Background())
	assert.ErrorIs(t, err, produce.ErrNoData)
}

func TestService_CurrentRowsAndEvents(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "2025-01-28", row("Apple", 2.00))
	f.ingest(t, "2025-01-29", row("Apple", 2.40))

	rows, err := f.service.CurrentRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Apple", rows[0].RawName)

	events, err := f.service.ProduceEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "2025-01-28", events[0].Date)
	assert.Equal(t, []string{"Apple"}, events[0].Arrivals)
}

func TestService_PrunesEventsOutsideWindow(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "2025-01-29", row("Apple", 2.40))

	// 2025-01-29 is 46 days before 2025-03-16, outside the 45-day window.
	f.clock.now = time.Date(2025, 3, 16, 9, 0, 0, 0, time.UTC)

	events, err := f.service.ProduceEvents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestService_CachesUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "2025-01-29", row("Apple", 2.40))

	rows, err := f.service.CurrentRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// A correction lands but the cache still serves the old rows.
	f.ingest(t, "2025-01-29", row("Apple", 9.99))
	rows, err = f.service.CurrentRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.40, rows[0].Price)

	f.service.Invalidate()
	rows, err = f.service.CurrentRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9.99, rows[0].Price)
}

func TestService_CacheExpiresWithClock(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "2025-01-29", row("Apple", 2.40))

	_, err := f.service.CurrentRows(context.Background())
	require.NoError(t, err)

	f.ingest(t, "2025-01-29", row("Apple", 3.10))
	f.clock.Advance(6 * time.Minute)

	rows, err := f.service.CurrentRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.10, rows[0].Price)
}
