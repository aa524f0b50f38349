package produce_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlight/townfeed/internal/config"
	"github.com/harborlight/townfeed/internal/produce"
	storageAdapter "github.com/harborlight/townfeed/internal/storage"
	"github.com/harborlight/townfeed/internal/storage/local"
)

func newTestStore(t *testing.T) *produce.SnapshotStore {
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
	return produce.NewSnapshotStore(cfg, resolver)
}

func priceRow(name string, price float64) string {
	return fmt.Sprintf(`<tr><td>%s</td><td>$%.2f / lb</td></tr>`, name, price)
}

func TestPartitionBuilder_RebuildMonth(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	builder := produce.NewPartitionBuilder(store, produce.NewParser())

	_, err := store.WriteSnapshot(ctx, "2025-01-28", []byte(wrapRows(priceRow("Apple", 2.00))))
	require.NoError(t, err)
	_, err = store.WriteSnapshot(ctx, "2025-01-29", []byte(wrapRows(priceRow("Apple", 2.40)+priceRow("Pear", 3.10))))
	require.NoError(t, err)

	result, err := builder.RebuildMonth(ctx, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-01", result.Month)
	assert.Equal(t, 3, result.ItemCount)
	assert.Equal(t, 2, result.DaysCount)
	assert.NotEmpty(t, result.URL)

	records, err := builder.LoadMonth(ctx, "2025-01")
	require.NoError(t, err)
	require.Len(t, records, 3)
}

func TestPartitionBuilder_RebuildIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	builder := produce.NewPartitionBuilder(store, produce.NewParser())

	_, err := store.WriteSnapshot(ctx, "2025-02-10", []byte(wrapRows(priceRow("Kale", 2.50))))
	require.NoError(t, err)

	first, err := builder.RebuildMonth(ctx, "2025-02")
	require.NoError(t, err)
	firstRecords, err := builder.LoadMonth(ctx, "2025-02")
	require.NoError(t, err)

	second, err := builder.RebuildMonth(ctx, "2025-02")
	require.NoError(t, err)
	secondRecords, err := builder.LoadMonth(ctx, "2025-02")
	require.NoError(t, err)

	assert.Equal(t, first.ItemCount, second.ItemCount)
	assert.Equal(t, first.DaysCount, second.DaysCount)
	assert.Equal(t, firstRecords, secondRecords)
}

func TestPartitionBuilder_RebuildReplacesPriorPartition(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	builder := produce.NewPartitionBuilder(store, produce.NewParser())

	_, err := store.WriteSnapshot(ctx, "2025-03-05", []byte(wrapRows(priceRow("Leeks", 1.75))))
	require.NoError(t, err)
	_, err = builder.RebuildMonth(ctx, "2025-03")
	require.NoError(t, err)

	// Correcting the snapshot and rebuilding replaces the whole partition.
	_, err = store.WriteSnapshot(ctx, "2025-03-05", []byte(wrapRows(priceRow("Leeks", 1.95))))
	require.NoError(t, err)
	_, err = builder.RebuildMonth(ctx, "2025-03")
	require.NoError(t, err)

	records, err := builder.LoadMonth(ctx, "2025-03")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1.95, records[0].Price)
}

func TestPartitionBuilder_SkipsUnparseableDays(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	builder := produce.NewPartitionBuilder(store, produce.NewParser())

	_, err := store.WriteSnapshot(ctx, "2025-04-01", []byte(wrapRows(priceRow("Chard", 2.25))))
	require.NoError(t, err)
	// A page with no price table contributes no records but still reads.
	_, err = store.WriteSnapshot(ctx, "2025-04-02", []byte("<html><body><p>closed today</p></body></html>"))
	require.NoError(t, err)

	result, err := builder.RebuildMonth(ctx, "2025-04")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemCount)
	assert.Equal(t, 2, result.DaysCount)
}

func TestSnapshotStore_ListMonthsAndPartitions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	builder := produce.NewPartitionBuilder(store, produce.NewParser())

	for _, date := range []string{"2025-01-05", "2025-01-20", "2025-02-03"} {
		_, err := store.WriteSnapshot(ctx, date, []byte(wrapRows(priceRow("Onions", 1.10))))
		require.NoError(t, err)
	}

	months, err := store.ListSnapshotMonths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01", "2025-02"}, months)

	for _, month := range months {
		_, err := builder.RebuildMonth(ctx, month)
		require.NoError(t, err)
	}

	refs, err := store.ListPartitions(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "2025-01", refs[0].Month)
	assert.Equal(t, "2025-02", refs[1].Month)
	assert.NotEmpty(t, refs[0].URL)
}
