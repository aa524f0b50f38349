package produce_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlight/townfeed/internal/config"
	"github.com/harborlight/townfeed/internal/produce"
	storageAdapter "github.com/harborlight/townfeed/internal/storage"
)

// faultyConnection is an in-memory StorageConnection whose uploads fail
// for object names containing a configured fragment.
type faultyConnection struct {
	mu          sync.Mutex
	objects     map[string][]byte
	failUploads string
}

func newFaultyConnection(failUploads string) *faultyConnection {
	return &faultyConnection{objects: make(map[string][]byte), failUploads: failUploads}
}

func (c *faultyConnection) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	if c.failUploads != "" && strings.Contains(objectName, c.failUploads) {
		return fmt.Errorf("injected upload failure for '%s'", objectName)
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[objectName] = body
	return nil
}

func (c *faultyConnection) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.objects[objectName]
	if !ok {
		return nil, fmt.Errorf("object '%s' not found", objectName)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (c *faultyConnection) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	c.mu.Lock()
	names := make([]string, 0, len(c.objects))
	for name := range c.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	c.mu.Unlock()
	for _, name := range names {
		if err := fn(name); err != nil {
			return err
		}
	}
	return nil
}

func (c *faultyConnection) DeleteObject(ctx context.Context, bucket, objectName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, objectName)
	return nil
}

func (c *faultyConnection) ObjectURL(bucket, objectName string) string {
	return "mem://" + objectName
}

func (c *faultyConnection) Close() error { return nil }
func (c *faultyConnection) Type() string { return "memory" }
func (c *faultyConnection) Name() string { return "memory" }

type staticResolver struct {
	conn storageAdapter.StorageConnection
}

func (r *staticResolver) ResolveStorageConnection(ctx context.Context, name string) (storageAdapter.StorageConnection, error) {
	return r.conn, nil
}

func newFaultyStore(conn *faultyConnection) *produce.SnapshotStore {
	return produce.NewSnapshotStore(config.NewConfig(), &staticResolver{conn: conn})
}

func TestBackfill_RebuildAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	builder := produce.NewPartitionBuilder(store, produce.NewParser())
	coordinator := produce.NewBackfillCoordinator(store, builder)

	for _, date := range []string{"2025-01-10", "2025-02-14", "2025-03-21"} {
		_, err := store.WriteSnapshot(ctx, date, []byte(wrapRows(priceRow("Potatoes", 0.99))))
		require.NoError(t, err)
	}

	results, err := coordinator.RebuildAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "2025-01", results[0].Month)
	assert.Equal(t, "2025-02", results[1].Month)
	assert.Equal(t, "2025-03", results[2].Month)
	for _, result := range results {
		assert.Equal(t, 1, result.ItemCount)
		assert.Equal(t, 1, result.DaysCount)
	}
}

func TestBackfill_MiddleMonthFailureDoesNotAbortRest(t *testing.T) {
	ctx := context.Background()
	conn := newFaultyConnection("produce-data/2025-02")
	store := newFaultyStore(conn)
	builder := produce.NewPartitionBuilder(store, produce.NewParser())
	coordinator := produce.NewBackfillCoordinator(store, builder)

	for _, date := range []string{"2025-01-10", "2025-02-14", "2025-03-21"} {
		_, err := store.WriteSnapshot(ctx, date, []byte(wrapRows(priceRow("Potatoes", 0.99))))
		require.NoError(t, err)
	}

	results, err := coordinator.RebuildAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2025-02")

	require.Len(t, results, 2)
	assert.Equal(t, "2025-01", results[0].Month)
	assert.Equal(t, "2025-03", results[1].Month)
}
