package produce

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/harborlight/townfeed/internal/support/logger"
)

// BackfillCoordinator rebuilds every monthly partition from stored
// snapshots, used for disaster recovery or after a parsing change.
type BackfillCoordinator struct {
	store   *SnapshotStore
	builder *PartitionBuilder
}

// NewBackfillCoordinator creates a BackfillCoordinator.
func NewBackfillCoordinator(store *SnapshotStore, builder *PartitionBuilder) *BackfillCoordinator {
	return &BackfillCoordinator{store: store, builder: builder}
}

// RebuildAll enumerates the distinct months among stored snapshots and
// rebuilds each partition sequentially, ascending. One month's failure
// does not abort the rest; failures are aggregated and returned alongside
// the successful results. Sequential processing bounds memory and keeps
// each month's replace free of write races.
func (c *BackfillCoordinator) RebuildAll(ctx context.Context) ([]RebuildResult, error) {
	months, err := c.store.ListSnapshotMonths(ctx)
	if err != nil {
		return nil, err
	}
	logger.Infof("Backfill starting over %d months.", len(months))

	var results []RebuildResult
	var multiErr error
	for _, month := range months {
		result, err := c.builder.RebuildMonth(ctx, month)
		if err != nil {
			logger.Errorf("Backfill failed for month %s: %v", month, err)
			multiErr = multierror.Append(multiErr, fmt.Errorf("month %s: %w", month, err))
			continue
		}
		results = append(results, result)
	}

	logger.Infof("Backfill finished: %d of %d months rebuilt.", len(results), len(months))
	return results, multiErr
}
