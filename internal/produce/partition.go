package produce

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/harborlight/townfeed/internal/support/exception"
	"github.com/harborlight/townfeed/internal/support/logger"
)

// RebuildResult reports one month's partition rebuild for observability.
type RebuildResult struct {
	Month     string `json:"month"`
	URL       string `json:"url"`
	ItemCount int    `json:"itemCount"`
	DaysCount int    `json:"daysCount"`
}

// encodePartition serializes records into a single-row-group SNAPPY
// parquet file held in memory.
func encodePartition(records []ItemRecord) ([]byte, error) {
	buf := new(bytes.Buffer)

	rowGroupSize := int64(len(records))
	if rowGroupSize == 0 {
		rowGroupSize = 1
	}
	pw, err := writer.NewParquetWriterFromWriter(buf, new(ItemRecord), rowGroupSize)
	if err != nil {
		return nil, exception.New("partition", "failed to create parquet writer", err, false, false)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, record := range records {
		if err := pw.Write(record); err != nil {
			return nil, exception.New("partition", fmt.Sprintf("failed to write record '%s' to parquet", record.ID), err, false, false)
		}
	}

	// WriteStop can panic inside the parquet library on malformed state;
	// convert that to an error instead of taking the process down.
	err = func() (stopErr error) {
		defer func() {
			if r := recover(); r != nil {
				stopErr = fmt.Errorf("parquet writer panicked during WriteStop: %v", r)
			}
		}()
		return pw.WriteStop()
	}()
	if err != nil {
		return nil, exception.New("partition", "failed to finalize parquet file", err, false, false)
	}

	return buf.Bytes(), nil
}

// decodePartition deserializes a parquet partition back into records.
func decodePartition(data []byte) ([]ItemRecord, error) {
	fr := buffer.NewBufferFileFromBytes(data)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(ItemRecord), 1)
	if err != nil {
		return nil, exception.New("partition", "failed to create parquet reader", err, false, false)
	}
	defer pr.ReadStop()

	num := int(pr.GetNumRows())
	if num == 0 {
		return nil, nil
	}

	records := make([]ItemRecord, num)
	if err := pr.Read(&records); err != nil {
		return nil, exception.New("partition", "failed to read parquet records", err, false, false)
	}
	return records, nil
}

// PartitionBuilder re-derives whole monthly partitions from daily
// snapshots. Rebuilds are idempotent replaces, never incremental patches,
// so corrections to historical snapshots propagate deterministically.
type PartitionBuilder struct {
	store  *SnapshotStore
	parser *Parser
}

// NewPartitionBuilder creates a PartitionBuilder.
func NewPartitionBuilder(store *SnapshotStore, parser *Parser) *PartitionBuilder {
	return &PartitionBuilder{store: store, parser: parser}
}

// RebuildMonth parses every readable snapshot dated within the month and
// replaces the month's partition with their concatenated records. A day
// that fails to read or parse is skipped; the loss shows up only in the
// returned DaysCount.
func (b *PartitionBuilder) RebuildMonth(ctx context.Context, month string) (RebuildResult, error) {
	dates, err := b.store.SnapshotDatesForMonth(ctx, month)
	if err != nil {
		return RebuildResult{}, exception.New("partition", fmt.Sprintf("failed to list snapshots for month %s", month), err, false, true)
	}

	var records []ItemRecord
	daysCount := 0
	for _, date := range dates {
		rawHTML, err := b.store.ReadSnapshot(ctx, date)
		if err != nil {
			logger.Warnf("Skipping unreadable snapshot for %s: %v", date, err)
			continue
		}
		dayRecords, err := b.parser.Parse(string(rawHTML), date)
		if err != nil {
			logger.Warnf("Skipping unparseable snapshot for %s: %v", date, err)
			continue
		}
		records = append(records, dayRecords...)
		daysCount++
	}

	data, err := encodePartition(records)
	if err != nil {
		return RebuildResult{}, err
	}

	url, err := b.store.WritePartition(ctx, month, data)
	if err != nil {
		return RebuildResult{}, err
	}

	logger.Infof("Rebuilt partition %s: %d items across %d days.", month, len(records), daysCount)
	return RebuildResult{Month: month, URL: url, ItemCount: len(records), DaysCount: daysCount}, nil
}

// LoadMonth reads one month's partition back into records.
func (b *PartitionBuilder) LoadMonth(ctx context.Context, month string) ([]ItemRecord, error) {
	data, err := b.store.ReadPartition(ctx, month)
	if err != nil {
		return nil, err
	}
	return decodePartition(data)
}
