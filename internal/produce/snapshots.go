package produce

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/harborlight/townfeed/internal/config"
	storageAdapter "github.com/harborlight/townfeed/internal/storage"
	"github.com/harborlight/townfeed/internal/support/exception"
	"github.com/harborlight/townfeed/internal/support/logger"
)

const (
	snapshotPrefix  = "produce/"
	partitionPrefix = "produce-data/"
)

var reSnapshotDate = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\.html$`)

// PartitionRef locates one monthly partition in the snapshot store.
type PartitionRef struct {
	Month string `json:"month"`
	URL   string `json:"url"`
}

// SnapshotStore persists daily HTML snapshots and monthly parquet
// partitions behind a named storage connection. Writes for the same path
// overwrite; corrections replace, never append.
type SnapshotStore struct {
	resolver storageAdapter.ConnectionResolver
	ref      string
}

// NewSnapshotStore creates a SnapshotStore bound to the configured
// snapshot connection.
func NewSnapshotStore(cfg *config.Config, resolver storageAdapter.ConnectionResolver) *SnapshotStore {
	return &SnapshotStore{resolver: resolver, ref: cfg.Townfeed.Storage.SnapshotRef}
}

func (s *SnapshotStore) connection(ctx context.Context) (storageAdapter.StorageConnection, error) {
	conn, err := s.resolver.ResolveStorageConnection(ctx, s.ref)
	if err != nil {
		return nil, exception.New("snapshots", fmt.Sprintf("failed to resolve snapshot storage connection '%s'", s.ref), err, false, true)
	}
	return conn, nil
}

// SnapshotPath returns the object path holding the snapshot for a date.
func SnapshotPath(date string) string {
	return snapshotPrefix + date + ".html"
}

// PartitionPath returns the object path holding the partition for a month.
func PartitionPath(month string) string {
	return partitionPrefix + month + ".parquet"
}

// WriteSnapshot stores one day's raw HTML, replacing any prior snapshot
// for that date, and returns the object URL.
func (s *SnapshotStore) WriteSnapshot(ctx context.Context, date string, rawHTML []byte) (string, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return "", err
	}

	path := SnapshotPath(date)
	if err := conn.Upload(ctx, "", path, bytes.NewReader(rawHTML), "text/html"); err != nil {
		return "", exception.New("snapshots", fmt.Sprintf("failed to write snapshot for date %s", date), err, false, true)
	}
	url := conn.ObjectURL("", path)
	logger.Infof("Wrote snapshot for %s (%d bytes) to %s.", date, len(rawHTML), url)
	return url, nil
}

// ReadSnapshot loads the raw HTML for one date.
func (s *SnapshotStore) ReadSnapshot(ctx context.Context, date string) ([]byte, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}

	rc, err := conn.Download(ctx, "", SnapshotPath(date))
	if err != nil {
		return nil, exception.New("snapshots", fmt.Sprintf("failed to read snapshot for date %s", date), err, false, true)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, exception.New("snapshots", fmt.Sprintf("failed to read snapshot body for date %s", date), err, false, true)
	}
	return data, nil
}

// ListSnapshotDates returns the dates of every stored snapshot, sorted
// ascending.
func (s *SnapshotStore) ListSnapshotDates(ctx context.Context) ([]string, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}

	var dates []string
	err = conn.ListObjects(ctx, "", snapshotPrefix, func(objectName string) error {
		m := reSnapshotDate.FindStringSubmatch(strings.TrimPrefix(objectName, snapshotPrefix))
		if m == nil {
			return nil
		}
		dates = append(dates, m[1])
		return nil
	})
	if err != nil {
		return nil, exception.New("snapshots", "failed to list snapshots", err, false, true)
	}

	sort.Strings(dates)
	return dates, nil
}

// SnapshotDatesForMonth returns the stored snapshot dates within one
// calendar month (YYYY-MM), sorted ascending.
func (s *SnapshotStore) SnapshotDatesForMonth(ctx context.Context, month string) ([]string, error) {
	dates, err := s.ListSnapshotDates(ctx)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, d := range dates {
		if strings.HasPrefix(d, month+"-") {
			matched = append(matched, d)
		}
	}
	return matched, nil
}

// ListSnapshotMonths returns the distinct months (YYYY-MM) present among
// stored snapshot dates, sorted ascending.
func (s *SnapshotStore) ListSnapshotMonths(ctx context.Context) ([]string, error) {
	dates, err := s.ListSnapshotDates(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var months []string
	for _, d := range dates {
		month := d[:7]
		if _, ok := seen[month]; ok {
			continue
		}
		seen[month] = struct{}{}
		months = append(months, month)
	}
	sort.Strings(months)
	return months, nil
}

// WritePartition stores one month's parquet archive, replacing any prior
// partition for that month, and returns the object URL. The replace is a
// single upload, so readers see either the old or the new partition.
func (s *SnapshotStore) WritePartition(ctx context.Context, month string, data []byte) (string, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return "", err
	}

	path := PartitionPath(month)
	if err := conn.Upload(ctx, "", path, bytes.NewReader(data), "application/octet-stream"); err != nil {
		return "", exception.New("snapshots", fmt.Sprintf("failed to write partition for month %s", month), err, false, true)
	}
	url := conn.ObjectURL("", path)
	logger.Infof("Wrote partition for %s (%d bytes) to %s.", month, len(data), url)
	return url, nil
}

// ReadPartition loads one month's parquet archive.
func (s *SnapshotStore) ReadPartition(ctx context.Context, month string) ([]byte, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}

	rc, err := conn.Download(ctx, "", PartitionPath(month))
	if err != nil {
		return nil, exception.New("snapshots", fmt.Sprintf("failed to read partition for month %s", month), err, false, true)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, exception.New("snapshots", fmt.Sprintf("failed to read partition body for month %s", month), err, false, true)
	}
	return data, nil
}

// ListPartitions returns every stored monthly partition with its location,
// sorted ascending by month.
func (s *SnapshotStore) ListPartitions(ctx context.Context) ([]PartitionRef, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}

	var refs []PartitionRef
	err = conn.ListObjects(ctx, "", partitionPrefix, func(objectName string) error {
		name := strings.TrimPrefix(objectName, partitionPrefix)
		if !strings.HasSuffix(name, ".parquet") {
			return nil
		}
		month := strings.TrimSuffix(name, ".parquet")
		refs = append(refs, PartitionRef{Month: month, URL: conn.ObjectURL("", objectName)})
		return nil
	})
	if err != nil {
		return nil, exception.New("snapshots", "failed to list partitions", err, false, true)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Month < refs[j].Month })
	return refs, nil
}
