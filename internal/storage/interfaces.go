// Package storage defines the common interfaces for the blob storage
// adapters. They abstract object operations so the produce pipeline can
// target a local file system in development and GCS in production through
// a unified API.
package storage

import (
	"context"
	"io"
)

// StorageConnection represents a named connection to an object store.
type StorageConnection interface {
	// Upload writes data to the specified bucket and object name,
	// replacing any existing object (last-write-wins).
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens the specified object for reading. The returned
	// ReadCloser must be closed by the caller.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects lists objects under the specified bucket and prefix.
	// The callback is invoked once per object name, allowing large
	// listings to stream without buffering.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject deletes the specified object.
	DeleteObject(ctx context.Context, bucket, objectName string) error
	// ObjectURL returns the externally addressable URL of an object.
	ObjectURL(bucket, objectName string) string

	// Close releases any resources held by the connection.
	Close() error
	// Type returns the adapter type (e.g. "local", "gcs").
	Type() string
	// Name returns the connection name from configuration.
	Name() string
}

// StorageProvider manages the acquisition and lifecycle of connections of
// a single adapter type.
type StorageProvider interface {
	// GetConnection retrieves (or lazily creates) the connection with
	// the specified name.
	GetConnection(name string) (StorageConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the adapter type this provider serves.
	Type() string
}

// ConnectionResolver resolves a named storage connection by consulting the
// configuration for its type and delegating to the matching provider.
type ConnectionResolver interface {
	ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error)
}
