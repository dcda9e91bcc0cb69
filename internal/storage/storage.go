// Package storage holds downloaded tile images. Tiles are keyed
// "<x>/<y>.png" relative to the output root; a key's existence is the
// only completion evidence the pipeline relies on.
package storage

import (
	"context"
	"fmt"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/memblob"
)

// TileStore is a thin wrapper over a blob bucket.
type TileStore struct {
	bucket *blob.Bucket
}

// OpenDir opens (creating if needed) a tile store over a local directory.
func OpenDir(dir string) (*TileStore, error) {
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{
		CreateDir: true,
		// Tiles are plain files consumed directly by the map viewer;
		// sidecar attribute files would pollute the directory.
		Metadata: fileblob.MetadataDontWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("opening tile directory %s: %w", dir, err)
	}
	return &TileStore{bucket: bucket}, nil
}

// OpenMem returns an in-memory tile store for tests.
func OpenMem() *TileStore {
	return &TileStore{bucket: memblob.OpenBucket(nil)}
}

// Exists reports whether a tile is already present.
func (s *TileStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.bucket.Exists(ctx, key)
}

// Write stores tile bytes under key, creating parents as needed.
func (s *TileStore) Write(ctx context.Context, key string, data []byte) error {
	return s.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{
		ContentType: "image/png",
	})
}

// Read returns the stored bytes for key.
func (s *TileStore) Read(ctx context.Context, key string) ([]byte, error) {
	return s.bucket.ReadAll(ctx, key)
}

// Close releases the underlying bucket.
func (s *TileStore) Close() error {
	return s.bucket.Close()
}
