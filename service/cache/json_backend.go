package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/brojonat/solfeat/service/fsutil"
)

// JSONFileBackend stores the cache as one JSON document that is read whole at
// startup and rewritten whole on save. It supports a single writer only.
type JSONFileBackend struct {
	path string
}

// NewJSONFileBackend creates a backend for the file at path.
func NewJSONFileBackend(path string) *JSONFileBackend {
	return &JSONFileBackend{path: path}
}

// Load reads the cache file. A missing file yields an empty snapshot.
func (b *JSONFileBackend) Load(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file %s: %w", b.path, err)
	}

	snap := NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to parse cache file %s: %w", b.path, err)
	}
	snap.ensure()
	return snap, nil
}

// Save atomically rewrites the cache file.
func (b *JSONFileBackend) Save(ctx context.Context, snap *Snapshot) error {
	return fsutil.WriteFileAtomic(b.path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("failed to encode cache: %w", err)
		}
		return nil
	})
}

// Close is a no-op for the file backend.
func (b *JSONFileBackend) Close() error {
	return nil
}
