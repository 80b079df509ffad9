package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"

	"github.com/brojonat/solfeat/service/tokens"
)

// PebbleBackend stores one key per cache entry (prefixed by mapping name),
// so saves only append or overwrite individual keys.
type PebbleBackend struct {
	db *pebble.DB
}

// NewPebbleBackend opens (or creates) a Pebble database in dir.
func NewPebbleBackend(dir string) (*PebbleBackend, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %w", err)
	}
	return &PebbleBackend{db: db}, nil
}

func entryKey(mapping, key string) []byte {
	return []byte(mapping + "/" + key)
}

// prefixUpperBound returns the smallest key greater than every key with prefix.
func prefixUpperBound(prefix string) []byte {
	end := []byte(prefix)
	end[len(end)-1]++
	return end
}

// Load scans every mapping prefix.
func (b *PebbleBackend) Load(ctx context.Context) (*Snapshot, error) {
	snap := NewSnapshot()

	err := b.scan(MappingSolBTC, func(key string, value []byte) error {
		var v float64
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		snap.SolBTC[key] = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = b.scan(MappingTokenSol, func(key string, value []byte) error {
		var v float64
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		snap.TokenSol[key] = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = b.scan(MappingTokenInfo, func(key string, value []byte) error {
		var v tokens.TokenInfo
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		snap.TokenInfo[key] = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

func (b *PebbleBackend) scan(mapping string, fn func(key string, value []byte) error) error {
	prefix := mapping + "/"
	iter, err := b.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("creating iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return fmt.Errorf("getting value from iter: %w", err)
		}
		key := strings.TrimPrefix(string(iter.Key()), prefix)
		if err := fn(key, value); err != nil {
			return fmt.Errorf("decoding %s entry %q: %w", mapping, key, err)
		}
	}
	return nil
}

// Save writes every entry in a single synced batch.
func (b *PebbleBackend) Save(ctx context.Context, snap *Snapshot) error {
	batch := b.db.NewBatch()
	defer batch.Close()

	set := func(mapping, key string, v any) error {
		value, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding %s entry %q: %w", mapping, key, err)
		}
		return batch.Set(entryKey(mapping, key), value, nil)
	}

	for k, v := range snap.SolBTC {
		if err := set(MappingSolBTC, k, v); err != nil {
			return err
		}
	}
	for k, v := range snap.TokenSol {
		if err := set(MappingTokenSol, k, v); err != nil {
			return err
		}
	}
	for k, v := range snap.TokenInfo {
		if err := set(MappingTokenInfo, k, v); err != nil {
			return err
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("committing cache batch: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *PebbleBackend) Close() error {
	return b.db.Close()
}
