// Package cache holds the price and token metadata memo shared by the
// resolvers, and persists it between runs.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brojonat/solfeat/service/metrics"
	"github.com/brojonat/solfeat/service/tokens"
)

// Mapping names, also used as JSON keys and storage prefixes.
const (
	MappingSolBTC    = "sol_btc"
	MappingTokenSol  = "token_sol"
	MappingTokenInfo = "token_info"
)

// Snapshot is the persisted form of the cache.
type Snapshot struct {
	SolBTC    map[string]float64          `json:"sol_btc"`
	TokenSol  map[string]float64          `json:"token_sol"`
	TokenInfo map[string]tokens.TokenInfo `json:"token_info"`
}

// NewSnapshot returns an empty snapshot with all mappings allocated.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		SolBTC:    make(map[string]float64),
		TokenSol:  make(map[string]float64),
		TokenInfo: make(map[string]tokens.TokenInfo),
	}
}

func (s *Snapshot) ensure() {
	if s.SolBTC == nil {
		s.SolBTC = make(map[string]float64)
	}
	if s.TokenSol == nil {
		s.TokenSol = make(map[string]float64)
	}
	if s.TokenInfo == nil {
		s.TokenInfo = make(map[string]tokens.TokenInfo)
	}
}

// Backend persists snapshots.
type Backend interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Close() error
}

// Stats reports the number of entries per mapping.
type Stats struct {
	SolBTC    int `json:"sol_btc"`
	TokenSol  int `json:"token_sol"`
	TokenInfo int `json:"token_info"`
}

// Cache is an append-only memo: the first value stored for a key is kept
// for the lifetime of the process. A stored ratio of 0 means "unresolved".
type Cache struct {
	mu      sync.RWMutex
	data    *Snapshot
	backend Backend
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Open loads the cache from backend. An unreadable store is logged and
// replaced by an empty cache rather than aborting the run.
// A nil backend yields an in-memory cache whose Save is a no-op.
func Open(ctx context.Context, backend Backend, m *metrics.Metrics, logger *slog.Logger) *Cache {
	c := &Cache{
		data:    NewSnapshot(),
		backend: backend,
		metrics: m,
		logger:  logger,
	}
	if backend == nil {
		return c
	}

	snap, err := backend.Load(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to load price cache, starting empty", "error", err)
		return c
	}
	snap.ensure()
	c.data = snap

	stats := c.Stats()
	logger.InfoContext(ctx, "loaded price cache",
		"sol_btc", stats.SolBTC,
		"token_sol", stats.TokenSol,
		"token_info", stats.TokenInfo,
	)
	return c
}

// NewMemory returns an empty in-memory cache.
func NewMemory(logger *slog.Logger) *Cache {
	return Open(context.Background(), nil, nil, logger)
}

// SolBTC returns a cached SOL cross rate (SOL/BTC or SOL/USD) by key.
func (c *Cache) SolBTC(key string) (float64, bool) {
	c.mu.RLock()
	v, ok := c.data.SolBTC[key]
	c.mu.RUnlock()
	c.recordLookup(MappingSolBTC, ok)
	return v, ok
}

// PutSolBTC stores a SOL cross rate unless the key already exists.
func (c *Cache) PutSolBTC(key string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data.SolBTC[key]; !exists {
		c.data.SolBTC[key] = value
	}
}

// TokenSol returns a cached token/SOL ratio by key.
func (c *Cache) TokenSol(key string) (float64, bool) {
	c.mu.RLock()
	v, ok := c.data.TokenSol[key]
	c.mu.RUnlock()
	c.recordLookup(MappingTokenSol, ok)
	return v, ok
}

// PutTokenSol stores a token/SOL ratio unless the key already exists.
func (c *Cache) PutTokenSol(key string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data.TokenSol[key]; !exists {
		c.data.TokenSol[key] = value
	}
}

// TokenInfo returns cached metadata for a mint.
func (c *Cache) TokenInfo(mint string) (tokens.TokenInfo, bool) {
	c.mu.RLock()
	v, ok := c.data.TokenInfo[mint]
	c.mu.RUnlock()
	c.recordLookup(MappingTokenInfo, ok)
	return v, ok
}

// PutTokenInfo stores metadata for a mint unless it is already cached.
func (c *Cache) PutTokenInfo(mint string, info tokens.TokenInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data.TokenInfo[mint]; !exists {
		c.data.TokenInfo[mint] = info
	}
}

// Stats reports the current number of entries per mapping.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		SolBTC:    len(c.data.SolBTC),
		TokenSol:  len(c.data.TokenSol),
		TokenInfo: len(c.data.TokenInfo),
	}
}

// Snapshot returns a deep copy of the cache contents.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := NewSnapshot()
	for k, v := range c.data.SolBTC {
		out.SolBTC[k] = v
	}
	for k, v := range c.data.TokenSol {
		out.TokenSol[k] = v
	}
	for k, v := range c.data.TokenInfo {
		out.TokenInfo[k] = v
	}
	return out
}

// Save persists the full cache through the backend.
func (c *Cache) Save(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	snap := c.Snapshot()
	if err := c.backend.Save(ctx, snap); err != nil {
		return fmt.Errorf("failed to save price cache: %w", err)
	}
	c.logger.DebugContext(ctx, "saved price cache",
		"sol_btc", len(snap.SolBTC),
		"token_sol", len(snap.TokenSol),
		"token_info", len(snap.TokenInfo),
	)
	return nil
}

// Close releases the backend.
func (c *Cache) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

func (c *Cache) recordLookup(mapping string, hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(mapping, hit)
	}
}
