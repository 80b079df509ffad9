package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solfeat/service/db/dbgen"
	"github.com/brojonat/solfeat/service/features"
	"github.com/brojonat/solfeat/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no feature row exists for an address.
var ErrNotFound = errors.New("feature row not found")

const featuresTable = "address_features"

//go:embed sql/schema.sql
var schema string

// Store persists feature records in Postgres.
// It wraps the generated sqlc queries with domain conversions.
type Store struct {
	pool    *pgxpool.Pool
	q       *dbgen.Queries
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics, logger *slog.Logger) *Store {
	return &Store{pool: pool, q: dbgen.New(pool), metrics: m, logger: logger}
}

// Connect opens a pool to databaseURL, verifies it and ensures the schema.
func Connect(ctx context.Context, databaseURL string, m *metrics.Metrics, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewStore(pool, m, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to feature database")
	return store, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the feature table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) (err error) {
	defer s.observe("ensure_schema", time.Now(), &err)

	if _, err = s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// StoredRecord is a feature record as persisted.
type StoredRecord struct {
	Record    *features.Record
	UpdatedAt time.Time
}

// UpsertFeatures inserts or replaces the row of rec.Address.
func (s *Store) UpsertFeatures(ctx context.Context, rec *features.Record) (err error) {
	defer s.observe("upsert", time.Now(), &err)

	featuresJSON, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}
	tagsJSON, err := json.Marshal(rec.Quality)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	err = s.q.UpsertFeatures(ctx, dbgen.UpsertFeaturesParams{
		Address:  rec.Address,
		Class:    int32(rec.Class),
		Features: featuresJSON,
		Tags:     tagsJSON,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert features for %s: %w", rec.Address, err)
	}
	return nil
}

// GetFeatures returns the stored row of address, or ErrNotFound.
func (s *Store) GetFeatures(ctx context.Context, address string) (_ *StoredRecord, err error) {
	defer s.observe("get", time.Now(), &err)

	row, err := s.q.GetFeatures(ctx, address)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get features for %s: %w", address, err)
	}
	return storedFromRow(row)
}

// ListAddresses returns every stored address in ascending order.
func (s *Store) ListAddresses(ctx context.Context) (_ []string, err error) {
	defer s.observe("list", time.Now(), &err)

	addresses, err := s.q.ListAddresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	return addresses, nil
}

// CountByClass returns the number of stored rows per class label.
func (s *Store) CountByClass(ctx context.Context) (_ map[int]int64, err error) {
	defer s.observe("count", time.Now(), &err)

	rows, err := s.q.CountByClass(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count features: %w", err)
	}

	counts := make(map[int]int64, len(rows))
	for _, row := range rows {
		counts[int(row.Class)] = row.Count
	}
	return counts, nil
}

// Name identifies the store as a processor sink.
func (s *Store) Name() string { return "postgres" }

// Write upserts rec. It lets the store act as a processor sink.
func (s *Store) Write(ctx context.Context, rec *features.Record) error {
	return s.UpsertFeatures(ctx, rec)
}

func (s *Store) observe(operation string, start time.Time, err *error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(operation, featuresTable, time.Since(start).Seconds(), *err)
	}
}

// storedFromRow converts a generated row into the domain record.
func storedFromRow(row dbgen.AddressFeature) (*StoredRecord, error) {
	rec := &features.Record{Address: row.Address, Class: int(row.Class), Features: features.NewVector()}
	if err := json.Unmarshal(row.Features, rec.Features); err != nil {
		return nil, fmt.Errorf("failed to decode features for %s: %w", row.Address, err)
	}
	if err := json.Unmarshal(row.Tags, &rec.Quality); err != nil {
		return nil, fmt.Errorf("failed to decode tags for %s: %w", row.Address, err)
	}
	return &StoredRecord{Record: rec, UpdatedAt: row.UpdatedAt.Time}, nil
}
