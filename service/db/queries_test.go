package db

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/solfeat/service/db/dbgen"
	"github.com/brojonat/solfeat/service/features"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDB records statements and answers them from canned rows.
type fakeDB struct {
	sql  []string
	args [][]any
	row  []any
	rows [][]any
	err  error
}

func (f *fakeDB) record(sql string, args []any) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.record(sql, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	f.record(sql, args)
	if f.err != nil {
		return nil, f.err
	}
	return &fakeRows{rows: f.rows, pos: -1}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	f.record(sql, args)
	return fakeRow{values: f.row, err: f.err}
}

func scanInto(values []any, dest []any) error {
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(values[i]))
	}
	return nil
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.values == nil {
		return pgx.ErrNoRows
	}
	return scanInto(r.values, dest)
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool                                   { r.pos++; return r.pos < len(r.rows) }
func (r *fakeRows) Scan(dest ...any) error                       { return scanInto(r.rows[r.pos], dest) }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.pos], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func newFakeStore(db *fakeDB) *Store {
	return &Store{q: dbgen.New(db), logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestStore_UpsertUsesGeneratedQuery(t *testing.T) {
	db := &fakeDB{}
	store := newFakeStore(db)

	require.NoError(t, store.UpsertFeatures(context.Background(), testRecord("addr-a", 1, 12)))

	require.Len(t, db.sql, 1)
	assert.True(t, strings.HasPrefix(db.sql[0], "-- name: UpsertFeatures :exec"))
	require.Len(t, db.args[0], 4)
	assert.Equal(t, "addr-a", db.args[0][0])
	assert.Equal(t, int32(1), db.args[0][1])

	var tags features.Quality
	require.NoError(t, json.Unmarshal(db.args[0][3].([]byte), &tags))
	assert.Equal(t, features.PriceQualityGood, tags.PriceQuality)
}

func TestStore_GetFeaturesFromRow(t *testing.T) {
	updated := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	featuresJSON, err := json.Marshal(testRecord("addr-a", 0, 7).Features)
	require.NoError(t, err)

	db := &fakeDB{row: []any{
		"addr-a",
		int32(0),
		featuresJSON,
		[]byte(`{"data_quality_warning":"NORMAL"}`),
		pgtype.Timestamptz{Time: updated, Valid: true},
	}}
	store := newFakeStore(db)

	got, err := store.GetFeatures(context.Background(), "addr-a")
	require.NoError(t, err)
	assert.Equal(t, "addr-a", got.Record.Address)
	assert.Equal(t, 0, got.Record.Class)
	assert.Equal(t, 7.0, got.Record.Features.Value("total_txs"))
	assert.Equal(t, updated, got.UpdatedAt)
	assert.Equal(t, []any{"addr-a"}, db.args[0])
}

func TestStore_GetFeaturesNotFound(t *testing.T) {
	store := newFakeStore(&fakeDB{})

	_, err := store.GetFeatures(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CountByClassAndList(t *testing.T) {
	db := &fakeDB{rows: [][]any{{int32(0), int64(1)}, {int32(1), int64(2)}}}
	store := newFakeStore(db)

	counts, err := store.CountByClass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int]int64{0: 1, 1: 2}, counts)

	db.rows = [][]any{{"addr-a"}, {"addr-b"}}
	addresses, err := store.ListAddresses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"addr-a", "addr-b"}, addresses)
}

func TestEmbeddedSchema(t *testing.T) {
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS address_features")
	assert.Contains(t, schema, "address_features_class_idx")
}
