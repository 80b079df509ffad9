package processor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/brojonat/solfeat/service/features"
	"github.com/brojonat/solfeat/service/fsutil"
)

// Table is the accumulated feature table of a run, one row per address.
type Table struct {
	records   []*features.Record
	processed map[string]struct{}
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{processed: make(map[string]struct{})}
}

// LoadTable reads a feature table written by Save. A missing file yields an
// empty table. Feature cells that do not parse as numbers load as 0.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open feature table: %w", err)
	}
	defer f.Close()

	return ReadTable(f)
}

// ReadTable parses a feature table from r.
func ReadTable(r io.Reader) (*Table, error) {
	t := NewTable()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read feature table header: %w", err)
	}
	if _, ok := columnIndex(header)[features.ColumnAddress]; !ok {
		return nil, fmt.Errorf("feature table has no %s column", features.ColumnAddress)
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read feature table row: %w", err)
		}
		t.Append(decodeRow(header, row))
	}
	return t, nil
}

func decodeRow(header, row []string) *features.Record {
	rec := &features.Record{Class: -1, Features: features.NewVector()}
	for i, name := range header {
		cell := field(row, i)
		switch name {
		case features.ColumnAddress:
			rec.Address = cell
		case features.ColumnClass:
			if class, err := parseFlag(cell); err == nil {
				rec.Class = class
			}
		case features.TagDataQualityWarning, features.TagPriceQuality, features.TagBehaviorPattern:
			rec.Quality.Set(name, cell)
		default:
			rec.Features.Set(name, coerce(cell))
		}
	}
	return rec
}

// coerce parses a feature cell. NaN and unparsable cells become 0.
func coerce(cell string) float64 {
	v, err := features.ParseValue(cell)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}

// Append adds a record and marks its address processed.
func (t *Table) Append(rec *features.Record) {
	t.records = append(t.records, rec)
	t.processed[rec.Address] = struct{}{}
}

// Processed reports whether address already has a row.
func (t *Table) Processed(address string) bool {
	_, ok := t.processed[address]
	return ok
}

// ProcessedAddresses returns the set of addresses with a row.
func (t *Table) ProcessedAddresses() map[string]struct{} {
	out := make(map[string]struct{}, len(t.processed))
	for addr := range t.processed {
		out[addr] = struct{}{}
	}
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.records)
}

// Records returns the rows in insertion order.
func (t *Table) Records() []*features.Record {
	return append([]*features.Record(nil), t.records...)
}

// Columns returns the output column order: feature names in first-seen
// order, then address, class and the tag columns.
func (t *Table) Columns() []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, rec := range t.records {
		if rec.Features == nil {
			continue
		}
		for _, name := range rec.Features.Names() {
			if features.IsReservedColumn(name) {
				continue
			}
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				cols = append(cols, name)
			}
		}
	}
	cols = append(cols, features.ColumnAddress, features.ColumnClass)
	return append(cols, features.TagColumns...)
}

// Write encodes the table as CSV. Features a row lacks are written as 0.
func (t *Table) Write(w io.Writer) error {
	cols := t.Columns()
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(cols))
	for _, rec := range t.records {
		for i, name := range cols {
			switch name {
			case features.ColumnAddress:
				row[i] = rec.Address
			case features.ColumnClass:
				row[i] = strconv.Itoa(rec.Class)
			case features.TagDataQualityWarning, features.TagPriceQuality, features.TagBehaviorPattern:
				row[i] = rec.Quality.Get(name)
			default:
				value := 0.0
				if rec.Features != nil {
					value = rec.Features.Value(name)
				}
				if math.IsNaN(value) {
					value = 0
				}
				row[i] = features.FormatValue(value)
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", rec.Address, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Save atomically rewrites the table at path.
func (t *Table) Save(path string) error {
	if err := fsutil.WriteFileAtomic(path, 0o644, t.Write); err != nil {
		return fmt.Errorf("failed to save feature table: %w", err)
	}
	return nil
}
