package processor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
)

// Manifest column names.
const (
	ManifestAddressColumn = "Address"
	ManifestFlagColumn    = "FLAG"
)

// ErrMissingColumns is returned when the manifest lacks a required column.
var ErrMissingColumns = errors.New("manifest is missing required columns")

// Entry is one labeled address from the manifest.
type Entry struct {
	Address string `json:"address"`
	Class   int    `json:"class"`
}

// ReadManifest reads the labeled address list at path. Rows with an
// unparsable FLAG are skipped with a warning.
func ReadManifest(path string, logger *slog.Logger) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	return ParseManifest(f, logger)
}

// ParseManifest reads a manifest from r.
func ParseManifest(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s, %s", ErrMissingColumns, ManifestAddressColumn, ManifestFlagColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %w", err)
	}

	index := columnIndex(header)
	var missing []string
	for _, col := range []string{ManifestAddressColumn, ManifestFlagColumn} {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	addrCol, flagCol := index[ManifestAddressColumn], index[ManifestFlagColumn]

	var entries []Entry
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest line %d: %w", line, err)
		}

		address := strings.TrimSpace(field(row, addrCol))
		class, err := parseFlag(field(row, flagCol))
		if err != nil {
			logger.Warn("skipping manifest row with invalid flag",
				"line", line,
				"address", address,
				"error", err,
			)
			continue
		}
		entries = append(entries, Entry{Address: address, Class: class})
	}

	return entries, nil
}

func columnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	return index
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// parseFlag accepts integer labels, including integral floats such as "1.0".
func parseFlag(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid FLAG %q", s)
	}
	return int(f), nil
}
