package processor

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/brojonat/solfeat/service/features"
	"github.com/brojonat/solfeat/service/fsutil"
)

// ExportRecord writes rec as indented JSON to {dir}/{address}_features.json
// and returns the file path.
func ExportRecord(dir string, rec *features.Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("no record to export")
	}

	path := filepath.Join(dir, rec.Address+"_features.json")
	err := fsutil.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		data, err := json.MarshalIndent(rec, "", "    ")
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		_, err = w.Write(append(data, '\n'))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to export %s: %w", rec.Address, err)
	}
	return path, nil
}
