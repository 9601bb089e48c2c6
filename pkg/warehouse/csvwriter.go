// Package warehouse holds the sink collaborators: the flat-file table writer
// and the analytical warehouse loader. Both replace whole tables; there are
// no append semantics anywhere in the output layout.
package warehouse

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/niinog/hospital-data/pkg/table"
)

// WriteTable writes one derived table as <dir>/<name>.csv, overwriting any
// previous run's file wholesale. Missing cells render as empty fields,
// timestamps as RFC3339.
func WriteTable(dir, name string, t *table.Table) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	path := filepath.Join(dir, name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return "", err
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			record[i] = table.FormatCell(row[col])
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return path, nil
}
