// Package ingest holds the source collaborators: the flat CSV batch reader
// and the hierarchical bundle reader. No schema is enforced at this boundary;
// the normalizer tolerates whatever columns arrive.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/niinog/hospital-data/pkg/table"
)

// ReadBatch reads one CSV export into a raw table. The first record is the
// header; all cells stay strings. Short records leave trailing cells absent,
// long records drop the overflow.
func ReadBatch(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch %s: %w", path, err)
	}
	defer f.Close()

	return ReadBatchFrom(f)
}

func ReadBatchFrom(r io.Reader) (*table.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return table.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	t := table.New(header...)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		row := make(table.Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		t.Append(row)
	}

	return t, nil
}
