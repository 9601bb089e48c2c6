package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/niinog/hospital-data/pkg/flattener"
)

// ReadBundles loads every *.json document under dir. Each file is one
// hierarchical bundle of wrapped resources; all of them are scanned by the
// flattener downstream. A directory without bundles is not an error.
func ReadBundles(dir string) ([]flattener.Document, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	docs := make([]flattener.Document, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read bundle %s: %w", path, err)
		}

		var doc flattener.Document
		if err := json.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode bundle %s: %w", path, err)
		}
		docs = append(docs, doc)
	}

	return docs, nil
}
