// Package features reshapes the long-form fact table into the wide
// per-person feature table and materializes hot rows into the online cache.
package features

import (
	"sort"
	"strings"

	"github.com/niinog/hospital-data/pkg/table"
)

// Pivot produces one row per person and one column per target label actually
// observed. Labels are compared after trimming surrounding whitespace. The
// winning cell is the last non-missing magnitude in input row order — not the
// most recent by timestamp; row order is the contract. Output columns are
// person_id followed by the observed labels in lexical order, and rows are
// sorted by person_id.
func Pivot(fact *table.Table, labels []string) *table.Table {
	targets := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if trimmed := strings.TrimSpace(l); trimmed != "" {
			targets[trimmed] = struct{}{}
		}
	}

	cells := make(map[string]map[string]float64)
	seenLabels := make(map[string]struct{})

	for _, row := range fact.Rows {
		label := strings.TrimSpace(table.AsString(row["code_label"]))
		if _, ok := targets[label]; !ok {
			continue
		}
		person := table.AsString(row["person_id"])
		if person == "" {
			continue
		}
		seenLabels[label] = struct{}{}
		if _, ok := cells[person]; !ok {
			cells[person] = make(map[string]float64)
		}
		// Non-numeric magnitudes degrade to missing and never overwrite an
		// earlier real value.
		if v, ok := table.AsFloat(row["value"]); ok {
			cells[person][label] = v
		}
	}

	columns := make([]string, 0, len(seenLabels))
	for label := range seenLabels {
		columns = append(columns, label)
	}
	sort.Strings(columns)

	persons := make([]string, 0, len(cells))
	for person := range cells {
		persons = append(persons, person)
	}
	sort.Strings(persons)

	out := table.New(append([]string{"person_id"}, columns...)...)
	for _, person := range persons {
		row := table.Row{"person_id": person}
		for _, label := range columns {
			if v, ok := cells[person][label]; ok {
				row[label] = v
			} else {
				row[label] = nil
			}
		}
		out.Append(row)
	}

	return out
}
