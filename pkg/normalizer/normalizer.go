// Package normalizer maps raw flat record batches into the canonical tables.
// Normalization is tolerant by design: unparsable values degrade to missing,
// absent columns are dropped from the projection, and nothing here ever fails
// a record. The validator is the strict gate.
package normalizer

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/niinog/hospital-data/pkg/schema"
	"github.com/niinog/hospital-data/pkg/table"
)

// Columns coerced to timestamps after renaming.
var dateColumns = map[string]struct{}{
	"birth_date": {},
	"start_time": {},
	"end_time":   {},
}

// Columns coerced to numerics after renaming.
var numericColumns = map[string]struct{}{
	"total_expenses":   {},
	"total_coverage":   {},
	"base_cost":        {},
	"total_claim_cost": {},
	"total_cost":       {},
	"coverage_amount":  {},
	"revenue":          {},
	"utilization":      {},
}

type Normalizer struct {
	catalog       schema.Catalog
	referenceDate time.Time
}

func New(cat schema.Catalog, referenceDate time.Time) *Normalizer {
	return &Normalizer{catalog: cat, referenceDate: referenceDate.UTC()}
}

// Normalize cleans one raw batch into the canonical table for the named
// entity kind. The input table is never mutated.
func (n *Normalizer) Normalize(entity string, raw *table.Table) (*table.Table, error) {
	contract, ok := n.catalog.Lookup(entity)
	if !ok {
		return nil, fmt.Errorf("entity kind %s not in catalog", entity)
	}
	if raw == nil {
		return table.New(contract.Output...), nil
	}

	t := raw.Copy()
	lowerColumns(t)
	t.Rename(contract.Mappings)
	coerceColumns(t)

	switch strings.ToLower(entity) {
	case schema.Person:
		n.deriveAge(t)
	case schema.CareEpisode:
		deriveDuration(t)
	case schema.MedicationOrder:
		assignOrderSeq(t)
	}

	return t.Project(contract.Output), nil
}

func lowerColumns(t *table.Table) {
	mapping := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		if lowered := strings.ToLower(c); lowered != c {
			mapping[c] = lowered
		}
	}
	if len(mapping) > 0 {
		t.Rename(mapping)
	}
}

func coerceColumns(t *table.Table) {
	for _, c := range t.Columns {
		_, isDate := dateColumns[c]
		_, isNumeric := numericColumns[c]
		if !isDate && !isNumeric {
			continue
		}
		for _, row := range t.Rows {
			v, ok := row[c]
			if !ok || table.IsMissing(v) {
				row[c] = nil
				continue
			}
			if isDate {
				if parsed, ok := table.AsTime(v); ok {
					row[c] = parsed
				} else {
					row[c] = nil
				}
				continue
			}
			if f, ok := table.AsFloat(v); ok {
				row[c] = f
			} else {
				row[c] = nil
			}
		}
	}
}

// deriveAge computes age_years = round(days(reference - birth)/365.25, 1).
// Age is always derived, never taken from input.
func (n *Normalizer) deriveAge(t *table.Table) {
	t.AddColumn("age_years")
	for _, row := range t.Rows {
		birth, ok := table.AsTime(row["birth_date"])
		if !ok {
			row["age_years"] = nil
			continue
		}
		days := int(n.referenceDate.Sub(birth.UTC()).Hours() / 24)
		row["age_years"] = round1(float64(days) / 365.25)
	}
}

// deriveDuration computes duration_hours = (end-start) seconds / 3600.
// Negative durations are emitted unmodified; flagging them is the
// validator's job.
func deriveDuration(t *table.Table) {
	t.AddColumn("duration_hours")
	for _, row := range t.Rows {
		start, okStart := table.AsTime(row["start_time"])
		end, okEnd := table.AsTime(row["end_time"])
		if !okStart || !okEnd {
			row["duration_hours"] = nil
			continue
		}
		row["duration_hours"] = end.Sub(start).Seconds() / 3600
	}
}

// assignOrderSeq stamps each medication order with its zero-based input
// position. The sequence is ephemeral: it does not survive filtering,
// reordering or re-ingestion and must never be used as a join key.
func assignOrderSeq(t *table.Table) {
	t.AddColumn("order_seq")
	for i, row := range t.Rows {
		row["order_seq"] = i
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
