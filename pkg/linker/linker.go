// Package linker joins flattened clinical events to normalized person
// records, producing the long-form fact table.
package linker

import (
	"github.com/niinog/hospital-data/pkg/table"
)

// FactColumns is the long-form fact contract: event attributes first, then
// the demographics carried over from the person table. Columns absent from
// either side are omitted, not synthesized.
var FactColumns = []string{
	"event_id",
	"person_id",
	"episode_id",
	"event_time",
	"code_system",
	"code",
	"code_label",
	"value",
	"unit",
	"gender",
	"region",
	"age_years",
	"total_coverage",
}

// Link left-joins events onto persons by person_id. Every event row is
// retained; events for unknown persons keep nil demographic cells. Neither
// input is mutated.
func Link(events, persons *table.Table) *table.Table {
	demographics := demographicColumns(persons)

	byID := make(map[string]table.Row, persons.Len())
	for _, row := range persons.Rows {
		id := table.AsString(row["person_id"])
		if id == "" {
			continue
		}
		if _, exists := byID[id]; !exists {
			byID[id] = row
		}
	}

	joined := table.New(events.Columns...)
	for _, c := range demographics {
		joined.AddColumn(c)
	}

	for _, event := range events.Rows {
		row := make(table.Row, len(event)+len(demographics))
		for k, v := range event {
			row[k] = v
		}
		person := byID[table.AsString(event["person_id"])]
		for _, c := range demographics {
			if person != nil {
				row[c] = person[c]
			} else {
				row[c] = nil
			}
		}
		joined.Append(row)
	}

	return joined.Project(FactColumns)
}

func demographicColumns(persons *table.Table) []string {
	out := make([]string, 0, len(persons.Columns))
	for _, c := range persons.Columns {
		if c == "person_id" {
			continue
		}
		out = append(out, c)
	}
	return out
}
