package linker

import (
	"testing"

	"github.com/niinog/hospital-data/pkg/table"
)

func personTable() *table.Table {
	t := table.New("person_id", "birth_date", "age_years", "gender", "region", "total_expenses", "total_coverage")
	t.Append(table.Row{
		"person_id": "p1", "age_years": 30.0, "gender": "F",
		"region": "Massachusetts", "total_coverage": 500.0,
	})
	return t
}

func eventTable(personIDs ...string) *table.Table {
	t := table.New("event_id", "person_id", "episode_id", "event_time", "code_system", "code", "code_label", "value", "unit")
	for i, id := range personIDs {
		t.Append(table.Row{
			"event_id":   string(rune('a' + i)),
			"person_id":  id,
			"code_label": "Body Height",
			"value":      170.0,
		})
	}
	return t
}

func TestLinkIsTotalOnLeft(t *testing.T) {
	events := eventTable("p1", "unknown", "p1")
	linked := Link(events, personTable())

	if linked.Len() != events.Len() {
		t.Fatalf("left join must keep every event row: got %d want %d", linked.Len(), events.Len())
	}
}

func TestLinkCarriesDemographics(t *testing.T) {
	linked := Link(eventTable("p1"), personTable())

	row := linked.Rows[0]
	if row["gender"] != "F" || row["region"] != "Massachusetts" {
		t.Fatalf("expected demographics joined in, got %v / %v", row["gender"], row["region"])
	}
	if row["age_years"] != 30.0 {
		t.Fatalf("expected age joined in, got %v", row["age_years"])
	}
}

func TestLinkUnknownPersonKeepsEventWithNilDemographics(t *testing.T) {
	linked := Link(eventTable("ghost"), personTable())

	row := linked.Rows[0]
	if row["value"] != 170.0 {
		t.Fatalf("event attributes must survive, got %v", row["value"])
	}
	if row["gender"] != nil || row["age_years"] != nil {
		t.Fatalf("expected nil demographics for unknown person, got %v / %v",
			row["gender"], row["age_years"])
	}
}

func TestLinkColumnOrderEventsThenDemographics(t *testing.T) {
	linked := Link(eventTable("p1"), personTable())

	if linked.Columns[0] != "event_id" {
		t.Fatalf("expected event columns first, got %v", linked.Columns)
	}
	last := linked.Columns[len(linked.Columns)-1]
	if last != "total_coverage" {
		t.Fatalf("expected demographic columns last, got %v", linked.Columns)
	}
	// birth_date and total_expenses are not part of the fact contract.
	if linked.HasColumn("birth_date") || linked.HasColumn("total_expenses") {
		t.Fatalf("unexpected columns in fact table: %v", linked.Columns)
	}
}

func TestLinkDoesNotMutateInputs(t *testing.T) {
	events := eventTable("p1")
	persons := personTable()

	Link(events, persons)

	if len(events.Columns) != 9 {
		t.Fatalf("event table mutated: %v", events.Columns)
	}
	if _, ok := events.Rows[0]["gender"]; ok {
		t.Fatal("event rows mutated by join")
	}
}
