package features

import (
	"testing"

	"github.com/niinog/hospital-data/pkg/table"
)

func factRow(person, label string, value interface{}) table.Row {
	return table.Row{"person_id": person, "code_label": label, "value": value}
}

func factTable(rows ...table.Row) *table.Table {
	t := table.New("event_id", "person_id", "code_label", "value")
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

func TestPivotLastInRowOrderWins(t *testing.T) {
	// Timestamps play no part: the second row wins purely by position.
	fact := factTable(
		factRow("p1", "Body Weight", 70.0),
		factRow("p1", "Body Weight", 72.0),
	)

	out := Pivot(fact, []string{"Body Weight"})
	if out.Len() != 1 {
		t.Fatalf("expected one person row, got %d", out.Len())
	}
	if v := out.Rows[0]["Body Weight"].(float64); v != 72.0 {
		t.Fatalf("expected last value 72, got %v", v)
	}
}

func TestPivotTrimsLabelWhitespace(t *testing.T) {
	fact := factTable(
		factRow("p1", " Body Height ", 170.0),
		factRow("p2", "Body Height", 160.0),
		factRow("p3", "Body Height  ", 150.0),
	)

	out := Pivot(fact, []string{"Body Height"})
	if len(out.Columns) != 2 {
		t.Fatalf("whitespace variants must share one column, got %v", out.Columns)
	}
	if out.Rows[0]["Body Height"] == nil {
		t.Fatal("trimmed label should have matched")
	}
}

func TestPivotDiscardsNonTargetLabels(t *testing.T) {
	fact := factTable(
		factRow("p1", "Body Height", 170.0),
		factRow("p1", "Pain severity", 3.0),
	)

	out := Pivot(fact, []string{"Body Height"})
	if out.HasColumn("Pain severity") {
		t.Fatalf("non-target label leaked into output: %v", out.Columns)
	}
}

func TestPivotColumnOrderLexical(t *testing.T) {
	fact := factTable(
		factRow("p1", "Glucose", 90.0),
		factRow("p1", "Body Height", 170.0),
		factRow("p1", "Heart rate", 60.0),
	)

	// Input list order is not preserved; columns sort lexically after
	// person_id.
	out := Pivot(fact, []string{"Heart rate", "Glucose", "Body Height"})
	want := []string{"person_id", "Body Height", "Glucose", "Heart rate"}
	for i, c := range want {
		if out.Columns[i] != c {
			t.Fatalf("expected columns %v, got %v", want, out.Columns)
		}
	}
}

func TestPivotMissingObservationStaysMissing(t *testing.T) {
	fact := factTable(
		factRow("p1", "Body Height", 170.0),
		factRow("p2", "Glucose", 90.0),
	)

	out := Pivot(fact, []string{"Body Height", "Glucose"})
	if out.Len() != 2 {
		t.Fatalf("expected two person rows, got %d", out.Len())
	}
	// Rows sort by person identifier.
	if out.Rows[0]["person_id"] != "p1" || out.Rows[1]["person_id"] != "p2" {
		t.Fatalf("expected sorted person rows, got %v / %v",
			out.Rows[0]["person_id"], out.Rows[1]["person_id"])
	}
	if out.Rows[0]["Glucose"] != nil {
		t.Fatalf("expected missing cell, got %v", out.Rows[0]["Glucose"])
	}
}

func TestPivotNonNumericMagnitudeDoesNotOverwrite(t *testing.T) {
	fact := factTable(
		factRow("p1", "Glucose", 95.0),
		factRow("p1", "Glucose", "error"),
	)

	out := Pivot(fact, []string{"Glucose"})
	if v := out.Rows[0]["Glucose"].(float64); v != 95.0 {
		t.Fatalf("non-numeric magnitude must not clobber a real value, got %v", v)
	}
}
