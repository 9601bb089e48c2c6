package pipeline

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/niinog/hospital-data/pkg/common/config"
	"github.com/niinog/hospital-data/pkg/common/models"
	"github.com/niinog/hospital-data/pkg/schema"
)

const patientsCSV = `Id,BIRTHDATE,GENDER,STATE,HEALTHCARE_EXPENSES,HEALTHCARE_COVERAGE
p1,1990-01-01,F,Massachusetts,1000.50,750.25
p2,1985-06-15,M,New York,2000.00,0.00
`

const encountersCSV = `Id,PATIENT,ORGANIZATION,PROVIDER,START,STOP,ENCOUNTERCLASS,BASE_ENCOUNTER_COST,PAYER_COVERAGE
e1,p1,org1,c1,2019-03-01T08:00:00Z,2019-03-01T13:00:00Z,ambulatory,125.00,100.00
`

const providersCSV = `Id,NAME,SPECIALITY,ORGANIZATION
c1,Dr. Example,GENERAL PRACTICE,org1
`

const organizationsCSV = `Id,NAME,CITY,STATE,ZIP
org1,Example Hospital,Boston,MA,02101
`

const medicationsCSV = `PATIENT,ENCOUNTER,CODE,DESCRIPTION,START,STOP,TOTALCOST
p1,e1,12345,Example 100mg,2019-03-01T08:00:00Z,2019-04-01T08:00:00Z,52.00
`

const bundleJSON = `{
  "entry": [
    {"resource": {
      "resourceType": "Observation",
      "id": "o1",
      "subject": {"reference": "urn:uuid:p1"},
      "encounter": {"reference": "urn:uuid:e1"},
      "effectiveDateTime": "2019-03-01T09:00:00Z",
      "code": {"coding": [{"system": "http://loinc.org", "code": "8302-2", "display": "Body Height"}]},
      "valueQuantity": {"value": 170.5, "unit": "cm"}
    }},
    {"resource": {"resourceType": "Patient", "id": "p1"}}
  ]
}`

func stageInput(t *testing.T, patients string) string {
	t.Helper()
	root := t.TempDir()
	csvDir := filepath.Join(root, "csv")
	fhirDir := filepath.Join(root, "fhir")
	for _, dir := range []string{csvDir, fhirDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	files := map[string]string{
		"patients.csv":      patients,
		"encounters.csv":    encountersCSV,
		"providers.csv":     providersCSV,
		"organizations.csv": organizationsCSV,
		"medications.csv":   medicationsCSV,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(csvDir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(fhirDir, "bundle.json"), []byte(bundleJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func testRunner(t *testing.T, inputRoot, outputRoot string) *Runner {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := &config.Config{
		InputRoot:     inputRoot,
		OutputRoot:    outputRoot,
		ReferenceDate: config.DefaultReferenceDate,
		FeatureLabels: config.DefaultFeatureLabels,
		EventType:     "Observation",
	}
	return NewRunner(cfg, schema.Default(), log)
}

func readOutput(t *testing.T, outputRoot, name string) [][]string {
	t.Helper()
	f, err := os.Open(filepath.Join(outputRoot, name+".csv"))
	if err != nil {
		t.Fatalf("missing output table %s: %v", name, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestRunEndToEnd(t *testing.T) {
	inputRoot := stageInput(t, patientsCSV)
	outputRoot := t.TempDir()

	summary, err := testRunner(t, inputRoot, outputRoot).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !summary.Succeeded() {
		t.Fatalf("expected run to succeed, got %+v", summary)
	}
	if len(summary.Tables) != 8 {
		t.Fatalf("expected 8 table reports, got %d", len(summary.Tables))
	}

	for _, name := range []string{
		TablePerson, TableCareEpisode, TableCaregiver, TableOrganization,
		TableMedicationOrder, TableClinicalEvent, TablePatientFact, TableFeatures,
	} {
		readOutput(t, outputRoot, name)
	}

	persons := readOutput(t, outputRoot, TablePerson)
	if len(persons) != 3 {
		t.Fatalf("expected header plus 2 person rows, got %d", len(persons))
	}
	col := map[string]int{}
	for i, c := range persons[0] {
		col[c] = i
	}
	if persons[1][col["age_years"]] != "30" {
		t.Fatalf("expected derived age 30, got %q", persons[1][col["age_years"]])
	}

	features := readOutput(t, outputRoot, TableFeatures)
	if len(features) != 2 {
		t.Fatalf("expected one person with observations, got %d rows", len(features)-1)
	}
	if features[0][0] != "person_id" || features[0][1] != "Body Height" {
		t.Fatalf("unexpected feature header %v", features[0])
	}
	if features[1][0] != "p1" || features[1][1] != "170.5" {
		t.Fatalf("unexpected feature row %v", features[1])
	}
}

func TestRunValidationFailureStillWritesOutputs(t *testing.T) {
	duplicated := patientsCSV + "p1,1990-01-01,F,Massachusetts,0,0\n"
	inputRoot := stageInput(t, duplicated)
	outputRoot := t.TempDir()

	summary, err := testRunner(t, inputRoot, outputRoot).Run(context.Background())
	if err != nil {
		t.Fatalf("validation failure is not an infrastructure error: %v", err)
	}
	if summary.Succeeded() {
		t.Fatal("expected run marked failed for duplicate person ids")
	}
	if summary.Status != models.RunFailed {
		t.Fatalf("unexpected status %q", summary.Status)
	}

	// Outputs are still delivered so the failure can be inspected.
	persons := readOutput(t, outputRoot, TablePerson)
	if len(persons) != 4 {
		t.Fatalf("expected all person rows written, got %d", len(persons))
	}

	var personReport *models.TableReport
	for i := range summary.Tables {
		if summary.Tables[i].Name == TablePerson {
			personReport = &summary.Tables[i]
		}
	}
	if personReport == nil || personReport.Verdict != "FAILED" || personReport.FatalIss == 0 {
		t.Fatalf("expected failed person verdict in report, got %+v", personReport)
	}
}

func TestRunMissingSourceIsAnError(t *testing.T) {
	inputRoot := stageInput(t, patientsCSV)
	if err := os.Remove(filepath.Join(inputRoot, "csv", "patients.csv")); err != nil {
		t.Fatal(err)
	}

	summary, err := testRunner(t, inputRoot, t.TempDir()).Run(context.Background())
	if err == nil {
		t.Fatal("expected error for missing source file")
	}
	if summary.Status != models.RunFailed || summary.Error == "" {
		t.Fatalf("expected failed summary with error, got %+v", summary)
	}
}
