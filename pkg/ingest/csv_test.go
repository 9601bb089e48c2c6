package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadBatchFrom(t *testing.T) {
	in := "Id,BIRTHDATE,GENDER\np1,1990-01-01,F\np2,1985-06-15,M\n"

	tbl, err := ReadBatchFrom(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tbl.Columns) != 3 || tbl.Columns[0] != "Id" {
		t.Fatalf("unexpected columns %v", tbl.Columns)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	if tbl.Rows[1]["GENDER"] != "M" {
		t.Fatalf("unexpected cell %v", tbl.Rows[1]["GENDER"])
	}
}

func TestReadBatchFromStripsBOM(t *testing.T) {
	in := "\uFEFFId,GENDER\np1,F\n"

	tbl, err := ReadBatchFrom(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Columns[0] != "Id" {
		t.Fatalf("BOM not stripped from header: %q", tbl.Columns[0])
	}
}

func TestReadBatchFromShortRecord(t *testing.T) {
	in := "Id,BIRTHDATE,GENDER\np1,1990-01-01\n"

	tbl, err := ReadBatchFrom(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := tbl.Rows[0]
	if _, present := row["GENDER"]; present {
		t.Fatalf("short record must leave trailing cells absent, got %v", row)
	}
}

func TestReadBatchFromEmptyInput(t *testing.T) {
	tbl, err := ReadBatchFrom(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Len() != 0 || len(tbl.Columns) != 0 {
		t.Fatalf("expected empty table, got %v with %d rows", tbl.Columns, tbl.Len())
	}
}

func TestReadBatchMissingFile(t *testing.T) {
	if _, err := ReadBatch(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReadBundles(t *testing.T) {
	dir := t.TempDir()
	bundle := `{"entry":[{"resource":{"resourceType":"Observation","id":"o1"}}]}`
	if err := os.WriteFile(filepath.Join(dir, "b1.json"), []byte(bundle), 0o644); err != nil {
		t.Fatal(err)
	}
	// Non-json files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	docs, err := ReadBundles(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || len(docs[0].Entry) != 1 {
		t.Fatalf("unexpected documents: %+v", docs)
	}
	if docs[0].Entry[0].Resource["id"] != "o1" {
		t.Fatalf("unexpected resource: %v", docs[0].Entry[0].Resource)
	}
}

func TestReadBundlesEmptyDirIsNotAnError(t *testing.T) {
	docs, err := ReadBundles(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
}

func TestReadBundlesMalformedDocument(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadBundles(dir); err == nil {
		t.Fatal("expected error for malformed bundle")
	}
}
