package schema

import "testing"

func TestEmbeddedCatalogLoads(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{Person, CareEpisode, Caregiver, Organization, MedicationOrder} {
		if _, ok := cat.Lookup(name); !ok {
			t.Fatalf("expected entity %s in embedded catalog", name)
		}
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	cat := Default()
	if _, ok := cat.Lookup("  Person "); !ok {
		t.Fatal("lookup should trim and lower-case")
	}
}

func TestPersonContract(t *testing.T) {
	cat := Default()
	person, _ := cat.Lookup(Person)

	if person.Key != "person_id" {
		t.Fatalf("expected person_id key, got %s", person.Key)
	}
	if person.Mappings["id"] != "person_id" {
		t.Fatalf("expected id mapping, got %v", person.Mappings)
	}
	if person.Output[0] != "person_id" {
		t.Fatalf("expected person_id first in output, got %v", person.Output)
	}
	if len(person.Required) == 0 {
		t.Fatal("person table must declare required columns")
	}
}

func TestMedicationOrderUsesEphemeralKey(t *testing.T) {
	cat := Default()
	order, _ := cat.Lookup(MedicationOrder)

	if order.Key != "order_seq" {
		t.Fatalf("expected order_seq key, got %s", order.Key)
	}
	for _, target := range order.Mappings {
		if target == "order_seq" {
			t.Fatal("order_seq is derived, no source column may map to it")
		}
	}
}
