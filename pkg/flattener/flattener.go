// Package flattener promotes nested clinical-event documents into one flat
// row per event of the target resource type.
package flattener

import (
	"strings"

	"github.com/niinog/hospital-data/pkg/table"
)

// ReferencePrefix is stripped from subject/episode reference strings.
// Stripping is idempotent: already-bare identifiers pass through unchanged.
const ReferencePrefix = "urn:uuid:"

// Columns is the flattened event contract. Zero matching resources still
// yield a table with this full column set.
var Columns = []string{
	"event_id",
	"person_id",
	"episode_id",
	"event_time",
	"code_system",
	"code",
	"code_label",
	"value",
	"unit",
}

// Entry wraps one resource inside a document.
type Entry struct {
	Resource map[string]interface{} `json:"resource"`
}

// Document is one hierarchical source document (a bundle of wrapped
// resources, possibly of mixed types).
type Document struct {
	Entry []Entry `json:"entry"`
}

type Flattener struct {
	eventType string
}

func New(eventType string) *Flattener {
	return &Flattener{eventType: eventType}
}

// Flatten scans every document and emits one row per resource whose
// resourceType matches the target. Other resource types are ignored.
// Malformed fields degrade to missing values; no record is dropped for them.
func (f *Flattener) Flatten(docs []Document) *table.Table {
	out := table.New(Columns...)

	for _, doc := range docs {
		for _, entry := range doc.Entry {
			if entry.Resource == nil {
				continue
			}
			if table.AsString(entry.Resource["resourceType"]) != f.eventType {
				continue
			}
			out.Append(flattenResource(entry.Resource))
		}
	}

	return out
}

func flattenResource(resource map[string]interface{}) table.Row {
	row := table.Row{
		"event_id":   nilIfEmpty(table.AsString(resource["id"])),
		"person_id":  nilIfEmpty(StripReference(table.AsString(extractMap(resource["subject"])["reference"]))),
		"episode_id": nilIfEmpty(StripReference(table.AsString(extractMap(resource["encounter"])["reference"]))),
		"event_time": nil,
		"value":      nil,
		"unit":       nil,
	}

	if parsed, ok := table.AsTime(resource["effectiveDateTime"]); ok {
		row["event_time"] = parsed
	}

	// First coding only; events carrying several codings keep just the
	// leading one and the rest are discarded.
	system, code, label := firstCoding(extractMap(resource["code"]))
	row["code_system"] = system
	row["code"] = code
	row["code_label"] = label

	quantity := extractMap(resource["valueQuantity"])
	if v, ok := table.AsFloat(quantity["value"]); ok {
		row["value"] = v
	}
	if unit := table.AsString(quantity["unit"]); unit != "" {
		row["unit"] = unit
	}

	return row
}

// firstCoding returns the leading coding entry's system/code/display. All
// three come back nil when no coding exists.
func firstCoding(code map[string]interface{}) (interface{}, interface{}, interface{}) {
	codings, ok := code["coding"].([]interface{})
	if !ok || len(codings) == 0 {
		return nil, nil, nil
	}
	first, ok := codings[0].(map[string]interface{})
	if !ok {
		return nil, nil, nil
	}
	return nilIfEmpty(table.AsString(first["system"])),
		nilIfEmpty(table.AsString(first["code"])),
		nilIfEmpty(table.AsString(first["display"]))
}

// StripReference removes the URI prefix from a reference string. References
// without the prefix pass through unchanged.
func StripReference(ref string) string {
	return strings.TrimPrefix(ref, ReferencePrefix)
}

func extractMap(value interface{}) map[string]interface{} {
	if m, ok := value.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
