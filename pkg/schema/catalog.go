// Package schema declares the source-to-canonical column contracts for each
// flat entity kind. The catalog ships embedded; an external file can override
// it for site-specific exports.
package schema

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed schemas.yaml
var embedded []byte

// Entity names, matching the catalog keys and the persisted table names.
const (
	Person          = "person"
	CareEpisode     = "care_episode"
	Caregiver       = "caregiver"
	Organization    = "organization"
	MedicationOrder = "medication_order"
)

// Entity is the normalization contract for one flat entity kind. Mappings
// keys are lower-cased raw column names. Output is the allow-list, in final
// column order; derived columns (age_years, duration_hours, order_seq) appear
// here even though no source column maps to them. Required is the validator's
// column set and may be empty for tables that are not validated.
type Entity struct {
	Key      string            `yaml:"key"`
	Mappings map[string]string `yaml:"mappings"`
	Output   []string          `yaml:"output"`
	Required []string          `yaml:"required"`
}

type Catalog struct {
	Entities map[string]Entity `yaml:"entities"`
}

// Load reads a catalog from path, or the embedded default when path is empty.
func Load(path string) (Catalog, error) {
	content := embedded
	if path != "" {
		external, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Catalog{}, err
		}
		content = external
	}

	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Entities) == 0 {
		return Catalog{}, fmt.Errorf("entity catalog empty")
	}
	return cat, nil
}

func Default() Catalog {
	cat, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("embedded entity catalog invalid: %v", err))
	}
	return cat
}

// Lookup finds an entity contract by name, case-insensitively.
func (c Catalog) Lookup(name string) (Entity, bool) {
	if c.Entities == nil {
		return Entity{}, false
	}
	entity, ok := c.Entities[strings.ToLower(strings.TrimSpace(name))]
	return entity, ok
}
