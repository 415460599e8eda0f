// Package seed loads the YAML catalog seed file: sanction sources, KPI
// definitions, and generic ingestion sources.
package seed

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/opengov-es/revisor/internal/model"
)

// File is the on-disk seed format.
type File struct {
	Sources        []model.Source        `yaml:"sanction_sources"`
	KPIs           []model.KPIDefinition `yaml:"kpi_definitions"`
	GenericSources []model.GenericSource `yaml:"sources"`
}

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: read %s", path)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "seed: parse %s", path)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks natural-key uniqueness and KPI kinds.
func (f *File) Validate() error {
	seen := make(map[string]bool, len(f.Sources))
	for _, src := range f.Sources {
		if src.ID == "" {
			return eris.New("seed: sanction source with blank id")
		}
		if seen[src.ID] {
			return eris.Errorf("seed: duplicate sanction source id %q", src.ID)
		}
		seen[src.ID] = true
	}

	seenKPI := make(map[string]bool, len(f.KPIs))
	for _, kpi := range f.KPIs {
		if kpi.ID == "" {
			return eris.New("seed: kpi definition with blank id")
		}
		if seenKPI[kpi.ID] {
			return eris.Errorf("seed: duplicate kpi id %q", kpi.ID)
		}
		seenKPI[kpi.ID] = true
		if kpi.Kind != model.KPIKindRate && kpi.Kind != model.KPIKindDays {
			return eris.Errorf("seed: kpi %q has unknown kind %q", kpi.ID, kpi.Kind)
		}
	}
	return nil
}
