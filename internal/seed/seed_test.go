package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengov-es/revisor/internal/model"
)

func writeSeed(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	path := writeSeed(t, `
sanction_sources:
  - id: teac
    label: Tribunal Económico-Administrativo Central
    organismo: Ministerio de Hacienda
    ambito: estatal
    source_url: https://example.org/teac
    expected_metrics:
      - recurso_estimation_rate
      - resolution_delay_p90_days
kpi_definitions:
  - id: recurso_estimation_rate
    label: Tasa de estimación de recursos
    kind: rate
  - id: resolution_delay_p90_days
    label: Percentil 90 de demora de resolución
    kind: days
sources:
  - id: boe_scrape
    name: BOE scraper
`)

	f, err := Load(path)
	require.NoError(t, err)
	require.Len(t, f.Sources, 1)
	assert.Equal(t, "teac", f.Sources[0].ID)
	assert.Equal(t, []string{"recurso_estimation_rate", "resolution_delay_p90_days"}, f.Sources[0].ExpectedMetrics)
	require.Len(t, f.KPIs, 2)
	assert.Equal(t, model.KPIKindDays, f.KPIs[1].Kind)
	require.Len(t, f.GenericSources, 1)
	assert.Equal(t, "boe_scrape", f.GenericSources[0].ID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed: read")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeSeed(t, "sanction_sources: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed: parse")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		file    File
		wantErr string
	}{
		{
			name:    "blank source id",
			file:    File{Sources: []model.Source{{ID: ""}}},
			wantErr: "blank id",
		},
		{
			name:    "duplicate source id",
			file:    File{Sources: []model.Source{{ID: "teac"}, {ID: "teac"}}},
			wantErr: `duplicate sanction source id "teac"`,
		},
		{
			name:    "blank kpi id",
			file:    File{KPIs: []model.KPIDefinition{{ID: ""}}},
			wantErr: "kpi definition with blank id",
		},
		{
			name: "duplicate kpi id",
			file: File{KPIs: []model.KPIDefinition{
				{ID: "recurso_estimation_rate", Kind: model.KPIKindRate},
				{ID: "recurso_estimation_rate", Kind: model.KPIKindRate},
			}},
			wantErr: `duplicate kpi id "recurso_estimation_rate"`,
		},
		{
			name:    "unknown kpi kind",
			file:    File{KPIs: []model.KPIDefinition{{ID: "x", Kind: "percentage"}}},
			wantErr: `unknown kind "percentage"`,
		},
		{
			name: "valid",
			file: File{
				Sources: []model.Source{{ID: "teac"}, {ID: "cnmc"}},
				KPIs:    []model.KPIDefinition{{ID: "x", Kind: model.KPIKindRate}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.file.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
