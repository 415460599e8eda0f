// Package model defines the entities shared across the reconciliation
// pipeline: catalog rows, metric and source records, completeness statuses,
// and the CSV row shapes exchanged with fill-in sheets.
package model

import (
	"sort"
	"strings"
	"time"
)

// Source is a registered sanction-procedure reporting body (catalog row).
// Identity is the natural key ID; catalog rows are owned by the seeding
// process and read-only for the reconciliation core.
type Source struct {
	ID              string    `json:"sanction_source_id" yaml:"id"`
	Label           string    `json:"label" yaml:"label"`
	Organismo       string    `json:"organismo" yaml:"organismo"`
	Ambito          string    `json:"ambito" yaml:"ambito"`
	URL             string    `json:"source_url" yaml:"url"`
	ExpectedMetrics []string  `json:"expected_metrics" yaml:"expected_metrics"`
	CreatedAt       time.Time `json:"created_at,omitempty" yaml:"-"`
	UpdatedAt       time.Time `json:"updated_at,omitempty" yaml:"-"`
}

// KPIKind distinguishes how a KPI value is computed and validated.
type KPIKind string

const (
	// KPIKindRate is a ratio of two counts; value must lie in [0, 1].
	KPIKindRate KPIKind = "rate"
	// KPIKindDays is a raw duration statistic; value must be strictly positive.
	KPIKindDays KPIKind = "days"
)

// KPIDefinition describes one procedural KPI a source is expected to report.
type KPIDefinition struct {
	ID             string   `json:"kpi_id" yaml:"id"`
	Label          string   `json:"label" yaml:"label"`
	Formula        string   `json:"formula" yaml:"formula"`
	Kind           KPIKind  `json:"kind" yaml:"kind"`
	Direction      string   `json:"direction" yaml:"direction"`
	RequiredFields []string `json:"required_fields" yaml:"required_fields"`
}

// GenericSource is a row in the shared raw-ingestion sources table. Metric
// records may reference one as their ingestion origin; it is distinct from
// the sanction-source catalog.
type GenericSource struct {
	ID        string    `json:"source_id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	URL       string    `json:"url" yaml:"url"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"-"`
}

// Period identifies a reporting interval.
type Period struct {
	Date        string `json:"period_date"`
	Granularity string `json:"period_granularity"`
}

// IsZero reports whether the period filter is empty ("all time").
func (p Period) IsZero() bool {
	return p.Date == "" && p.Granularity == ""
}

// Granularities lists the accepted period granularities.
var Granularities = []string{"year", "quarter", "month", "day"}

// ValidGranularity reports whether g is a known period granularity.
func ValidGranularity(g string) bool {
	for _, known := range Granularities {
		if g == known {
			return true
		}
	}
	return false
}

// Catalog bundles the read-only lookup tables the classifier and validator
// consult. Lookups are by natural key.
type Catalog struct {
	Sources        []Source
	KPIs           []KPIDefinition
	GenericSources map[string]bool

	sourceByID map[string]*Source
	kpiByID    map[string]*KPIDefinition
}

// NewCatalog indexes the given catalog rows for lookup.
func NewCatalog(sources []Source, kpis []KPIDefinition, genericIDs []string) *Catalog {
	c := &Catalog{
		Sources:        sources,
		KPIs:           kpis,
		GenericSources: make(map[string]bool, len(genericIDs)),
		sourceByID:     make(map[string]*Source, len(sources)),
		kpiByID:        make(map[string]*KPIDefinition, len(kpis)),
	}
	for i := range sources {
		c.sourceByID[sources[i].ID] = &c.Sources[i]
	}
	for i := range kpis {
		c.kpiByID[kpis[i].ID] = &c.KPIs[i]
	}
	for _, id := range genericIDs {
		c.GenericSources[id] = true
	}
	return c
}

// Source returns the catalog row for id, or nil if not registered.
func (c *Catalog) Source(id string) *Source {
	return c.sourceByID[id]
}

// KPI returns the KPI definition for id, or nil if not registered.
func (c *Catalog) KPI(id string) *KPIDefinition {
	return c.kpiByID[id]
}

// HasGenericSource reports whether id exists in the generic sources table.
func (c *Catalog) HasGenericSource(id string) bool {
	return c.GenericSources[id]
}

// SortedSourceIDs returns the registered source ids in lexical order.
func (c *Catalog) SortedSourceIDs() []string {
	ids := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids
}

// ExpectedMetricsJoined renders the expected-metrics contract as the
// semicolon-separated form used in sheet metadata columns.
func (s Source) ExpectedMetricsJoined() string {
	return strings.Join(s.ExpectedMetrics, ";")
}
