package reconcile

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/opengov-es/revisor/internal/model"
	"github.com/opengov-es/revisor/internal/store"
)

// SourceCoverageRow aggregates metric completeness for one registered source.
type SourceCoverageRow struct {
	SanctionSourceID string  `json:"sanction_source_id"`
	Label            string  `json:"label"`
	Organismo        string  `json:"organismo"`
	KPIsExpected     int     `json:"kpis_expected"`
	KPIsCovered      int     `json:"kpis_covered"`
	MetricsCaptured  int     `json:"metrics_captured"`
	WithSourceRecord int     `json:"with_source_record"`
	WithEvidence     int     `json:"with_evidence"`
	CoveragePct      float64 `json:"coverage_pct"`
}

// CoverageTotals aggregates the per-source rows.
type CoverageTotals struct {
	SourcesTotal        int `json:"sources_total"`
	KPIsTotal           int `json:"kpis_total"`
	MetricsTotal        int `json:"metrics_total"`
	SourcesFullyCovered int `json:"sources_fully_covered"`
}

// CoverageReport mirrors the classifier's precedence rules at source
// granularity. It is safe to run before and after an apply cycle to diff
// the cycle's effect.
type CoverageReport struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Status      model.Health        `json:"status"`
	Totals      CoverageTotals      `json:"totals"`
	Checks      map[string]bool     `json:"checks"`
	Rows        []SourceCoverageRow `json:"rows"`
}

// Coverage reports, per registered source, how many KPIs are captured,
// traceable, and evidenced.
func Coverage(ctx context.Context, st store.Store) (*CoverageReport, error) {
	catalog, err := store.LoadCatalog(ctx, st)
	if err != nil {
		return nil, eris.Wrap(err, "reporter: load catalog")
	}
	metrics, err := st.ListMetrics(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reporter: list metrics")
	}

	report := &CoverageReport{
		GeneratedAt: time.Now().UTC(),
		Checks:      map[string]bool{},
	}
	report.Totals.SourcesTotal = len(catalog.Sources)
	report.Totals.KPIsTotal = len(catalog.KPIs)
	report.Totals.MetricsTotal = len(metrics)
	report.Checks["catalog_sources_present"] = len(catalog.Sources) > 0

	if len(catalog.Sources) == 0 {
		report.Status = model.HealthFailed
		report.Checks["all_sources_fully_covered"] = false
		return report, nil
	}

	kpisBySource := make(map[string]map[string]bool)
	captured := make(map[string]int)
	withRecord := make(map[string]int)
	withEvidence := make(map[string]int)
	for _, m := range metrics {
		captured[m.SanctionSourceID]++
		if m.HasProvenance() {
			withRecord[m.SanctionSourceID]++
		}
		if m.HasEvidence() {
			withEvidence[m.SanctionSourceID]++
		}
		if kpisBySource[m.SanctionSourceID] == nil {
			kpisBySource[m.SanctionSourceID] = make(map[string]bool)
		}
		kpisBySource[m.SanctionSourceID][m.KPIID] = true
	}

	degraded := false
	for _, src := range catalog.Sources {
		row := SourceCoverageRow{
			SanctionSourceID: src.ID,
			Label:            src.Label,
			Organismo:        src.Organismo,
			KPIsExpected:     len(catalog.KPIs),
			KPIsCovered:      len(kpisBySource[src.ID]),
			MetricsCaptured:  captured[src.ID],
			WithSourceRecord: withRecord[src.ID],
			WithEvidence:     withEvidence[src.ID],
		}
		if row.KPIsExpected > 0 {
			row.CoveragePct = 100 * float64(row.KPIsCovered) / float64(row.KPIsExpected)
		}

		full := row.KPIsCovered == row.KPIsExpected &&
			row.WithSourceRecord == row.MetricsCaptured &&
			row.WithEvidence == row.MetricsCaptured &&
			row.MetricsCaptured > 0
		if full {
			report.Totals.SourcesFullyCovered++
		} else {
			degraded = true
		}

		report.Rows = append(report.Rows, row)
	}

	report.Checks["all_sources_fully_covered"] = !degraded
	if degraded {
		report.Status = model.HealthDegraded
	} else {
		report.Status = model.HealthOK
	}
	return report, nil
}
