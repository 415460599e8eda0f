// Package reconcile implements the official-review completeness engine:
// gap classification, remediation sheet generation, raw-to-KPI derivation,
// apply-readiness validation, idempotent upserts, coverage reporting, and
// the cycle orchestrator tying them together.
package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/opengov-es/revisor/internal/config"
	"github.com/opengov-es/revisor/internal/model"
	"github.com/opengov-es/revisor/internal/store"
)

// GapOptions filters the gap queue.
type GapOptions struct {
	// Period restricts classification to one reporting period; zero means
	// "all time" (the most recent metric row per pair is considered).
	Period model.Period
	// Statuses is an optional allow-list; empty means all non-ready (plus
	// ready when IncludeReady is set).
	Statuses []model.CompletenessStatus
	// Limit caps the queue after sorting; 0 means no cap.
	Limit int
	// IncludeReady keeps ready triples in the queue output.
	IncludeReady bool
}

// GapTotals aggregates the full source×KPI cross product, before any
// allow-list or cap is applied.
type GapTotals struct {
	SourcesTotal                  int `json:"sources_total"`
	KPIsTotal                     int `json:"kpis_total"`
	ExpectedPairsTotal            int `json:"expected_pairs_total"`
	PairsMissingSourceTotal       int `json:"pairs_missing_source_total"`
	PairsMissingMetricTotal       int `json:"pairs_missing_metric_total"`
	PairsMissingSourceRecordTotal int `json:"pairs_missing_source_record_total"`
	PairsMissingEvidenceTotal     int `json:"pairs_missing_evidence_total"`
	PairsReadyTotal               int `json:"pairs_ready_total"`
	QueueRowsTotal                int `json:"queue_rows_total"`
}

// GapReport is the classifier output: the prioritized gap queue plus
// aggregate health.
type GapReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Status      model.Health     `json:"status"`
	Totals      GapTotals        `json:"totals"`
	Checks      map[string]bool  `json:"checks"`
	QueueRows   []model.QueueRow `json:"queue_rows"`
}

// GapQueue classifies every (source, kpi) pair in the catalog cross product,
// plus any orphan pairs found in stored metrics whose source is not
// registered. The queue is sorted by descending priority with a
// deterministic natural-key tiebreak, and truncated to opts.Limit only after
// sorting so the cap never biases the urgency ranking.
func GapQueue(ctx context.Context, st store.Store, cfg config.ReconcileConfig, opts GapOptions) (*GapReport, error) {
	log := zap.L().With(zap.String("component", "reconcile.classifier"))

	catalog, err := store.LoadCatalog(ctx, st)
	if err != nil {
		return nil, eris.Wrap(err, "classifier: load catalog")
	}
	metrics, err := st.ListMetrics(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "classifier: list metrics")
	}

	report := &GapReport{
		GeneratedAt: time.Now().UTC(),
		Checks:      map[string]bool{},
	}
	report.Totals.SourcesTotal = len(catalog.Sources)
	report.Totals.KPIsTotal = len(catalog.KPIs)
	report.Totals.ExpectedPairsTotal = len(catalog.Sources) * len(catalog.KPIs)
	report.Checks["catalog_sources_present"] = len(catalog.Sources) > 0
	report.Checks["kpi_definitions_present"] = len(catalog.KPIs) > 0

	if len(catalog.Sources) == 0 || len(catalog.KPIs) == 0 {
		report.Status = model.HealthFailed
		report.Checks["all_pairs_ready"] = false
		return report, nil
	}

	byPair := indexMetrics(metrics, opts.Period)

	var rows []model.QueueRow
	for _, src := range catalog.Sources {
		for _, kpi := range catalog.KPIs {
			metric := byPair[pairKey(kpi.ID, src.ID)]
			row := classifyPair(&src, &kpi, metric, opts.Period, cfg.DefaultGranularity)
			rows = append(rows, row)
			tallyStatus(&report.Totals, row.Status)
		}
	}

	// Metrics referencing an unregistered sanction source classify as
	// missing_source, one row per orphan pair.
	for _, row := range orphanRows(catalog, metrics) {
		rows = append(rows, row)
		report.Totals.PairsMissingSourceTotal++
	}

	nonReady := len(rows) - report.Totals.PairsReadyTotal
	report.Checks["all_pairs_ready"] = nonReady == 0
	if nonReady > 0 {
		report.Status = model.HealthDegraded
	} else {
		report.Status = model.HealthOK
	}

	rows = filterRows(rows, opts)
	sortQueueRows(rows)
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	report.QueueRows = rows
	report.Totals.QueueRowsTotal = len(rows)

	log.Debug("gap queue classified",
		zap.Int("expected_pairs", report.Totals.ExpectedPairsTotal),
		zap.Int("queue_rows", len(rows)),
		zap.String("status", string(report.Status)),
	)
	return report, nil
}

// pairKey indexes metrics by (kpi, source).
func pairKey(kpiID, sourceID string) string {
	return kpiID + "|" + sourceID
}

// indexMetrics keeps at most one metric per (kpi, source) pair: the one
// matching the period filter, or the most recent period when the filter is
// empty.
func indexMetrics(metrics []model.MetricRecord, period model.Period) map[string]*model.MetricRecord {
	byPair := make(map[string]*model.MetricRecord)
	for i := range metrics {
		m := &metrics[i]
		if !period.IsZero() {
			if m.PeriodDate != period.Date || m.PeriodGranularity != period.Granularity {
				continue
			}
		}
		key := pairKey(m.KPIID, m.SanctionSourceID)
		prev := byPair[key]
		if prev == nil || m.PeriodDate > prev.PeriodDate {
			byPair[key] = m
		}
	}
	return byPair
}

// classifyPair applies the fixed status precedence for one catalog pair.
func classifyPair(src *model.Source, kpi *model.KPIDefinition, metric *model.MetricRecord, period model.Period, defaultGranularity string) model.QueueRow {
	periodDate := period.Date
	granularity := period.Granularity
	if granularity == "" {
		granularity = defaultGranularity
	}
	if metric != nil {
		periodDate = metric.PeriodDate
		granularity = metric.PeriodGranularity
	}

	expectedKey := model.BuildMetricKey(kpi.ID, src.ID, periodDate, granularity)
	row := model.QueueRow{
		QueueKey:          "queue:" + expectedKey,
		SanctionSourceID:  src.ID,
		KPIID:             kpi.ID,
		KPILabel:          kpi.Label,
		PeriodDate:        periodDate,
		PeriodGranularity: granularity,
		Label:             src.Label,
		Organismo:         src.Organismo,
		SourceURL:         src.URL,
		MetricKeyExpected: expectedKey,
	}

	switch {
	case metric == nil:
		row.Status = model.StatusMissingMetric
	case !metric.HasProvenance():
		row.Status = model.StatusMissingSourceRecord
	case !metric.HasEvidence():
		row.Status = model.StatusMissingEvidence
	default:
		row.Status = model.StatusReady
	}

	if metric != nil {
		row.MetricExists = true
		row.MetricKey = metric.MetricKey
		row.SourceRecordPresent = metric.HasProvenance()
		row.EvidencePresent = metric.HasEvidence()
		if metric.SourceURL != "" {
			row.SourceURL = metric.SourceURL
		}
	}

	row.Priority = row.Status.Priority()
	row.NextAction = row.Status.NextAction()
	return row
}

// orphanRows builds missing_source rows for metrics whose sanction source is
// not registered in the catalog, one per distinct (kpi, source) pair.
func orphanRows(catalog *model.Catalog, metrics []model.MetricRecord) []model.QueueRow {
	seen := make(map[string]bool)
	var out []model.QueueRow
	for i := range metrics {
		m := &metrics[i]
		if catalog.Source(m.SanctionSourceID) != nil {
			continue
		}
		key := pairKey(m.KPIID, m.SanctionSourceID)
		if seen[key] {
			continue
		}
		seen[key] = true

		kpiLabel := ""
		if kpi := catalog.KPI(m.KPIID); kpi != nil {
			kpiLabel = kpi.Label
		}
		out = append(out, model.QueueRow{
			QueueKey:            "queue:" + m.MetricKey,
			SanctionSourceID:    m.SanctionSourceID,
			KPIID:               m.KPIID,
			KPILabel:            kpiLabel,
			PeriodDate:          m.PeriodDate,
			PeriodGranularity:   m.PeriodGranularity,
			SourceURL:           m.SourceURL,
			MetricExists:        true,
			SourceRecordPresent: m.HasProvenance(),
			EvidencePresent:     m.HasEvidence(),
			MetricKey:           m.MetricKey,
			MetricKeyExpected:   m.MetricKey,
			Status:              model.StatusMissingSource,
			Priority:            model.StatusMissingSource.Priority(),
			NextAction:          model.StatusMissingSource.NextAction(),
		})
	}
	return out
}

// tallyStatus increments the per-status totals for one catalog pair.
func tallyStatus(t *GapTotals, status model.CompletenessStatus) {
	switch status {
	case model.StatusMissingMetric:
		t.PairsMissingMetricTotal++
	case model.StatusMissingSourceRecord:
		t.PairsMissingSourceRecordTotal++
	case model.StatusMissingEvidence:
		t.PairsMissingEvidenceTotal++
	case model.StatusReady:
		t.PairsReadyTotal++
	}
}

// filterRows applies the status allow-list and the ready flag.
func filterRows(rows []model.QueueRow, opts GapOptions) []model.QueueRow {
	allowed := make(map[model.CompletenessStatus]bool, len(opts.Statuses))
	for _, s := range opts.Statuses {
		allowed[s] = true
	}

	var out []model.QueueRow
	for _, row := range rows {
		if len(allowed) > 0 {
			if !allowed[row.Status] {
				continue
			}
		} else if row.Status == model.StatusReady && !opts.IncludeReady {
			continue
		}
		out = append(out, row)
	}
	return out
}

// sortQueueRows orders by descending priority, then the natural key, so
// repeated runs against unchanged state produce byte-identical queues.
func sortQueueRows(rows []model.QueueRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.SanctionSourceID != b.SanctionSourceID {
			return a.SanctionSourceID < b.SanctionSourceID
		}
		if a.KPIID != b.KPIID {
			return a.KPIID < b.KPIID
		}
		if a.PeriodDate != b.PeriodDate {
			return a.PeriodDate < b.PeriodDate
		}
		return a.PeriodGranularity < b.PeriodGranularity
	})
}
