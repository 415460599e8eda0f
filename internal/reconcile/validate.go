package reconcile

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/opengov-es/revisor/internal/config"
	"github.com/opengov-es/revisor/internal/model"
)

// RowReadiness is the per-row validator verdict. A row may carry several
// reasons at once; it is ready only when it carries none.
type RowReadiness struct {
	Index     int            `json:"row_index"`
	MetricKey string         `json:"metric_key"`
	Ready     bool           `json:"ready"`
	Reasons   []model.Reason `json:"reasons,omitempty"`
}

// ValidationTotals counts rows and distinct failure reasons.
type ValidationTotals struct {
	RowsTotal           int            `json:"rows_total"`
	RowsReady           int            `json:"rows_ready"`
	RowsBlocked         int            `json:"rows_blocked"`
	MetricKeysRederived int            `json:"metric_keys_rederived"`
	ReasonCounts        map[string]int `json:"reason_counts"`
}

// ValidationReport is the single gate consulted before the upsert engine may
// run in strict mode.
type ValidationReport struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Status      model.Health      `json:"status"`
	Totals      ValidationTotals  `json:"totals"`
	Checks      map[string]bool   `json:"checks"`
	Rows        []RowReadiness    `json:"rows"`
	Queue       []model.Rejection `json:"queue_rows"`

	// Input rows with granularity defaulted and metric keys re-derived,
	// indexed like Rows. ReadyRows hands these to the upsert engine so the
	// stored key always matches the natural-key columns.
	normalized []model.ApplyRow
}

// ReadyRows returns the normalized apply rows that passed every check, in
// input order.
func (r *ValidationReport) ReadyRows() []model.ApplyRow {
	var out []model.ApplyRow
	for _, res := range r.Rows {
		if res.Ready {
			out = append(out, r.normalized[res.Index])
		}
	}
	return out
}

// Validate checks a candidate apply batch against the catalog and the
// numeric consistency rules. Every failing check is counted independently;
// one queue entry is emitted per distinct reason per row.
func Validate(rows []model.ApplyRow, catalog *model.Catalog, cfg config.ReconcileConfig) *ValidationReport {
	report := &ValidationReport{
		GeneratedAt: time.Now().UTC(),
		Totals: ValidationTotals{
			RowsTotal:    len(rows),
			ReasonCounts: map[string]int{},
		},
		Checks: map[string]bool{},
	}

	if len(rows) == 0 {
		report.Status = model.HealthFailed
		report.Checks["input_rows_present"] = false
		report.Checks["all_rows_ready"] = false
		return report
	}
	report.Checks["input_rows_present"] = true

	seenKeys := make(map[string]bool)
	rederived := 0
	for i, row := range rows {
		if row.PeriodGranularity == "" {
			row.PeriodGranularity = cfg.DefaultGranularity
		}

		// The natural-key columns are authoritative. A pre-filled metric_key
		// that disagrees (the period was filled in after generation) is
		// re-derived so the stored key always matches the columns.
		key := model.BuildMetricKey(row.KPIID, row.SanctionSourceID, row.PeriodDate, row.PeriodGranularity)
		if row.MetricKey != "" && row.MetricKey != key {
			row.MetricKey = key
			rederived++
		}
		report.normalized = append(report.normalized, row)

		reasons := checkApplyRow(row, catalog, cfg)

		// Rows with blank key fields never claim a duplicate slot.
		if !containsReason(reasons, model.ReasonMissingRequiredField) {
			if seenKeys[key] {
				reasons = append(reasons, rejection(model.ReasonDuplicateMetricKey,
					fmt.Sprintf("metric key %s already present earlier in batch", key)))
			} else {
				seenKeys[key] = true
			}
		}

		res := RowReadiness{Index: i, MetricKey: key, Ready: len(reasons) == 0}
		for _, rej := range reasons {
			res.Reasons = append(res.Reasons, rej.Reason)
			rej.RowIndex = i
			rej.MetricKey = key
			rej.SanctionSourceID = row.SanctionSourceID
			rej.KPIID = row.KPIID
			rej.Priority = rej.Reason.Priority()
			report.Queue = append(report.Queue, rej)
			report.Totals.ReasonCounts[string(rej.Reason)]++
		}
		report.Rows = append(report.Rows, res)

		if res.Ready {
			report.Totals.RowsReady++
		} else {
			report.Totals.RowsBlocked++
		}
	}

	sortRejections(report.Queue)
	report.Totals.MetricKeysRederived = rederived
	report.Checks["all_rows_ready"] = report.Totals.RowsBlocked == 0
	report.Checks["metric_keys_consistent"] = rederived == 0

	if report.Totals.RowsBlocked > 0 {
		report.Status = model.HealthDegraded
	} else {
		report.Status = model.HealthOK
	}
	return report
}

// applyRequiredFields are the apply-row columns that must not be blank.
var applyRequiredFields = []struct {
	name string
	get  func(model.ApplyRow) string
}{
	{"sanction_source_id", func(r model.ApplyRow) string { return r.SanctionSourceID }},
	{"kpi_id", func(r model.ApplyRow) string { return r.KPIID }},
	{"period_date", func(r model.ApplyRow) string { return r.PeriodDate }},
	{"source_url", func(r model.ApplyRow) string { return r.SourceURL }},
	{"evidence_date", func(r model.ApplyRow) string { return r.EvidenceDate }},
	{"evidence_quote", func(r model.ApplyRow) string { return r.EvidenceQuote }},
	{"value", func(r model.ApplyRow) string { return r.Value }},
}

func rejection(reason model.Reason, detail string) model.Rejection {
	return model.Rejection{Reason: reason, Detail: detail}
}

func containsReason(rejections []model.Rejection, reason model.Reason) bool {
	for _, r := range rejections {
		if r.Reason == reason {
			return true
		}
	}
	return false
}

// checkApplyRow accumulates every independent failure for one apply row.
func checkApplyRow(row model.ApplyRow, catalog *model.Catalog, cfg config.ReconcileConfig) []model.Rejection {
	var out []model.Rejection

	var missing []string
	for _, f := range applyRequiredFields {
		if strings.TrimSpace(f.get(row)) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		out = append(out, rejection(model.ReasonMissingRequiredField, "blank: "+strings.Join(missing, ", ")))
	}

	if row.SanctionSourceID != "" && catalog.Source(row.SanctionSourceID) == nil {
		out = append(out, rejection(model.ReasonInvalidSanctionSourceID,
			fmt.Sprintf("sanction source %q not registered in catalog", row.SanctionSourceID)))
	}
	kpi := catalog.KPI(row.KPIID)
	if row.KPIID != "" && kpi == nil {
		out = append(out, rejection(model.ReasonInvalidKPIID,
			fmt.Sprintf("kpi %q not registered in catalog", row.KPIID)))
	}
	if row.SourceID != "" && !catalog.HasGenericSource(row.SourceID) {
		out = append(out, rejection(model.ReasonInvalidSourceID,
			fmt.Sprintf("source %q not present in sources table", row.SourceID)))
	}

	if row.SourceURL != "" && !strings.HasPrefix(row.SourceURL, "http://") && !strings.HasPrefix(row.SourceURL, "https://") {
		out = append(out, rejection(model.ReasonInvalidSourceURL,
			fmt.Sprintf("source_url %q must start with http:// or https://", row.SourceURL)))
	}

	if row.EvidenceDate != "" {
		if _, err := time.Parse("2006-01-02", row.EvidenceDate); err != nil {
			out = append(out, rejection(model.ReasonInvalidEvidenceDate,
				fmt.Sprintf("evidence_date %q is not YYYY-MM-DD", row.EvidenceDate)))
		}
	}
	if row.EvidenceQuote != "" && len([]rune(row.EvidenceQuote)) < cfg.MinEvidenceQuoteLen {
		out = append(out, rejection(model.ReasonShortEvidenceQuote,
			fmt.Sprintf("evidence quote shorter than %d characters", cfg.MinEvidenceQuoteLen)))
	}

	value, okV := parseCount(row.Value)
	if row.Value != "" && !okV {
		out = append(out, rejection(model.ReasonInvalidNumericValue, fmt.Sprintf("value %q is not numeric", row.Value)))
	}
	num, okN := parseCount(row.Numerator)
	if row.Numerator != "" && !okN {
		out = append(out, rejection(model.ReasonInvalidNumericValue, fmt.Sprintf("numerator %q is not numeric", row.Numerator)))
	}
	den, okD := parseCount(row.Denominator)
	if row.Denominator != "" && !okD {
		out = append(out, rejection(model.ReasonInvalidNumericValue, fmt.Sprintf("denominator %q is not numeric", row.Denominator)))
	}

	if kpi == nil || !okV {
		return out
	}

	switch kpi.Kind {
	case model.KPIKindRate:
		if row.Numerator == "" || row.Denominator == "" {
			out = append(out, rejection(model.ReasonMissingRatioComponents,
				"ratio KPI requires both numerator and denominator"))
			return out
		}
		if !okN || !okD {
			return out
		}
		if den <= 0 {
			out = append(out, rejection(model.ReasonZeroDenominator, "denominator must be strictly positive"))
			return out
		}
		if value < 0 || value > 1 {
			out = append(out, rejection(model.ReasonRateValueOutOfRange,
				fmt.Sprintf("rate value %s outside [0, 1]", row.Value)))
		}
		if diff := math.Abs(value - num/den); diff > cfg.RatioTolerance {
			out = append(out, rejection(model.ReasonFormulaMismatch,
				fmt.Sprintf("|value - numerator/denominator| = %g exceeds tolerance %g", diff, cfg.RatioTolerance)))
		}
	case model.KPIKindDays:
		if value <= 0 {
			out = append(out, rejection(model.ReasonNonPositiveP90Days, "delay value must be strictly positive"))
		}
	}

	return out
}
