package reconcile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/opengov-es/revisor/internal/config"
	"github.com/opengov-es/revisor/internal/model"
)

// DeriveTotals counts raw rows in and apply rows out.
type DeriveTotals struct {
	RawRowsTotal    int `json:"raw_rows_total"`
	RawRowsAccepted int `json:"raw_rows_accepted"`
	RawRowsRejected int `json:"raw_rows_rejected"`
	ApplyRowsTotal  int `json:"apply_rows_total"`
	RejectionsTotal int `json:"rejections_total"`
}

// DeriveResult is the outcome of deriving KPI apply rows from raw capture
// rows. Each raw row is accepted or rejected whole: a rejected row emits no
// apply rows at all.
type DeriveResult struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Status      model.Health      `json:"status"`
	Totals      DeriveTotals      `json:"totals"`
	Checks      map[string]bool   `json:"checks"`
	ApplyRows   []model.ApplyRow  `json:"apply_rows"`
	Rejections  []model.Rejection `json:"rejections"`
}

// rawRequiredFields are the raw-capture columns that must not be blank.
var rawRequiredFields = []struct {
	name string
	get  func(model.RawCaptureRow) string
}{
	{"sanction_source_id", func(r model.RawCaptureRow) string { return r.SanctionSourceID }},
	{"period_date", func(r model.RawCaptureRow) string { return r.PeriodDate }},
	{"period_granularity", func(r model.RawCaptureRow) string { return r.PeriodGranularity }},
	{"source_url", func(r model.RawCaptureRow) string { return r.SourceURL }},
	{"evidence_date", func(r model.RawCaptureRow) string { return r.EvidenceDate }},
	{"evidence_quote", func(r model.RawCaptureRow) string { return r.EvidenceQuote }},
	{"recurso_presentado_count", func(r model.RawCaptureRow) string { return r.RecursoPresentado }},
	{"recurso_estimado_count", func(r model.RawCaptureRow) string { return r.RecursoEstimado }},
	{"anulaciones_formales_count", func(r model.RawCaptureRow) string { return r.AnulacionesFormales }},
	{"resolution_delay_p90_days", func(r model.RawCaptureRow) string { return r.ResolutionDelayP90 }},
}

// Derive converts raw per-source capture rows into the three derived KPI
// apply rows (estimation rate, annulment rate, p90 delay). It is a pure
// function of its inputs; rejected rows are reported, never written.
func Derive(rows []model.RawCaptureRow, cfg config.ReconcileConfig) *DeriveResult {
	result := &DeriveResult{
		GeneratedAt: time.Now().UTC(),
		Checks:      map[string]bool{},
	}
	result.Totals.RawRowsTotal = len(rows)

	if len(rows) == 0 {
		result.Status = model.HealthFailed
		result.Checks["raw_rows_present"] = false
		return result
	}
	result.Checks["raw_rows_present"] = true

	seenKeys := make(map[string]bool)
	for i, raw := range rows {
		rejections := checkRawRow(raw, cfg)

		// Duplicate natural keys within one batch: first occurrence wins.
		if len(rejections) == 0 {
			dupKey := pairBatchKey(raw)
			if seenKeys[dupKey] {
				rejections = append(rejections, model.Rejection{
					Reason: model.ReasonDuplicateMetricKey,
					Detail: fmt.Sprintf("raw row for %s repeats period %s/%s", raw.SanctionSourceID, raw.PeriodDate, raw.PeriodGranularity),
				})
			} else {
				seenKeys[dupKey] = true
			}
		}

		if len(rejections) > 0 {
			for _, rej := range rejections {
				rej.RowIndex = i
				rej.SanctionSourceID = raw.SanctionSourceID
				rej.Priority = rej.Reason.Priority()
				result.Rejections = append(result.Rejections, rej)
			}
			result.Totals.RawRowsRejected++
			continue
		}

		result.ApplyRows = append(result.ApplyRows, deriveApplyRows(raw)...)
		result.Totals.RawRowsAccepted++
	}

	sortRejections(result.Rejections)
	result.Totals.ApplyRowsTotal = len(result.ApplyRows)
	result.Totals.RejectionsTotal = len(result.Rejections)
	result.Checks["all_raw_rows_accepted"] = result.Totals.RawRowsRejected == 0

	if result.Totals.RawRowsRejected > 0 {
		result.Status = model.HealthDegraded
	} else {
		result.Status = model.HealthOK
	}
	return result
}

// checkRawRow accumulates every rejection reason that applies to one raw row.
func checkRawRow(raw model.RawCaptureRow, cfg config.ReconcileConfig) []model.Rejection {
	var out []model.Rejection

	var missing []string
	for _, f := range rawRequiredFields {
		if strings.TrimSpace(f.get(raw)) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		out = append(out, model.Rejection{
			Reason: model.ReasonMissingRequiredField,
			Detail: "blank: " + strings.Join(missing, ", "),
		})
	}

	if raw.EvidenceDate != "" {
		if _, err := time.Parse("2006-01-02", raw.EvidenceDate); err != nil {
			out = append(out, model.Rejection{
				Reason: model.ReasonInvalidEvidenceDate,
				Detail: fmt.Sprintf("evidence_date %q is not YYYY-MM-DD", raw.EvidenceDate),
			})
		}
	}
	if raw.EvidenceQuote != "" && len([]rune(raw.EvidenceQuote)) < cfg.MinEvidenceQuoteLen {
		out = append(out, model.Rejection{
			Reason: model.ReasonShortEvidenceQuote,
			Detail: fmt.Sprintf("evidence quote shorter than %d characters", cfg.MinEvidenceQuoteLen),
		})
	}

	presentado, okP := parseCount(raw.RecursoPresentado)
	estimado, okE := parseCount(raw.RecursoEstimado)
	anulaciones, okA := parseCount(raw.AnulacionesFormales)
	p90, okD := parseCount(raw.ResolutionDelayP90)

	var invalid []string
	for _, c := range []struct {
		name  string
		raw   string
		ok    bool
		value float64
	}{
		{"recurso_presentado_count", raw.RecursoPresentado, okP, presentado},
		{"recurso_estimado_count", raw.RecursoEstimado, okE, estimado},
		{"anulaciones_formales_count", raw.AnulacionesFormales, okA, anulaciones},
		{"resolution_delay_p90_days", raw.ResolutionDelayP90, okD, p90},
	} {
		if c.raw == "" {
			continue // already reported as missing
		}
		if !c.ok || c.value < 0 {
			invalid = append(invalid, c.name)
		}
	}
	if len(invalid) > 0 {
		out = append(out, model.Rejection{
			Reason: model.ReasonInvalidNumericValue,
			Detail: "not a non-negative number: " + strings.Join(invalid, ", "),
		})
	}

	if okP && presentado <= 0 {
		out = append(out, model.Rejection{
			Reason: model.ReasonZeroDenominator,
			Detail: "recurso_presentado_count must be strictly positive",
		})
	}
	if okP && presentado > 0 {
		if okE && (estimado/presentado < 0 || estimado/presentado > 1) {
			out = append(out, model.Rejection{
				Reason: model.ReasonRateValueOutOfRange,
				Detail: "recurso_estimation_rate outside [0, 1]",
			})
		}
		if okA && (anulaciones/presentado < 0 || anulaciones/presentado > 1) {
			out = append(out, model.Rejection{
				Reason: model.ReasonRateValueOutOfRange,
				Detail: "formal_annulment_rate outside [0, 1]",
			})
		}
	}
	if okD && raw.ResolutionDelayP90 != "" && p90 <= 0 {
		out = append(out, model.Rejection{
			Reason: model.ReasonNonPositiveP90Days,
			Detail: "resolution_delay_p90_days must be strictly positive",
		})
	}

	return out
}

// deriveApplyRows emits the three KPI rows for an accepted raw row.
func deriveApplyRows(raw model.RawCaptureRow) []model.ApplyRow {
	presentado, _ := parseCount(raw.RecursoPresentado)
	estimado, _ := parseCount(raw.RecursoEstimado)
	anulaciones, _ := parseCount(raw.AnulacionesFormales)
	p90, _ := parseCount(raw.ResolutionDelayP90)

	base := model.ApplyRow{
		SanctionSourceID:  raw.SanctionSourceID,
		PeriodDate:        raw.PeriodDate,
		PeriodGranularity: raw.PeriodGranularity,
		SourceURL:         raw.SourceURL,
		EvidenceDate:      raw.EvidenceDate,
		EvidenceQuote:     raw.EvidenceQuote,
		SourceID:          raw.SourceID,
		SourceRecordID:    raw.SourceRecordID,
	}

	estimation := base
	estimation.KPIID = model.KPIRecursoEstimationRate
	estimation.Value = formatFloat(estimado / presentado)
	estimation.Numerator = formatFloat(estimado)
	estimation.Denominator = formatFloat(presentado)

	annulment := base
	annulment.KPIID = model.KPIFormalAnnulmentRate
	annulment.Value = formatFloat(anulaciones / presentado)
	annulment.Numerator = formatFloat(anulaciones)
	annulment.Denominator = formatFloat(presentado)

	delay := base
	delay.KPIID = model.KPIResolutionDelayP90Days
	delay.Value = formatFloat(p90)

	rows := []model.ApplyRow{estimation, annulment, delay}
	for i := range rows {
		rows[i].MetricKey = rows[i].EffectiveMetricKey()
	}
	return rows
}

// pairBatchKey is the in-batch duplicate key for a raw row; all three
// derived metric keys share it.
func pairBatchKey(raw model.RawCaptureRow) string {
	return raw.SanctionSourceID + "|" + raw.PeriodDate + "|" + raw.PeriodGranularity
}

func parseCount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// sortRejections orders the rejection queue by descending reason priority,
// then input order, then reason for determinism.
func sortRejections(rejections []model.Rejection) {
	sort.SliceStable(rejections, func(i, j int) bool {
		a, b := rejections[i], rejections[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.RowIndex != b.RowIndex {
			return a.RowIndex < b.RowIndex
		}
		return a.Reason < b.Reason
	})
}
