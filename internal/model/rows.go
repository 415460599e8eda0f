package model

// ApplyRow is the unified fill-in row shape consumed by the apply-readiness
// validator and the upsert engine. All fields are strings so blank cells
// survive the CSV round trip; numeric parsing happens during validation.
type ApplyRow struct {
	SanctionSourceID  string `json:"sanction_source_id" csv:"sanction_source_id"`
	KPIID             string `json:"kpi_id" csv:"kpi_id"`
	PeriodDate        string `json:"period_date" csv:"period_date"`
	PeriodGranularity string `json:"period_granularity" csv:"period_granularity"`
	Value             string `json:"value" csv:"value"`
	Numerator         string `json:"numerator" csv:"numerator"`
	Denominator       string `json:"denominator" csv:"denominator"`
	SourceURL         string `json:"source_url" csv:"source_url"`
	EvidenceDate      string `json:"evidence_date" csv:"evidence_date"`
	EvidenceQuote     string `json:"evidence_quote" csv:"evidence_quote"`
	SourceID          string `json:"source_id" csv:"source_id"`
	SourceRecordID    string `json:"source_record_id" csv:"source_record_id"`
	MetricKey         string `json:"metric_key" csv:"metric_key"`
}

// EffectiveMetricKey returns the explicit metric key, or the one derived from
// the natural key fields when the column is blank.
func (r ApplyRow) EffectiveMetricKey() string {
	if r.MetricKey != "" {
		return r.MetricKey
	}
	return BuildMetricKey(r.KPIID, r.SanctionSourceID, r.PeriodDate, r.PeriodGranularity)
}

// RawCaptureRow is the per-source raw-count capture shape from which the
// three procedural KPIs are derived. The trailing metadata columns are
// regenerated on output and ignored on input.
type RawCaptureRow struct {
	SanctionSourceID      string `json:"sanction_source_id" csv:"sanction_source_id"`
	PeriodDate            string `json:"period_date" csv:"period_date"`
	PeriodGranularity     string `json:"period_granularity" csv:"period_granularity"`
	SourceURL             string `json:"source_url" csv:"source_url"`
	EvidenceDate          string `json:"evidence_date" csv:"evidence_date"`
	EvidenceQuote         string `json:"evidence_quote" csv:"evidence_quote"`
	RecursoPresentado     string `json:"recurso_presentado_count" csv:"recurso_presentado_count"`
	RecursoEstimado       string `json:"recurso_estimado_count" csv:"recurso_estimado_count"`
	AnulacionesFormales   string `json:"anulaciones_formales_count" csv:"anulaciones_formales_count"`
	ResolutionDelayP90    string `json:"resolution_delay_p90_days" csv:"resolution_delay_p90_days"`
	SourceID              string `json:"source_id" csv:"source_id"`
	SourceRecordID        string `json:"source_record_id" csv:"source_record_id"`
	SourceLabel           string `json:"source_label" csv:"source_label"`
	Organismo             string `json:"organismo" csv:"organismo"`
	ExpectedMetrics       string `json:"expected_metrics" csv:"expected_metrics"`
	KPIsExpected          string `json:"procedural_kpis_expected" csv:"procedural_kpis_expected"`
	KPIsCoveredTotal      string `json:"procedural_kpis_covered_total" csv:"procedural_kpis_covered_total"`
	MetricRowsTotal       string `json:"procedural_metric_rows_total" csv:"procedural_metric_rows_total"`
}

// Derived KPI identifiers produced from a raw capture row.
const (
	KPIRecursoEstimationRate  = "recurso_estimation_rate"
	KPIFormalAnnulmentRate    = "formal_annulment_rate"
	KPIResolutionDelayP90Days = "resolution_delay_p90_days"
)
