package model

// Reason is a row-level rejection code. Reasons are accumulated as values,
// never raised as errors; one bad row never aborts a batch.
type Reason string

const (
	ReasonMissingRequiredField    Reason = "missing_required_field"
	ReasonInvalidNumericValue     Reason = "invalid_numeric_value"
	ReasonInvalidSanctionSourceID Reason = "invalid_sanction_source_id"
	ReasonInvalidKPIID            Reason = "invalid_kpi_id"
	ReasonInvalidSourceID         Reason = "invalid_source_id"
	ReasonInvalidSourceURL        Reason = "invalid_source_url"
	ReasonInvalidEvidenceDate     Reason = "invalid_evidence_date"
	ReasonShortEvidenceQuote      Reason = "short_evidence_quote"
	ReasonDuplicateMetricKey      Reason = "duplicate_metric_key"
	ReasonMissingRatioComponents  Reason = "missing_ratio_components"
	ReasonZeroDenominator         Reason = "zero_denominator"
	ReasonRateValueOutOfRange     Reason = "rate_value_out_of_range"
	ReasonFormulaMismatch         Reason = "formula_mismatch"
	ReasonNonPositiveP90Days      Reason = "non_positive_p90_days"
)

// reasonPriority orders the rejection queue. Higher sorts first; structural
// problems outrank value-consistency problems.
var reasonPriority = map[Reason]int{
	ReasonMissingRequiredField:    100,
	ReasonInvalidSanctionSourceID: 95,
	ReasonInvalidKPIID:            95,
	ReasonInvalidSourceID:         90,
	ReasonDuplicateMetricKey:      85,
	ReasonInvalidNumericValue:     80,
	ReasonInvalidEvidenceDate:     75,
	ReasonInvalidSourceURL:        70,
	ReasonShortEvidenceQuote:      65,
	ReasonMissingRatioComponents:  60,
	ReasonZeroDenominator:         55,
	ReasonRateValueOutOfRange:     50,
	ReasonFormulaMismatch:         45,
	ReasonNonPositiveP90Days:      40,
}

// Priority returns the fixed rejection-queue rank for the reason.
func (r Reason) Priority() int {
	return reasonPriority[r]
}

// Rejection is one entry in a rejection queue: a distinct reason attached to
// one input row. A row failing several checks yields several entries.
type Rejection struct {
	RowIndex         int    `json:"row_index"`
	MetricKey        string `json:"metric_key,omitempty"`
	SanctionSourceID string `json:"sanction_source_id,omitempty"`
	KPIID            string `json:"kpi_id,omitempty"`
	Reason           Reason `json:"reason"`
	Priority         int    `json:"priority"`
	Detail           string `json:"detail,omitempty"`
}
