package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// MetricRecord is a persisted official-review metric keyed by its natural key
// (kpi, sanction source, period date, period granularity). Records are only
// written through the upsert engine; corrections are new upserts, never
// deletes.
type MetricRecord struct {
	MetricKey         string   `json:"metric_key"`
	KPIID             string   `json:"kpi_id"`
	SanctionSourceID  string   `json:"sanction_source_id"`
	PeriodDate        string   `json:"period_date"`
	PeriodGranularity string   `json:"period_granularity"`
	Value             float64  `json:"value"`
	Numerator         *float64 `json:"numerator,omitempty"`
	Denominator       *float64 `json:"denominator,omitempty"`
	SourceURL         string   `json:"source_url"`

	// Provenance link: both blank means the record is not yet traceable.
	SourceID       string `json:"source_id,omitempty"`
	SourceRecordID string `json:"source_record_id,omitempty"`

	EvidenceDate  string `json:"evidence_date,omitempty"`
	EvidenceQuote string `json:"evidence_quote,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasProvenance reports whether the record carries a provenance link.
func (m MetricRecord) HasProvenance() bool {
	return m.SourceRecordID != ""
}

// HasEvidence reports whether the record carries dated textual evidence.
func (m MetricRecord) HasEvidence() bool {
	return m.EvidenceDate != "" && m.EvidenceQuote != ""
}

// BuildMetricKey joins the natural key fields into the canonical single-string
// key: kpi_id|sanction_source_id|period_date|period_granularity.
func BuildMetricKey(kpiID, sanctionSourceID, periodDate, periodGranularity string) string {
	return fmt.Sprintf("%s|%s|%s|%s", kpiID, sanctionSourceID, periodDate, periodGranularity)
}

// SourceRecord is the raw-ingestion audit row a metric links to for
// traceability. Natural key is (source_id, source_record_id).
type SourceRecord struct {
	SourceID       string    `json:"source_id"`
	SourceRecordID string    `json:"source_record_id"`
	ContentHash    string    `json:"content_hash"`
	RawPayload     string    `json:"raw_payload"`
	CreatedAt      time.Time `json:"created_at"`
}

// DeriveSourceRecordID computes the deterministic provenance id used when an
// apply row does not supply an explicit one.
func DeriveSourceRecordID(kpiID, sanctionSourceID, periodDate, periodGranularity string) string {
	return fmt.Sprintf("official_review_metric:%s", BuildMetricKey(kpiID, sanctionSourceID, periodDate, periodGranularity))
}

// ContentHash returns the hex sha256 of the given raw payload.
func ContentHash(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
