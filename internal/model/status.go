package model

// Health is the overall outcome of a report or pipeline stage.
type Health string

const (
	HealthOK       Health = "ok"
	HealthDegraded Health = "degraded"
	HealthFailed   Health = "failed"
)

// CompletenessStatus classifies one (source, kpi, period) triple. It is
// derived at read time from the catalog and metric tables and never stored.
type CompletenessStatus string

const (
	StatusMissingSource       CompletenessStatus = "missing_source"
	StatusMissingMetric       CompletenessStatus = "missing_metric"
	StatusMissingSourceRecord CompletenessStatus = "missing_source_record"
	StatusMissingEvidence     CompletenessStatus = "missing_evidence"
	StatusReady               CompletenessStatus = "ready"
)

// statusPriority maps each status to its fixed remediation urgency.
// Higher is more urgent.
var statusPriority = map[CompletenessStatus]int{
	StatusMissingSource:       100,
	StatusMissingMetric:       90,
	StatusMissingSourceRecord: 70,
	StatusMissingEvidence:     60,
	StatusReady:               10,
}

// statusNextAction maps each status to its fixed remediation action label.
var statusNextAction = map[CompletenessStatus]string{
	StatusMissingSource:       "register_sanction_source_in_catalog",
	StatusMissingMetric:       "capture_official_review_metric",
	StatusMissingSourceRecord: "backfill_source_record_pk_for_official_review_metric",
	StatusMissingEvidence:     "attach_dated_evidence_quote",
	StatusReady:               "none",
}

// Priority returns the fixed remediation urgency for the status.
func (s CompletenessStatus) Priority() int {
	return statusPriority[s]
}

// NextAction returns the fixed remediation action label for the status.
func (s CompletenessStatus) NextAction() string {
	return statusNextAction[s]
}

// Valid reports whether s is one of the five completeness statuses.
func (s CompletenessStatus) Valid() bool {
	_, ok := statusPriority[s]
	return ok
}

// QueueRow is one derived gap-queue entry for a (source, kpi, period) triple.
// Field order mirrors the gap-queue CSV shape.
type QueueRow struct {
	QueueKey            string             `json:"queue_key" csv:"queue_key"`
	SanctionSourceID    string             `json:"sanction_source_id" csv:"sanction_source_id"`
	KPIID               string             `json:"kpi_id" csv:"kpi_id"`
	KPILabel            string             `json:"kpi_label" csv:"kpi_label"`
	PeriodDate          string             `json:"period_date" csv:"period_date"`
	PeriodGranularity   string             `json:"period_granularity" csv:"period_granularity"`
	Label               string             `json:"label" csv:"label"`
	Organismo           string             `json:"organismo" csv:"organismo"`
	SourceURL           string             `json:"source_url" csv:"source_url"`
	MetricExists        bool               `json:"metric_exists" csv:"metric_exists"`
	SourceRecordPresent bool               `json:"source_record_present" csv:"source_record_present"`
	EvidencePresent     bool               `json:"evidence_present" csv:"evidence_present"`
	MetricKey           string             `json:"metric_key" csv:"metric_key"`
	MetricKeyExpected   string             `json:"metric_key_expected" csv:"metric_key_expected"`
	Status              CompletenessStatus `json:"status" csv:"status"`
	Priority            int                `json:"priority" csv:"priority"`
	NextAction          string             `json:"next_action" csv:"next_action"`
}
