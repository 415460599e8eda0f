package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMetricKey(t *testing.T) {
	key := BuildMetricKey("recurso_estimation_rate", "teac", "2024-12-31", "year")
	assert.Equal(t, "recurso_estimation_rate|teac|2024-12-31|year", key)
}

func TestDeriveSourceRecordID(t *testing.T) {
	id := DeriveSourceRecordID("formal_annulment_rate", "cnmc", "2024-12-31", "year")
	assert.Equal(t, "official_review_metric:formal_annulment_rate|cnmc|2024-12-31|year", id)
}

func TestApplyRow_EffectiveMetricKey(t *testing.T) {
	row := ApplyRow{
		SanctionSourceID:  "teac",
		KPIID:             "resolution_delay_p90_days",
		PeriodDate:        "2024-12-31",
		PeriodGranularity: "year",
	}
	assert.Equal(t, "resolution_delay_p90_days|teac|2024-12-31|year", row.EffectiveMetricKey())

	row.MetricKey = "explicit-key"
	assert.Equal(t, "explicit-key", row.EffectiveMetricKey())
}

func TestMetricRecord_HasProvenance(t *testing.T) {
	m := MetricRecord{}
	assert.False(t, m.HasProvenance())

	m.SourceRecordID = "official_review_metric:x"
	assert.True(t, m.HasProvenance())
}

func TestMetricRecord_HasEvidence(t *testing.T) {
	m := MetricRecord{EvidenceDate: "2025-01-15"}
	assert.False(t, m.HasEvidence(), "date without quote is not evidence")

	m.EvidenceQuote = "Memoria anual 2024, tabla 3: resoluciones estimadas"
	assert.True(t, m.HasEvidence())

	m.EvidenceDate = ""
	assert.False(t, m.HasEvidence(), "quote without date is not evidence")
}

func TestContentHash(t *testing.T) {
	h := ContentHash("payload")
	assert.Len(t, h, 64)
	assert.Equal(t, h, ContentHash("payload"))
	assert.NotEqual(t, h, ContentHash("payload2"))
}

func TestCatalog_Lookup(t *testing.T) {
	c := NewCatalog(
		[]Source{
			{ID: "teac", Label: "TEAC", ExpectedMetrics: []string{"recurso_estimation_rate"}},
			{ID: "cnmc", Label: "CNMC"},
		},
		[]KPIDefinition{{ID: "recurso_estimation_rate", Kind: KPIKindRate}},
		[]string{"boe_scrape"},
	)

	assert.NotNil(t, c.Source("teac"))
	assert.Nil(t, c.Source("aepd"))
	assert.NotNil(t, c.KPI("recurso_estimation_rate"))
	assert.Nil(t, c.KPI("unknown"))
	assert.True(t, c.HasGenericSource("boe_scrape"))
	assert.False(t, c.HasGenericSource("manual"))
	assert.Equal(t, []string{"cnmc", "teac"}, c.SortedSourceIDs())
}

func TestSource_ExpectedMetricsJoined(t *testing.T) {
	src := Source{ExpectedMetrics: []string{"a", "b", "c"}}
	assert.Equal(t, "a;b;c", src.ExpectedMetricsJoined())
	assert.Empty(t, Source{}.ExpectedMetricsJoined())
}

func TestValidGranularity(t *testing.T) {
	for _, g := range []string{"year", "quarter", "month", "day"} {
		assert.True(t, ValidGranularity(g), g)
	}
	assert.False(t, ValidGranularity("week"))
	assert.False(t, ValidGranularity(""))
}
