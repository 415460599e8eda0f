package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengov-es/revisor/internal/model"
)

func testCatalog() *model.Catalog {
	return model.NewCatalog(testSources, testKPIs, []string{"boe_scrape"})
}

func TestValidate_EmptyBatchFails(t *testing.T) {
	report := Validate(nil, testCatalog(), testConfig())
	assert.Equal(t, model.HealthFailed, report.Status)
	assert.False(t, report.Checks["input_rows_present"])
	assert.False(t, report.Checks["all_rows_ready"])
}

func TestValidate_ReadyBatch(t *testing.T) {
	rows := []model.ApplyRow{
		readyRow(model.KPIRecursoEstimationRate, "teac"),
		readyRow(model.KPIResolutionDelayP90Days, "teac"),
	}
	report := Validate(rows, testCatalog(), testConfig())

	assert.Equal(t, model.HealthOK, report.Status)
	assert.True(t, report.Checks["all_rows_ready"])
	assert.Equal(t, 2, report.Totals.RowsReady)
	assert.Equal(t, 0, report.Totals.RowsBlocked)
	assert.Empty(t, report.Queue)
	assert.Len(t, report.ReadyRows(), 2)
}

func TestValidate_RowReasons(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.ApplyRow)
		reason model.Reason
	}{
		{
			"blank value",
			func(r *model.ApplyRow) { r.Value = "" },
			model.ReasonMissingRequiredField,
		},
		{
			"unregistered sanction source",
			func(r *model.ApplyRow) { r.SanctionSourceID = "aepd" },
			model.ReasonInvalidSanctionSourceID,
		},
		{
			"unregistered kpi",
			func(r *model.ApplyRow) { r.KPIID = "made_up_kpi" },
			model.ReasonInvalidKPIID,
		},
		{
			"unregistered generic source",
			func(r *model.ApplyRow) { r.SourceID = "manual_entry" },
			model.ReasonInvalidSourceID,
		},
		{
			"source url without scheme",
			func(r *model.ApplyRow) { r.SourceURL = "example.org/teac" },
			model.ReasonInvalidSourceURL,
		},
		{
			"malformed evidence date",
			func(r *model.ApplyRow) { r.EvidenceDate = "enero 2025" },
			model.ReasonInvalidEvidenceDate,
		},
		{
			"short evidence quote",
			func(r *model.ApplyRow) { r.EvidenceQuote = "tabla 3" },
			model.ReasonShortEvidenceQuote,
		},
		{
			"non-numeric value",
			func(r *model.ApplyRow) { r.Value = "n/a" },
			model.ReasonInvalidNumericValue,
		},
		{
			"rate without components",
			func(r *model.ApplyRow) { r.Numerator = ""; r.Denominator = "" },
			model.ReasonMissingRatioComponents,
		},
		{
			"zero denominator",
			func(r *model.ApplyRow) { r.Denominator = "0" },
			model.ReasonZeroDenominator,
		},
		{
			"rate above one",
			func(r *model.ApplyRow) { r.Value = "1.5"; r.Numerator = "150" },
			model.ReasonRateValueOutOfRange,
		},
		{
			"formula mismatch",
			func(r *model.ApplyRow) { r.Value = "0.75" },
			model.ReasonFormulaMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := readyRow(model.KPIRecursoEstimationRate, "teac")
			tt.mutate(&row)

			report := Validate([]model.ApplyRow{row}, testCatalog(), testConfig())

			assert.Equal(t, model.HealthDegraded, report.Status)
			require.Len(t, report.Rows, 1)
			assert.False(t, report.Rows[0].Ready)
			assert.Contains(t, report.Rows[0].Reasons, tt.reason)
			assert.Equal(t, 1, report.Totals.ReasonCounts[string(tt.reason)])
			assert.Empty(t, report.ReadyRows())
		})
	}
}

func TestValidate_NonPositiveDelay(t *testing.T) {
	row := readyRow(model.KPIResolutionDelayP90Days, "teac")
	row.Value = "0"

	report := Validate([]model.ApplyRow{row}, testCatalog(), testConfig())

	require.Len(t, report.Rows, 1)
	assert.Contains(t, report.Rows[0].Reasons, model.ReasonNonPositiveP90Days)
}

func TestValidate_DuplicateMetricKeyFirstWins(t *testing.T) {
	rows := []model.ApplyRow{
		readyRow(model.KPIRecursoEstimationRate, "teac"),
		readyRow(model.KPIRecursoEstimationRate, "teac"),
	}
	report := Validate(rows, testCatalog(), testConfig())

	assert.Equal(t, model.HealthDegraded, report.Status)
	require.Len(t, report.Rows, 2)
	assert.True(t, report.Rows[0].Ready, "first occurrence keeps the key")
	assert.False(t, report.Rows[1].Ready)
	assert.Contains(t, report.Rows[1].Reasons, model.ReasonDuplicateMetricKey)

	ready := report.ReadyRows()
	assert.Len(t, ready, 1)
}

func TestValidate_BlankKeyFieldsNeverClaimDuplicateSlot(t *testing.T) {
	blank := readyRow(model.KPIRecursoEstimationRate, "teac")
	blank.PeriodDate = ""
	good := readyRow(model.KPIRecursoEstimationRate, "teac")
	good.PeriodDate = ""

	report := Validate([]model.ApplyRow{blank, good}, testCatalog(), testConfig())

	for _, res := range report.Rows {
		assert.NotContains(t, res.Reasons, model.ReasonDuplicateMetricKey,
			"rows blocked on blank key fields must not shadow each other")
	}
}

func TestValidate_RatioToleranceBoundary(t *testing.T) {
	// 0.75 and 25/100 are exact in binary, so the diff is exactly 0.5.
	row := readyRow(model.KPIRecursoEstimationRate, "teac")
	row.Value = "0.75"

	t.Run("diff equal to tolerance passes", func(t *testing.T) {
		cfg := testConfig()
		cfg.RatioTolerance = 0.5
		report := Validate([]model.ApplyRow{row}, testCatalog(), cfg)
		assert.Equal(t, model.HealthOK, report.Status)
	})

	t.Run("diff above tolerance fails", func(t *testing.T) {
		cfg := testConfig()
		cfg.RatioTolerance = 0.25
		report := Validate([]model.ApplyRow{row}, testCatalog(), cfg)
		assert.Equal(t, model.HealthDegraded, report.Status)
		require.Len(t, report.Rows, 1)
		assert.Contains(t, report.Rows[0].Reasons, model.ReasonFormulaMismatch)
	})
}

func TestValidate_AccumulatesIndependentReasons(t *testing.T) {
	row := readyRow(model.KPIRecursoEstimationRate, "teac")
	row.SourceURL = "ftp://example.org"
	row.EvidenceQuote = "corto"

	report := Validate([]model.ApplyRow{row}, testCatalog(), testConfig())

	require.Len(t, report.Rows, 1)
	assert.Contains(t, report.Rows[0].Reasons, model.ReasonInvalidSourceURL)
	assert.Contains(t, report.Rows[0].Reasons, model.ReasonShortEvidenceQuote)
	assert.GreaterOrEqual(t, len(report.Queue), 2, "one queue entry per reason")
}

func TestValidate_GranularityDefaulted(t *testing.T) {
	row := readyRow(model.KPIRecursoEstimationRate, "teac")
	row.PeriodGranularity = ""

	report := Validate([]model.ApplyRow{row}, testCatalog(), testConfig())

	require.Len(t, report.Rows, 1)
	assert.True(t, report.Rows[0].Ready)
	assert.Equal(t, "recurso_estimation_rate|teac|2024-12-31|year", report.Rows[0].MetricKey)

	ready := report.ReadyRows()
	require.Len(t, ready, 1)
	assert.Equal(t, "year", ready[0].PeriodGranularity,
		"the default granularity reaches the upsert engine, not just the report")
}

func TestValidate_StaleMetricKeyRederived(t *testing.T) {
	// A generated sheet can carry a key minted before the period was filled
	// in; the natural-key columns win.
	row := readyRow(model.KPIRecursoEstimationRate, "teac")
	row.MetricKey = "recurso_estimation_rate|teac||year"

	report := Validate([]model.ApplyRow{row}, testCatalog(), testConfig())

	assert.Equal(t, model.HealthOK, report.Status)
	require.Len(t, report.Rows, 1)
	assert.True(t, report.Rows[0].Ready)
	assert.Equal(t, "recurso_estimation_rate|teac|2024-12-31|year", report.Rows[0].MetricKey)
	assert.Equal(t, 1, report.Totals.MetricKeysRederived)
	assert.False(t, report.Checks["metric_keys_consistent"])

	ready := report.ReadyRows()
	require.Len(t, ready, 1)
	assert.Equal(t, "recurso_estimation_rate|teac|2024-12-31|year", ready[0].MetricKey)
}

func TestValidate_ConsistentMetricKeyKeepsCheck(t *testing.T) {
	row := readyRow(model.KPIRecursoEstimationRate, "teac")
	row.MetricKey = "recurso_estimation_rate|teac|2024-12-31|year"

	report := Validate([]model.ApplyRow{row}, testCatalog(), testConfig())

	assert.True(t, report.Checks["metric_keys_consistent"])
	assert.Equal(t, 0, report.Totals.MetricKeysRederived)
}
