package sheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengov-es/revisor/internal/model"
)

func TestApplyRows_RoundTrip(t *testing.T) {
	in := []model.ApplyRow{
		{
			SanctionSourceID:  "teac",
			KPIID:             "recurso_estimation_rate",
			PeriodDate:        "2024-12-31",
			PeriodGranularity: "year",
			Value:             "0.2",
			Numerator:         "20",
			Denominator:       "100",
			SourceURL:         "https://example.org/teac",
			EvidenceDate:      "2025-01-15",
			EvidenceQuote:     "Memoria anual, tabla 3: resoluciones del ejercicio",
			MetricKey:         "recurso_estimation_rate|teac|2024-12-31|year",
		},
		{
			SanctionSourceID:  "cnmc",
			KPIID:             "resolution_delay_p90_days",
			PeriodDate:        "2024-12-31",
			PeriodGranularity: "year",
			Value:             "120",
			SourceURL:         "https://example.org/cnmc",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteApplyRows(&buf, in))

	out, err := ReadApplyRows(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWriteApplyRows_EmptySliceEmitsHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteApplyRows(&buf, nil))

	header := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(header, "sanction_source_id,kpi_id,period_date"), header)
}

func TestReadApplyRows_MissingColumnIsRunLevelFailure(t *testing.T) {
	csvData := "sanction_source_id,kpi_id\nteac,recurso_estimation_rate\n"
	_, err := ReadApplyRows(strings.NewReader(csvData))
	require.Error(t, err)
}

func TestRawCaptureRows_MetadataClearedOnInput(t *testing.T) {
	in := []model.RawCaptureRow{{
		SanctionSourceID:    "teac",
		PeriodDate:          "2024-12-31",
		PeriodGranularity:   "year",
		SourceURL:           "https://example.org/teac",
		EvidenceDate:        "2025-01-15",
		EvidenceQuote:       "Memoria anual, tabla 3: resoluciones del ejercicio",
		RecursoPresentado:   "100",
		RecursoEstimado:     "20",
		AnulacionesFormales: "5",
		ResolutionDelayP90:  "120",
		SourceLabel:         "TEAC",
		Organismo:           "Hacienda",
		ExpectedMetrics:     "recurso_estimation_rate",
		KPIsExpected:        "3",
		KPIsCoveredTotal:    "1",
		MetricRowsTotal:     "1",
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteRawCaptureRows(&buf, in))
	assert.Contains(t, buf.String(), "TEAC", "metadata columns are written")

	out, err := ReadRawCaptureRows(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, out, 1)

	// Fill-in columns survive; read-only metadata does not.
	assert.Equal(t, "100", out[0].RecursoPresentado)
	assert.Equal(t, "120", out[0].ResolutionDelayP90)
	assert.Empty(t, out[0].SourceLabel)
	assert.Empty(t, out[0].Organismo)
	assert.Empty(t, out[0].KPIsExpected)
}

func TestReadRawCaptureRows_ToleratesMissingMetadataColumns(t *testing.T) {
	// A hand-trimmed sheet without the metadata columns still decodes.
	csvData := strings.Join([]string{
		"sanction_source_id,period_date,period_granularity,source_url,evidence_date,evidence_quote,recurso_presentado_count,recurso_estimado_count,anulaciones_formales_count,resolution_delay_p90_days",
		"teac,2024-12-31,year,https://example.org/teac,2025-01-15,Memoria anual tabla 3 del ejercicio,100,20,5,120",
	}, "\n")

	out, err := ReadRawCaptureRows(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "teac", out[0].SanctionSourceID)
	assert.Equal(t, "5", out[0].AnulacionesFormales)
}

func TestWriteQueueRows_Header(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteQueueRows(&buf, []model.QueueRow{{
		QueueKey:         "queue:recurso_estimation_rate|teac|2024-12-31|year",
		SanctionSourceID: "teac",
		KPIID:            "recurso_estimation_rate",
		Status:           model.StatusMissingMetric,
		Priority:         90,
		NextAction:       "capture_official_review_metric",
	}}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "queue_key,sanction_source_id,kpi_id"), lines[0])
	assert.Contains(t, lines[1], "capture_official_review_metric")
}
