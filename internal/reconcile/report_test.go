package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengov-es/revisor/internal/model"
)

func TestCoverage_NoSourcesFails(t *testing.T) {
	ctx := context.Background()
	st := newUnseededStore(t)

	report, err := Coverage(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, model.HealthFailed, report.Status)
	assert.False(t, report.Checks["all_sources_fully_covered"])
}

func TestCoverage_EmptyStoreIsDegraded(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	report, err := Coverage(ctx, st)
	require.NoError(t, err)

	assert.Equal(t, model.HealthDegraded, report.Status)
	assert.Equal(t, 2, report.Totals.SourcesTotal)
	assert.Equal(t, 0, report.Totals.SourcesFullyCovered)
	require.Len(t, report.Rows, 2)
	for _, row := range report.Rows {
		assert.Equal(t, 3, row.KPIsExpected)
		assert.Equal(t, 0, row.KPIsCovered)
		assert.Equal(t, 0.0, row.CoveragePct)
	}
}

func TestCoverage_FullyCoveredSource(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	for _, kpi := range []string{
		model.KPIRecursoEstimationRate,
		model.KPIFormalAnnulmentRate,
		model.KPIResolutionDelayP90Days,
	} {
		insertMetric(t, st, fullMetric(kpi, "teac", "2024-12-31"))
	}

	report, err := Coverage(ctx, st)
	require.NoError(t, err)

	// teac is full; cnmc still has nothing.
	assert.Equal(t, model.HealthDegraded, report.Status)
	assert.Equal(t, 1, report.Totals.SourcesFullyCovered)
	assert.Equal(t, 3, report.Totals.MetricsTotal)

	byID := map[string]SourceCoverageRow{}
	for _, row := range report.Rows {
		byID[row.SanctionSourceID] = row
	}
	assert.Equal(t, 3, byID["teac"].KPIsCovered)
	assert.Equal(t, 3, byID["teac"].WithSourceRecord)
	assert.Equal(t, 3, byID["teac"].WithEvidence)
	assert.Equal(t, 100.0, byID["teac"].CoveragePct)
	assert.Equal(t, 0, byID["cnmc"].MetricsCaptured)
}

func TestCoverage_UntracedMetricBlocksFullCoverage(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	for _, kpi := range []string{
		model.KPIRecursoEstimationRate,
		model.KPIFormalAnnulmentRate,
	} {
		insertMetric(t, st, fullMetric(kpi, "teac", "2024-12-31"))
	}
	untraced := fullMetric(model.KPIResolutionDelayP90Days, "teac", "2024-12-31")
	untraced.SourceID = ""
	untraced.SourceRecordID = ""
	insertMetric(t, st, untraced)

	report, err := Coverage(ctx, st)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Totals.SourcesFullyCovered,
		"every captured metric must be traceable for full coverage")
	assert.False(t, report.Checks["all_sources_fully_covered"])
}
