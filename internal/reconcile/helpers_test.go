package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opengov-es/revisor/internal/config"
	"github.com/opengov-es/revisor/internal/model"
	"github.com/opengov-es/revisor/internal/store"
)

func testConfig() config.ReconcileConfig {
	return config.ReconcileConfig{
		RatioTolerance:      0.01,
		MinEvidenceQuoteLen: 20,
		DefaultGranularity:  "year",
	}
}

var testKPIs = []model.KPIDefinition{
	{ID: model.KPIRecursoEstimationRate, Label: "Tasa de estimación de recursos", Kind: model.KPIKindRate},
	{ID: model.KPIFormalAnnulmentRate, Label: "Tasa de anulaciones formales", Kind: model.KPIKindRate},
	{ID: model.KPIResolutionDelayP90Days, Label: "Demora de resolución p90", Kind: model.KPIKindDays},
}

var testSources = []model.Source{
	{
		ID:              "teac",
		Label:           "Tribunal Económico-Administrativo Central",
		Organismo:       "Ministerio de Hacienda",
		Ambito:          "estatal",
		URL:             "https://example.org/teac",
		ExpectedMetrics: []string{model.KPIRecursoEstimationRate, model.KPIFormalAnnulmentRate, model.KPIResolutionDelayP90Days},
	},
	{
		ID:              "cnmc",
		Label:           "Comisión Nacional de los Mercados y la Competencia",
		Organismo:       "CNMC",
		Ambito:          "estatal",
		URL:             "https://example.org/cnmc",
		ExpectedMetrics: []string{model.KPIRecursoEstimationRate},
	},
}

// newTestStore opens an in-memory store with the fixture catalog seeded.
func newTestStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.SeedCatalog(ctx, testSources, testKPIs, []model.GenericSource{
		{ID: "boe_scrape", Name: "BOE scraper"},
	}))
	return st
}

// newUnseededStore opens an in-memory store with the schema but no catalog.
func newUnseededStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// insertMetric writes a metric row directly, bypassing the upsert engine.
func insertMetric(t *testing.T, st store.Store, m model.MetricRecord) {
	t.Helper()
	if m.MetricKey == "" {
		m.MetricKey = model.BuildMetricKey(m.KPIID, m.SanctionSourceID, m.PeriodDate, m.PeriodGranularity)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	require.NoError(t, st.InTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertMetric(context.Background(), m)
	}))
}

// fullMetric builds a ready metric: captured, traceable, and evidenced.
func fullMetric(kpiID, sourceID, periodDate string) model.MetricRecord {
	return model.MetricRecord{
		KPIID:             kpiID,
		SanctionSourceID:  sourceID,
		PeriodDate:        periodDate,
		PeriodGranularity: "year",
		Value:             0.25,
		SourceURL:         "https://example.org/" + sourceID,
		SourceID:          sourceID,
		SourceRecordID:    model.DeriveSourceRecordID(kpiID, sourceID, periodDate, "year"),
		EvidenceDate:      "2025-01-15",
		EvidenceQuote:     "Memoria anual, tabla 3: resoluciones y recursos del ejercicio",
	}
}

// readyRow builds an apply row that passes every validator check.
func readyRow(kpiID, sourceID string) model.ApplyRow {
	row := model.ApplyRow{
		SanctionSourceID:  sourceID,
		KPIID:             kpiID,
		PeriodDate:        "2024-12-31",
		PeriodGranularity: "year",
		SourceURL:         "https://example.org/" + sourceID,
		EvidenceDate:      "2025-01-15",
		EvidenceQuote:     "Memoria anual, tabla 3: resoluciones y recursos del ejercicio",
	}
	switch kpiID {
	case model.KPIResolutionDelayP90Days:
		row.Value = "120"
	default:
		row.Value = "0.25"
		row.Numerator = "25"
		row.Denominator = "100"
	}
	return row
}
