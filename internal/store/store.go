// Package store persists the reconciliation catalog, metric records, source
// records, and the cycle run log. Two drivers are provided: SQLite (default)
// and PostgreSQL.
package store

import (
	"context"

	"github.com/opengov-es/revisor/internal/model"
)

// Store is the persistence interface consumed by the reconciliation engine.
// Catalog tables are written only by seeding; metric and source records are
// written only through InTx by the upsert engine.
type Store interface {
	// Catalog
	ListSources(ctx context.Context) ([]model.Source, error)
	ListKPIDefinitions(ctx context.Context) ([]model.KPIDefinition, error)
	ListGenericSourceIDs(ctx context.Context) ([]string, error)
	SeedCatalog(ctx context.Context, sources []model.Source, kpis []model.KPIDefinition, generics []model.GenericSource) error

	// Metrics and provenance (reads)
	ListMetrics(ctx context.Context) ([]model.MetricRecord, error)
	GetMetric(ctx context.Context, metricKey string) (*model.MetricRecord, error)
	GetSourceRecord(ctx context.Context, sourceID, sourceRecordID string) (*model.SourceRecord, error)

	// InTx runs fn inside a single transaction. Any error returned by fn
	// rolls back every write made through the Tx.
	InTx(ctx context.Context, fn func(Tx) error) error

	// Cycle run log
	InsertCycleRun(ctx context.Context, run model.CycleRun) error
	CompleteCycleRun(ctx context.Context, run model.CycleRun) error
	ListCycleRuns(ctx context.Context) ([]model.CycleRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Tx is the transactional write surface used by the upsert engine.
type Tx interface {
	GetMetric(ctx context.Context, metricKey string) (*model.MetricRecord, error)
	InsertMetric(ctx context.Context, m model.MetricRecord) error
	UpdateMetric(ctx context.Context, m model.MetricRecord) error
	GetSourceRecord(ctx context.Context, sourceID, sourceRecordID string) (*model.SourceRecord, error)
	InsertSourceRecord(ctx context.Context, rec model.SourceRecord) error
}

// LoadCatalog reads the three catalog tables into an indexed lookup.
func LoadCatalog(ctx context.Context, st Store) (*model.Catalog, error) {
	sources, err := st.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	kpis, err := st.ListKPIDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	generics, err := st.ListGenericSourceIDs(ctx)
	if err != nil {
		return nil, err
	}
	return model.NewCatalog(sources, kpis, generics), nil
}
