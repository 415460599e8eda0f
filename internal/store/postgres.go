package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/opengov-es/revisor/internal/db"
	"github.com/opengov-es/revisor/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sanction_sources (
	id               TEXT PRIMARY KEY,
	label            TEXT NOT NULL,
	organismo        TEXT NOT NULL DEFAULT '',
	ambito           TEXT NOT NULL DEFAULT '',
	source_url       TEXT NOT NULL DEFAULT '',
	expected_metrics JSONB NOT NULL DEFAULT '[]',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS kpi_definitions (
	id              TEXT PRIMARY KEY,
	label           TEXT NOT NULL,
	formula         TEXT NOT NULL DEFAULT '',
	kind            TEXT NOT NULL DEFAULT 'rate',
	direction       TEXT NOT NULL DEFAULT '',
	required_fields JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS sources (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS source_records (
	source_id        TEXT NOT NULL,
	source_record_id TEXT NOT NULL,
	content_hash     TEXT NOT NULL,
	raw_payload      TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (source_id, source_record_id)
);

CREATE TABLE IF NOT EXISTS official_review_metrics (
	metric_key         TEXT PRIMARY KEY,
	kpi_id             TEXT NOT NULL,
	sanction_source_id TEXT NOT NULL,
	period_date        TEXT NOT NULL,
	period_granularity TEXT NOT NULL,
	value              DOUBLE PRECISION NOT NULL,
	numerator          DOUBLE PRECISION,
	denominator        DOUBLE PRECISION,
	source_url         TEXT NOT NULL DEFAULT '',
	source_id          TEXT NOT NULL DEFAULT '',
	source_record_id   TEXT NOT NULL DEFAULT '',
	evidence_date      TEXT NOT NULL DEFAULT '',
	evidence_quote     TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_metrics_natural_key
	ON official_review_metrics(kpi_id, sanction_source_id, period_date, period_granularity);
CREATE INDEX IF NOT EXISTS idx_metrics_source ON official_review_metrics(sanction_source_id);

CREATE TABLE IF NOT EXISTS cycle_runs (
	id                TEXT PRIMARY KEY,
	mode              TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'running',
	validation_status TEXT NOT NULL DEFAULT '',
	apply_status      TEXT NOT NULL DEFAULT '',
	rows_inserted     INTEGER NOT NULL DEFAULT 0,
	rows_updated      INTEGER NOT NULL DEFAULT 0,
	skip_reason       TEXT NOT NULL DEFAULT '',
	started_at        TIMESTAMPTZ NOT NULL,
	completed_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_cycle_runs_started ON cycle_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var (
	pgSourceUpsert = db.UpsertConfig{
		Table:        "sanction_sources",
		Columns:      []string{"id", "label", "organismo", "ambito", "source_url", "expected_metrics", "created_at", "updated_at"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"label", "organismo", "ambito", "source_url", "expected_metrics", "updated_at"},
	}.SQL()

	pgKPIUpsert = db.UpsertConfig{
		Table:        "kpi_definitions",
		Columns:      []string{"id", "label", "formula", "kind", "direction", "required_fields"},
		ConflictKeys: []string{"id"},
	}.SQL()

	pgGenericSourceUpsert = db.UpsertConfig{
		Table:        "sources",
		Columns:      []string{"id", "name", "url"},
		ConflictKeys: []string{"id"},
	}.SQL()
)

func (s *PostgresStore) SeedCatalog(ctx context.Context, sources []model.Source, kpis []model.KPIDefinition, generics []model.GenericSource) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: seed: begin tx")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	for _, src := range sources {
		if _, err := tx.Exec(ctx, pgSourceUpsert,
			src.ID, src.Label, src.Organismo, src.Ambito, src.URL, src.ExpectedMetrics, now, now,
		); err != nil {
			return eris.Wrapf(err, "postgres: seed: upsert source %s", src.ID)
		}
	}

	for _, kpi := range kpis {
		if _, err := tx.Exec(ctx, pgKPIUpsert,
			kpi.ID, kpi.Label, kpi.Formula, string(kpi.Kind), kpi.Direction, kpi.RequiredFields,
		); err != nil {
			return eris.Wrapf(err, "postgres: seed: upsert kpi %s", kpi.ID)
		}
	}

	for _, g := range generics {
		if _, err := tx.Exec(ctx, pgGenericSourceUpsert, g.ID, g.Name, g.URL); err != nil {
			return eris.Wrapf(err, "postgres: seed: upsert generic source %s", g.ID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: seed: commit")
}

func (s *PostgresStore) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, label, organismo, ambito, source_url, expected_metrics, created_at, updated_at
		 FROM sanction_sources ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sources")
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.ID, &src.Label, &src.Organismo, &src.Ambito, &src.URL, &src.ExpectedMetrics, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source")
		}
		out = append(out, src)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate sources")
}

func (s *PostgresStore) ListKPIDefinitions(ctx context.Context) ([]model.KPIDefinition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, label, formula, kind, direction, required_fields FROM kpi_definitions ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list kpi definitions")
	}
	defer rows.Close()

	var out []model.KPIDefinition
	for rows.Next() {
		var kpi model.KPIDefinition
		var kind string
		if err := rows.Scan(&kpi.ID, &kpi.Label, &kpi.Formula, &kind, &kpi.Direction, &kpi.RequiredFields); err != nil {
			return nil, eris.Wrap(err, "postgres: scan kpi definition")
		}
		kpi.Kind = model.KPIKind(kind)
		out = append(out, kpi)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate kpi definitions")
}

func (s *PostgresStore) ListGenericSourceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM sources ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list generic sources")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan generic source id")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate generic sources")
}

const pgMetricColumns = `metric_key, kpi_id, sanction_source_id, period_date, period_granularity,
	value, numerator, denominator, source_url, source_id, source_record_id,
	evidence_date, evidence_quote, created_at, updated_at`

func (s *PostgresStore) ListMetrics(ctx context.Context) ([]model.MetricRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgMetricColumns+` FROM official_review_metrics ORDER BY metric_key`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list metrics")
	}
	defer rows.Close()

	var out []model.MetricRecord
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan metric")
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate metrics")
}

func (s *PostgresStore) GetMetric(ctx context.Context, metricKey string) (*model.MetricRecord, error) {
	m, err := scanMetric(s.pool.QueryRow(ctx,
		`SELECT `+pgMetricColumns+` FROM official_review_metrics WHERE metric_key = $1`, metricKey))
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get metric %s", metricKey)
	}
	return m, nil
}

func (s *PostgresStore) GetSourceRecord(ctx context.Context, sourceID, sourceRecordID string) (*model.SourceRecord, error) {
	return pgGetSourceRecord(ctx, s.pool, sourceID, sourceRecordID)
}

// pgQuerier covers both db.Pool and pgx.Tx.
type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgGetSourceRecord(ctx context.Context, q pgQuerier, sourceID, sourceRecordID string) (*model.SourceRecord, error) {
	var rec model.SourceRecord
	err := q.QueryRow(ctx,
		`SELECT source_id, source_record_id, content_hash, raw_payload, created_at
		 FROM source_records WHERE source_id = $1 AND source_record_id = $2`,
		sourceID, sourceRecordID,
	).Scan(&rec.SourceID, &rec.SourceRecordID, &rec.ContentHash, &rec.RawPayload, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get source record %s/%s", sourceID, sourceRecordID)
	}
	return &rec, nil
}

// pgTx implements Tx over a live pgx.Tx.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetMetric(ctx context.Context, metricKey string) (*model.MetricRecord, error) {
	m, err := scanMetric(t.tx.QueryRow(ctx,
		`SELECT `+pgMetricColumns+` FROM official_review_metrics WHERE metric_key = $1`, metricKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: tx get metric %s", metricKey)
	}
	return m, nil
}

func (t *pgTx) InsertMetric(ctx context.Context, m model.MetricRecord) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO official_review_metrics (`+pgMetricColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		m.MetricKey, m.KPIID, m.SanctionSourceID, m.PeriodDate, m.PeriodGranularity,
		m.Value, m.Numerator, m.Denominator, m.SourceURL, m.SourceID, m.SourceRecordID,
		m.EvidenceDate, m.EvidenceQuote, m.CreatedAt, m.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert metric %s", m.MetricKey)
}

func (t *pgTx) UpdateMetric(ctx context.Context, m model.MetricRecord) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE official_review_metrics SET
			value = $1, numerator = $2, denominator = $3, source_url = $4,
			source_id = $5, source_record_id = $6, evidence_date = $7, evidence_quote = $8, updated_at = $9
		 WHERE metric_key = $10`,
		m.Value, m.Numerator, m.Denominator, m.SourceURL,
		m.SourceID, m.SourceRecordID, m.EvidenceDate, m.EvidenceQuote, m.UpdatedAt,
		m.MetricKey,
	)
	return eris.Wrapf(err, "postgres: update metric %s", m.MetricKey)
}

func (t *pgTx) GetSourceRecord(ctx context.Context, sourceID, sourceRecordID string) (*model.SourceRecord, error) {
	return pgGetSourceRecord(ctx, t.tx, sourceID, sourceRecordID)
}

func (t *pgTx) InsertSourceRecord(ctx context.Context, rec model.SourceRecord) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO source_records (source_id, source_record_id, content_hash, raw_payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.SourceID, rec.SourceRecordID, rec.ContentHash, rec.RawPayload, rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert source record %s/%s", rec.SourceID, rec.SourceRecordID)
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

func (s *PostgresStore) InsertCycleRun(ctx context.Context, run model.CycleRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cycle_runs (id, mode, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Mode, run.Status, run.StartedAt,
	)
	return eris.Wrapf(err, "postgres: insert cycle run %s", run.ID)
}

func (s *PostgresStore) CompleteCycleRun(ctx context.Context, run model.CycleRun) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cycle_runs SET
			status = $1, validation_status = $2, apply_status = $3,
			rows_inserted = $4, rows_updated = $5, skip_reason = $6, completed_at = $7
		 WHERE id = $8`,
		run.Status, string(run.ValidationStatus), string(run.ApplyStatus),
		run.RowsInserted, run.RowsUpdated, run.SkipReason, run.CompletedAt,
		run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete cycle run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: cycle run %s not found", run.ID)
	}
	return nil
}

func (s *PostgresStore) ListCycleRuns(ctx context.Context) ([]model.CycleRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, mode, status, validation_status, apply_status,
			rows_inserted, rows_updated, skip_reason, started_at, completed_at
		 FROM cycle_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cycle runs")
	}
	defer rows.Close()

	var out []model.CycleRun
	for rows.Next() {
		var run model.CycleRun
		var vStatus, aStatus string
		var completed *time.Time
		if err := rows.Scan(&run.ID, &run.Mode, &run.Status, &vStatus, &aStatus,
			&run.RowsInserted, &run.RowsUpdated, &run.SkipReason, &run.StartedAt, &completed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cycle run")
		}
		run.ValidationStatus = model.Health(vStatus)
		run.ApplyStatus = model.Health(aStatus)
		run.CompletedAt = completed
		out = append(out, run)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate cycle runs")
}
