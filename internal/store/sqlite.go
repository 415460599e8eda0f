package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/opengov-es/revisor/internal/db"
	"github.com/opengov-es/revisor/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqldb.Exec(pragma); err != nil {
			sqldb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqldb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sanction_sources (
	id               TEXT PRIMARY KEY,
	label            TEXT NOT NULL,
	organismo        TEXT NOT NULL DEFAULT '',
	ambito           TEXT NOT NULL DEFAULT '',
	source_url       TEXT NOT NULL DEFAULT '',
	expected_metrics TEXT NOT NULL DEFAULT '[]',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS kpi_definitions (
	id              TEXT PRIMARY KEY,
	label           TEXT NOT NULL,
	formula         TEXT NOT NULL DEFAULT '',
	kind            TEXT NOT NULL DEFAULT 'rate',
	direction       TEXT NOT NULL DEFAULT '',
	required_fields TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS sources (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS source_records (
	source_id        TEXT NOT NULL,
	source_record_id TEXT NOT NULL,
	content_hash     TEXT NOT NULL,
	raw_payload      TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (source_id, source_record_id)
);

CREATE TABLE IF NOT EXISTS official_review_metrics (
	metric_key         TEXT PRIMARY KEY,
	kpi_id             TEXT NOT NULL,
	sanction_source_id TEXT NOT NULL,
	period_date        TEXT NOT NULL,
	period_granularity TEXT NOT NULL,
	value              REAL NOT NULL,
	numerator          REAL,
	denominator        REAL,
	source_url         TEXT NOT NULL DEFAULT '',
	source_id          TEXT NOT NULL DEFAULT '',
	source_record_id   TEXT NOT NULL DEFAULT '',
	evidence_date      TEXT NOT NULL DEFAULT '',
	evidence_quote     TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
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
	started_at        DATETIME NOT NULL,
	completed_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_cycle_runs_started ON cycle_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Per-entity upsert statements used by catalog seeding.
var (
	sqliteSourceUpsert = db.UpsertConfig{
		Table:        "sanction_sources",
		Columns:      []string{"id", "label", "organismo", "ambito", "source_url", "expected_metrics", "created_at", "updated_at"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"label", "organismo", "ambito", "source_url", "expected_metrics", "updated_at"},
		Placeholder:  db.Question,
	}.SQL()

	sqliteKPIUpsert = db.UpsertConfig{
		Table:        "kpi_definitions",
		Columns:      []string{"id", "label", "formula", "kind", "direction", "required_fields"},
		ConflictKeys: []string{"id"},
		Placeholder:  db.Question,
	}.SQL()

	sqliteGenericSourceUpsert = db.UpsertConfig{
		Table:        "sources",
		Columns:      []string{"id", "name", "url"},
		ConflictKeys: []string{"id"},
		Placeholder:  db.Question,
	}.SQL()
)

func (s *SQLiteStore) SeedCatalog(ctx context.Context, sources []model.Source, kpis []model.KPIDefinition, generics []model.GenericSource) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: seed: begin tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, src := range sources {
		expected, err := json.Marshal(src.ExpectedMetrics)
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed: marshal expected metrics for %s", src.ID)
		}
		if _, err := tx.ExecContext(ctx, sqliteSourceUpsert,
			src.ID, src.Label, src.Organismo, src.Ambito, src.URL, string(expected), now, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: seed: upsert source %s", src.ID)
		}
	}

	for _, kpi := range kpis {
		required, err := json.Marshal(kpi.RequiredFields)
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed: marshal required fields for %s", kpi.ID)
		}
		if _, err := tx.ExecContext(ctx, sqliteKPIUpsert,
			kpi.ID, kpi.Label, kpi.Formula, string(kpi.Kind), kpi.Direction, string(required),
		); err != nil {
			return eris.Wrapf(err, "sqlite: seed: upsert kpi %s", kpi.ID)
		}
	}

	for _, g := range generics {
		if _, err := tx.ExecContext(ctx, sqliteGenericSourceUpsert, g.ID, g.Name, g.URL); err != nil {
			return eris.Wrapf(err, "sqlite: seed: upsert generic source %s", g.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: seed: commit")
}

func (s *SQLiteStore) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, organismo, ambito, source_url, expected_metrics, created_at, updated_at
		 FROM sanction_sources ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sources")
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		var src model.Source
		var expected string
		if err := rows.Scan(&src.ID, &src.Label, &src.Organismo, &src.Ambito, &src.URL, &expected, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source")
		}
		if err := json.Unmarshal([]byte(expected), &src.ExpectedMetrics); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal expected metrics for %s", src.ID)
		}
		out = append(out, src)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate sources")
}

func (s *SQLiteStore) ListKPIDefinitions(ctx context.Context) ([]model.KPIDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, formula, kind, direction, required_fields FROM kpi_definitions ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list kpi definitions")
	}
	defer rows.Close()

	var out []model.KPIDefinition
	for rows.Next() {
		var kpi model.KPIDefinition
		var kind, required string
		if err := rows.Scan(&kpi.ID, &kpi.Label, &kpi.Formula, &kind, &kpi.Direction, &required); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan kpi definition")
		}
		kpi.Kind = model.KPIKind(kind)
		if err := json.Unmarshal([]byte(required), &kpi.RequiredFields); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal required fields for %s", kpi.ID)
		}
		out = append(out, kpi)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate kpi definitions")
}

func (s *SQLiteStore) ListGenericSourceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sources ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list generic sources")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan generic source id")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate generic sources")
}

const sqliteMetricColumns = `metric_key, kpi_id, sanction_source_id, period_date, period_granularity,
	value, numerator, denominator, source_url, source_id, source_record_id,
	evidence_date, evidence_quote, created_at, updated_at`

func scanMetric(row interface{ Scan(...any) error }) (*model.MetricRecord, error) {
	var m model.MetricRecord
	var num, den sql.NullFloat64
	err := row.Scan(
		&m.MetricKey, &m.KPIID, &m.SanctionSourceID, &m.PeriodDate, &m.PeriodGranularity,
		&m.Value, &num, &den, &m.SourceURL, &m.SourceID, &m.SourceRecordID,
		&m.EvidenceDate, &m.EvidenceQuote, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if num.Valid {
		m.Numerator = &num.Float64
	}
	if den.Valid {
		m.Denominator = &den.Float64
	}
	return &m, nil
}

func (s *SQLiteStore) ListMetrics(ctx context.Context) ([]model.MetricRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteMetricColumns+` FROM official_review_metrics ORDER BY metric_key`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list metrics")
	}
	defer rows.Close()

	var out []model.MetricRecord
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan metric")
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate metrics")
}

func (s *SQLiteStore) GetMetric(ctx context.Context, metricKey string) (*model.MetricRecord, error) {
	m, err := scanMetric(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteMetricColumns+` FROM official_review_metrics WHERE metric_key = ?`, metricKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get metric %s", metricKey)
	}
	return m, nil
}

func (s *SQLiteStore) GetSourceRecord(ctx context.Context, sourceID, sourceRecordID string) (*model.SourceRecord, error) {
	return sqliteGetSourceRecord(ctx, s.db, sourceID, sourceRecordID)
}

// querier covers both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func sqliteGetSourceRecord(ctx context.Context, q querier, sourceID, sourceRecordID string) (*model.SourceRecord, error) {
	var rec model.SourceRecord
	err := q.QueryRowContext(ctx,
		`SELECT source_id, source_record_id, content_hash, raw_payload, created_at
		 FROM source_records WHERE source_id = ? AND source_record_id = ?`,
		sourceID, sourceRecordID,
	).Scan(&rec.SourceID, &rec.SourceRecordID, &rec.ContentHash, &rec.RawPayload, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get source record %s/%s", sourceID, sourceRecordID)
	}
	return &rec, nil
}

// sqliteTx implements Tx over a live *sql.Tx.
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) GetMetric(ctx context.Context, metricKey string) (*model.MetricRecord, error) {
	m, err := scanMetric(t.tx.QueryRowContext(ctx,
		`SELECT `+sqliteMetricColumns+` FROM official_review_metrics WHERE metric_key = ?`, metricKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: tx get metric %s", metricKey)
	}
	return m, nil
}

func (t *sqliteTx) InsertMetric(ctx context.Context, m model.MetricRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO official_review_metrics (`+sqliteMetricColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MetricKey, m.KPIID, m.SanctionSourceID, m.PeriodDate, m.PeriodGranularity,
		m.Value, nullFloat(m.Numerator), nullFloat(m.Denominator), m.SourceURL, m.SourceID, m.SourceRecordID,
		m.EvidenceDate, m.EvidenceQuote, m.CreatedAt, m.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert metric %s", m.MetricKey)
}

func (t *sqliteTx) UpdateMetric(ctx context.Context, m model.MetricRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE official_review_metrics SET
			value = ?, numerator = ?, denominator = ?, source_url = ?,
			source_id = ?, source_record_id = ?, evidence_date = ?, evidence_quote = ?, updated_at = ?
		 WHERE metric_key = ?`,
		m.Value, nullFloat(m.Numerator), nullFloat(m.Denominator), m.SourceURL,
		m.SourceID, m.SourceRecordID, m.EvidenceDate, m.EvidenceQuote, m.UpdatedAt,
		m.MetricKey,
	)
	return eris.Wrapf(err, "sqlite: update metric %s", m.MetricKey)
}

func (t *sqliteTx) GetSourceRecord(ctx context.Context, sourceID, sourceRecordID string) (*model.SourceRecord, error) {
	return sqliteGetSourceRecord(ctx, t.tx, sourceID, sourceRecordID)
}

func (t *sqliteTx) InsertSourceRecord(ctx context.Context, rec model.SourceRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO source_records (source_id, source_record_id, content_hash, raw_payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.SourceID, rec.SourceRecordID, rec.ContentHash, rec.RawPayload, rec.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert source record %s/%s", rec.SourceID, rec.SourceRecordID)
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(&sqliteTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func (s *SQLiteStore) InsertCycleRun(ctx context.Context, run model.CycleRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycle_runs (id, mode, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Mode, run.Status, run.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: insert cycle run %s", run.ID)
}

func (s *SQLiteStore) CompleteCycleRun(ctx context.Context, run model.CycleRun) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cycle_runs SET
			status = ?, validation_status = ?, apply_status = ?,
			rows_inserted = ?, rows_updated = ?, skip_reason = ?, completed_at = ?
		 WHERE id = ?`,
		run.Status, string(run.ValidationStatus), string(run.ApplyStatus),
		run.RowsInserted, run.RowsUpdated, run.SkipReason, run.CompletedAt,
		run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete cycle run %s", run.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: complete cycle run rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: cycle run %s not found", run.ID)
	}
	return nil
}

func (s *SQLiteStore) ListCycleRuns(ctx context.Context) ([]model.CycleRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, status, validation_status, apply_status,
			rows_inserted, rows_updated, skip_reason, started_at, completed_at
		 FROM cycle_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cycle runs")
	}
	defer rows.Close()

	var out []model.CycleRun
	for rows.Next() {
		var run model.CycleRun
		var vStatus, aStatus string
		var completed sql.NullTime
		if err := rows.Scan(&run.ID, &run.Mode, &run.Status, &vStatus, &aStatus,
			&run.RowsInserted, &run.RowsUpdated, &run.SkipReason, &run.StartedAt, &completed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cycle run")
		}
		run.ValidationStatus = model.Health(vStatus)
		run.ApplyStatus = model.Health(aStatus)
		if completed.Valid {
			run.CompletedAt = &completed.Time
		}
		out = append(out, run)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate cycle runs")
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
