package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/opengov-es/revisor/internal/model"
	"github.com/opengov-es/revisor/internal/store"
)

// ApplyTotals counts what one upsert batch did to the store.
type ApplyTotals struct {
	RowsTotal            int `json:"rows_total"`
	RowsInserted         int `json:"rows_inserted"`
	RowsUpdated          int `json:"rows_updated"`
	SourceRecordsCreated int `json:"source_records_created"`
	SourceRecordsReused  int `json:"source_records_reused"`
	ProvenanceDivergent  int `json:"provenance_divergent_total"`
}

// ApplyReport documents one upsert engine run. On failure no partial writes
// are observable: the whole batch rolled back.
type ApplyReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Status      model.Health    `json:"status"`
	Totals      ApplyTotals     `json:"totals"`
	Checks      map[string]bool `json:"checks"`
	Error       string          `json:"error,omitempty"`
}

// Apply writes a validated batch into the metric store inside a single
// transaction. Applying the same batch twice is a no-op on the second run:
// every row reports updated instead of inserted and stored values are
// unchanged.
func Apply(ctx context.Context, st store.Store, rows []model.ApplyRow, now time.Time) (*ApplyReport, error) {
	log := zap.L().With(zap.String("component", "reconcile.upsert"))

	report := &ApplyReport{
		GeneratedAt: now,
		Checks:      map[string]bool{},
	}
	report.Totals.RowsTotal = len(rows)

	err := st.InTx(ctx, func(tx store.Tx) error {
		for _, row := range rows {
			if err := applyRow(ctx, tx, row, now, &report.Totals); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		report.Status = model.HealthFailed
		report.Error = err.Error()
		report.Totals = ApplyTotals{RowsTotal: len(rows)} // rolled back
		report.Checks["batch_committed"] = false
		report.Checks["provenance_ids_consistent"] = true
		log.Error("apply batch rolled back", zap.Error(err), zap.Int("rows", len(rows)))
		return report, eris.Wrap(err, "upsert: apply batch")
	}

	report.Status = model.HealthOK
	report.Checks["batch_committed"] = true
	report.Checks["provenance_ids_consistent"] = report.Totals.ProvenanceDivergent == 0

	log.Info("apply batch committed",
		zap.Int("inserted", report.Totals.RowsInserted),
		zap.Int("updated", report.Totals.RowsUpdated),
		zap.Int("source_records_created", report.Totals.SourceRecordsCreated),
	)
	return report, nil
}

// applyRow resolves provenance for one validated row and upserts its metric
// record by natural key.
func applyRow(ctx context.Context, tx store.Tx, row model.ApplyRow, now time.Time, totals *ApplyTotals) error {
	metric, err := metricFromApplyRow(row, now)
	if err != nil {
		return err
	}

	existing, err := tx.GetMetric(ctx, metric.MetricKey)
	if err != nil {
		return err
	}

	derivedID := model.DeriveSourceRecordID(row.KPIID, row.SanctionSourceID, row.PeriodDate, row.PeriodGranularity)

	// The explicit id is authoritative; a divergent derived id is flagged
	// for manual review, never merged.
	recordID := row.SourceRecordID
	if recordID == "" {
		recordID = derivedID
	} else if recordID != derivedID {
		totals.ProvenanceDivergent++
	}

	sourceID := row.SourceID
	if sourceID == "" {
		sourceID = row.SanctionSourceID
	}

	// An existing provenance link survives unless the row explicitly
	// supplies its own.
	if existing != nil && existing.HasProvenance() && row.SourceRecordID == "" {
		sourceID = existing.SourceID
		recordID = existing.SourceRecordID
	}

	rec, err := tx.GetSourceRecord(ctx, sourceID, recordID)
	if err != nil {
		return err
	}
	if rec == nil {
		payload, err := json.Marshal(row)
		if err != nil {
			return eris.Wrapf(err, "upsert: marshal payload for %s", metric.MetricKey)
		}
		if err := tx.InsertSourceRecord(ctx, model.SourceRecord{
			SourceID:       sourceID,
			SourceRecordID: recordID,
			ContentHash:    model.ContentHash(string(payload)),
			RawPayload:     string(payload),
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		totals.SourceRecordsCreated++
	} else {
		totals.SourceRecordsReused++
	}

	metric.SourceID = sourceID
	metric.SourceRecordID = recordID

	if existing == nil {
		metric.CreatedAt = now
		if err := tx.InsertMetric(ctx, *metric); err != nil {
			return err
		}
		totals.RowsInserted++
		return nil
	}

	metric.CreatedAt = existing.CreatedAt
	if err := tx.UpdateMetric(ctx, *metric); err != nil {
		return err
	}
	totals.RowsUpdated++
	return nil
}

// metricFromApplyRow converts a validated row into its storable record.
// Numeric fields parsed here were already vetted by the validator.
func metricFromApplyRow(row model.ApplyRow, now time.Time) (*model.MetricRecord, error) {
	value, ok := parseCount(row.Value)
	if !ok {
		return nil, eris.Errorf("upsert: row %s has non-numeric value %q", row.EffectiveMetricKey(), row.Value)
	}

	// The key is rebuilt from the natural-key columns so the stored key can
	// never disagree with them, regardless of the row's metric_key cell.
	metric := &model.MetricRecord{
		MetricKey:         model.BuildMetricKey(row.KPIID, row.SanctionSourceID, row.PeriodDate, row.PeriodGranularity),
		KPIID:             row.KPIID,
		SanctionSourceID:  row.SanctionSourceID,
		PeriodDate:        row.PeriodDate,
		PeriodGranularity: row.PeriodGranularity,
		Value:             value,
		SourceURL:         row.SourceURL,
		EvidenceDate:      row.EvidenceDate,
		EvidenceQuote:     row.EvidenceQuote,
		UpdatedAt:         now,
	}
	if num, ok := parseCount(row.Numerator); ok {
		metric.Numerator = &num
	}
	if den, ok := parseCount(row.Denominator); ok {
		metric.Denominator = &den
	}
	return metric, nil
}
