// Package sheet reads and writes the CSV and XLSX fill-in shapes exchanged
// with humans: apply rows, raw-capture packets, and gap queues.
package sheet

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/opengov-es/revisor/internal/model"
)

// ReadApplyRows decodes an apply-row CSV. Every column of the apply shape
// must be present in the header; a missing column is a run-level failure,
// not a row-level one.
func ReadApplyRows(r io.Reader) ([]model.ApplyRow, error) {
	dec, err := newDecoder(r)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: read apply header")
	}
	dec.DisallowMissingColumns = true

	var rows []model.ApplyRow
	if err := dec.Decode(&rows); err != nil {
		return nil, eris.Wrap(err, "sheet: decode apply rows")
	}
	return rows, nil
}

// WriteApplyRows encodes apply rows with the canonical header.
func WriteApplyRows(w io.Writer, rows []model.ApplyRow) error {
	return marshalCSV(w, rows, "sheet: write apply rows")
}

// ReadRawCaptureRows decodes a raw-capture CSV. The read-only metadata
// columns are cleared on input regardless of what the sheet contains; they
// are regenerated on output.
func ReadRawCaptureRows(r io.Reader) ([]model.RawCaptureRow, error) {
	dec, err := newDecoder(r)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: read raw capture header")
	}

	var rows []model.RawCaptureRow
	if err := dec.Decode(&rows); err != nil {
		return nil, eris.Wrap(err, "sheet: decode raw capture rows")
	}
	for i := range rows {
		rows[i].SourceLabel = ""
		rows[i].Organismo = ""
		rows[i].ExpectedMetrics = ""
		rows[i].KPIsExpected = ""
		rows[i].KPIsCoveredTotal = ""
		rows[i].MetricRowsTotal = ""
	}
	return rows, nil
}

// WriteRawCaptureRows encodes raw-capture rows including metadata columns.
func WriteRawCaptureRows(w io.Writer, rows []model.RawCaptureRow) error {
	return marshalCSV(w, rows, "sheet: write raw capture rows")
}

// WriteQueueRows encodes gap-queue rows.
func WriteQueueRows(w io.Writer, rows []model.QueueRow) error {
	return marshalCSV(w, rows, "sheet: write queue rows")
}

func newDecoder(r io.Reader) (*csvutil.Decoder, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	return csvutil.NewDecoder(reader)
}

func marshalCSV[T any](w io.Writer, rows []T, wrap string) error {
	// csvutil.Marshal needs a non-nil slice to emit the header alone.
	if rows == nil {
		rows = []T{}
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, wrap)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return eris.Wrap(err, wrap)
	}
	return nil
}
