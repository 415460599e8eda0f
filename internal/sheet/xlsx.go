package sheet

import (
	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/opengov-es/revisor/internal/model"
)

// WritePacketXLSX renders one raw-capture packet as a single-sheet workbook
// with the same columns as the CSV shape, for manual completion.
func WritePacketXLSX(path string, row model.RawCaptureRow) error {
	header, err := csvutil.Header(model.RawCaptureRow{}, "csv")
	if err != nil {
		return eris.Wrap(err, "sheet: raw capture header")
	}

	file := xlsx.NewFile()
	ws, err := file.AddSheet("raw_capture")
	if err != nil {
		return eris.Wrap(err, "sheet: add xlsx sheet")
	}

	headerRow := ws.AddRow()
	for _, col := range header {
		headerRow.AddCell().Value = col
	}

	dataRow := ws.AddRow()
	for _, cell := range rawCaptureCells(row) {
		dataRow.AddCell().Value = cell
	}

	return eris.Wrapf(file.Save(path), "sheet: save xlsx packet %s", path)
}

// rawCaptureCells flattens a raw-capture row in header order.
func rawCaptureCells(r model.RawCaptureRow) []string {
	return []string{
		r.SanctionSourceID,
		r.PeriodDate,
		r.PeriodGranularity,
		r.SourceURL,
		r.EvidenceDate,
		r.EvidenceQuote,
		r.RecursoPresentado,
		r.RecursoEstimado,
		r.AnulacionesFormales,
		r.ResolutionDelayP90,
		r.SourceID,
		r.SourceRecordID,
		r.SourceLabel,
		r.Organismo,
		r.ExpectedMetrics,
		r.KPIsExpected,
		r.KPIsCoveredTotal,
		r.MetricRowsTotal,
	}
}
