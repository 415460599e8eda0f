package sheet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/opengov-es/revisor/internal/model"
)

func TestWritePacketXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw_capture_teac_2024_12_31_year.xlsx")
	row := model.RawCaptureRow{
		SanctionSourceID:  "teac",
		PeriodDate:        "2024-12-31",
		PeriodGranularity: "year",
		SourceURL:         "https://example.org/teac",
		SourceLabel:       "TEAC",
		Organismo:         "Hacienda",
		KPIsExpected:      "3",
	}

	require.NoError(t, WritePacketXLSX(path, row))

	wb, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)
	sheet := wb.Sheets[0]
	assert.Equal(t, "raw_capture", sheet.Name)
	require.GreaterOrEqual(t, len(sheet.Rows), 2)

	header := sheet.Rows[0]
	assert.Equal(t, "sanction_source_id", header.Cells[0].String())

	values := sheet.Rows[1]
	assert.Equal(t, "teac", values.Cells[0].String())
	assert.Equal(t, "2024-12-31", values.Cells[1].String())
}
