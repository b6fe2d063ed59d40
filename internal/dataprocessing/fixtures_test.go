package dataprocessing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// exportFixture describes a CONSAR-style workbook for tests.
type exportFixture struct {
	subfundHeader string
	unit          string
	periods       []string
	// rows below the period header: label followed by one value per period
	rows [][]interface{}
}

var months24 = []string{
	"ene-24", "feb-24", "mar-24", "abr-24", "may-24", "jun-24",
	"jul-24", "ago-24", "sep-24", "oct-24", "nov-24", "dic-24",
}

func defaultFixture() exportFixture {
	return exportFixture{
		subfundHeader: "Siefore Básica 60-64",
		unit:          "Unidad: Miles de Pesos",
		periods:       months24,
		rows: [][]interface{}{
			{"Total de Activo"},
			{"Azteca", 1, 2, 3, 4, 5, 6, 7, 8, 9, 1000, 11, 12},
			{"SURA", "1,100", 0, 0, 0, 0, 0, 0, 0, 0, "2,500.5", 0, 0},
			{"Inversión en Fondos Mutuos"},
			{"Azteca", 0, 0, 0, 0, 0, 0, 0, 0, 0, "N/E", 0, 0},
			{"Total"},
			{"Fuente: CONSAR"},
		},
	}
}

func setCell(t *testing.T, f *excelize.File, sheet string, row, col int, v interface{}) {
	t.Helper()
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(sheet, cell, v))
}

// writeExport saves fx to dir/name using the default layout and returns
// the path.
func writeExport(t *testing.T, dir, name string, fx exportFixture) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	setCell(t, f, sheet, 0, 1, "Comisión Nacional del Sistema de Ahorro para el Retiro")
	if fx.subfundHeader != "" {
		setCell(t, f, sheet, 2, 1, fx.subfundHeader)
	}
	setCell(t, f, sheet, 4, 1, "Detalle por Afores")
	if fx.unit != "" {
		setCell(t, f, sheet, 6, 2, fx.unit)
	}
	setCell(t, f, sheet, 9, 1, "Concepto")
	for j, p := range fx.periods {
		setCell(t, f, sheet, 9, 4+j, p)
	}
	for i, row := range fx.rows {
		if len(row) == 0 {
			continue
		}
		setCell(t, f, sheet, 10+i, 1, row[0])
		for j, v := range row[1:] {
			setCell(t, f, sheet, 10+i, 4+j, v)
		}
	}

	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}
