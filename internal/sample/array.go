package sample

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Array is an immutable three-dimensional numeric array addressed as
// (draw index, run index, column index). Storage is run-major so each
// run's draws are contiguous.
type Array struct {
	columns []string
	draws   int
	runs    int
	cols    int
	data    []float64
}

// Shape returns the (draws, runs, columns) dimensions.
func (a *Array) Shape() (draws, runs, cols int) {
	return a.draws, a.runs, a.cols
}

// Columns returns the column names of the array.
func (a *Array) Columns() []string {
	return a.columns
}

// At returns the value at (draw, run, col).
func (a *Array) At(draw, run, col int) float64 {
	return a.data[run*a.draws*a.cols+draw*a.cols+col]
}

// Run returns the contiguous draws of one run as a row-major
// (draws x cols) slice of rows.
func (a *Array) Run(run int) [][]float64 {
	rows := make([][]float64, a.draws)
	base := run * a.draws * a.cols
	for draw := 0; draw < a.draws; draw++ {
		rows[draw] = a.data[base+draw*a.cols : base+(draw+1)*a.cols]
	}
	return rows
}

// Flatten collapses the run dimension: one row per (run, draw) pair in
// run-major, draw-minor order.
func (a *Array) Flatten() *Table {
	rows := make([][]float64, 0, a.runs*a.draws)
	for run := 0; run < a.runs; run++ {
		rows = append(rows, a.Run(run)...)
	}
	return &Table{Columns: a.columns, Rows: rows}
}

// Table is a flattened two-dimensional view of a sample.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// Render formats the table for terminal display.
func (t *Table) Render() string {
	header := make(table.Row, len(t.Columns))
	for i, name := range t.Columns {
		header[i] = name
	}

	w := table.NewWriter()
	w.AppendHeader(header)
	for _, row := range t.Rows {
		dataRow := make(table.Row, len(row))
		for i, v := range row {
			dataRow[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		w.AppendRow(dataRow)
	}
	return w.Render()
}
