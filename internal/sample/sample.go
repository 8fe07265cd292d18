// Package sample assembles validated per-run output records into one
// immutable three-dimensional numeric array (draws x runs x columns)
// and serves read-only queries against it.
package sample

import (
	"fmt"
	"sync"

	"github.com/sfarHD14/cmdstanpy/internal/stancsv"
)

// UnknownColumnError is returned when a column selection names a column
// absent from the shared column-name sequence.
type UnknownColumnError struct {
	Name string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Name)
}

// Dropped records draws discarded from one run to align all runs on the
// shared effective draw count.
type Dropped struct {
	Run   int
	Count int
}

// SampleSet is the merged artifact of one fit: N validated records
// stacked into a single array. The array is materialized lazily on
// first access and at most once; after that, the set is immutable and
// safe for concurrent reads.
type SampleSet struct {
	columns  []string
	colIndex map[string]int
	records  []*stancsv.OutputRecord

	drawCount int
	dropped   []Dropped

	once  sync.Once
	array *Array
}

// New creates a SampleSet from records previously checked by
// stancsv.Validate. The effective draw count is the minimum complete
// draw count across records; any shortfall against a record's own row
// count is reported via Dropped rather than failing.
func New(records []*stancsv.OutputRecord) (*SampleSet, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to build a sample from")
	}

	columns := records[0].Columns
	colIndex := make(map[string]int, len(columns))
	for i, name := range columns {
		colIndex[name] = i
	}

	drawCount := records[0].DrawCount()
	for _, rec := range records[1:] {
		if n := rec.DrawCount(); n < drawCount {
			drawCount = n
		}
	}

	var dropped []Dropped
	for i, rec := range records {
		have := rec.DrawCount()
		if rec.DeclaredDraws > have {
			// A partial record also loses its never-written draws.
			have = rec.DeclaredDraws
		}
		if n := have - drawCount; n > 0 {
			dropped = append(dropped, Dropped{Run: i, Count: n})
		}
	}

	return &SampleSet{
		columns:   columns,
		colIndex:  colIndex,
		records:   records,
		drawCount: drawCount,
		dropped:   dropped,
	}, nil
}

// Columns returns the shared column-name sequence.
func (s *SampleSet) Columns() []string {
	return s.columns
}

// Shape returns the (draws, runs, columns) dimensions.
func (s *SampleSet) Shape() (draws, runs, cols int) {
	return s.drawCount, len(s.records), len(s.columns)
}

// DroppedDraws reports, per run, how many draws were discarded to align
// all runs on the shared draw count.
func (s *SampleSet) DroppedDraws() []Dropped {
	return s.dropped
}

// StepSizes returns the adapted step size per run, in run order.
func (s *SampleSet) StepSizes() []float64 {
	out := make([]float64, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.StepSize
	}
	return out
}

// Metrics returns the adapted metric per run, in run order.
func (s *SampleSet) Metrics() [][][]float64 {
	out := make([][][]float64, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.Metric
	}
	return out
}

// Draws materializes (at most once) and returns the full array.
func (s *SampleSet) Draws() *Array {
	s.once.Do(s.materialize)
	return s.array
}

// materialize builds the array run-major: all draws for run 0, then
// run 1, and so on, keeping each run's draws contiguous for per-run
// statistics downstream.
func (s *SampleSet) materialize() {
	draws, runs, cols := s.Shape()
	data := make([]float64, draws*runs*cols)
	for run, rec := range s.records {
		base := run * draws * cols
		for draw := 0; draw < draws; draw++ {
			copy(data[base+draw*cols:base+(draw+1)*cols], rec.Rows[draw])
		}
	}
	s.array = &Array{
		columns: s.columns,
		draws:   draws,
		runs:    runs,
		cols:    cols,
		data:    data,
	}
}

// Select returns a reduced array holding only the named columns, in the
// given order.
func (s *SampleSet) Select(names ...string) (*Array, error) {
	indexes := make([]int, len(names))
	for i, name := range names {
		idx, ok := s.colIndex[name]
		if !ok {
			return nil, &UnknownColumnError{Name: name}
		}
		indexes[i] = idx
	}

	src := s.Draws()
	draws, runs := src.draws, src.runs
	cols := len(names)
	data := make([]float64, draws*runs*cols)
	for run := 0; run < runs; run++ {
		for draw := 0; draw < draws; draw++ {
			for j, idx := range indexes {
				data[run*draws*cols+draw*cols+j] = src.At(draw, run, idx)
			}
		}
	}
	return &Array{
		columns: append([]string(nil), names...),
		draws:   draws,
		runs:    runs,
		cols:    cols,
		data:    data,
	}, nil
}

// Flatten returns the two-dimensional view: one row per (run, draw)
// pair in run-major, draw-minor order, one column per variable.
func (s *SampleSet) Flatten() *Table {
	return s.Draws().Flatten()
}
