// Package stancsv reads the line-oriented CSV output produced by a
// CmdStan-style sampling engine: a comment block of configuration
// key/values, a header row of column names, a body of numeric draw rows,
// and (for sampling runs) a comment footer carrying the adaptation
// results (step size and metric).
package stancsv

import "fmt"

// Configuration keys recognized in the commented header block.
const (
	ConfigKeyNumSamples = "num_samples"
	ConfigKeyNumWarmup  = "num_warmup"
	ConfigKeyMethod     = "method"
	ConfigKeySeed       = "seed"
)

// Adaptation-footer keys.
const (
	AdaptKeyStepSize   = "step_size"
	AdaptKeyMetricType = "metric_type"
	AdaptKeyMetric     = "metric"
)

// Metric types written by the engine.
const (
	MetricDiag  = "diag_e"
	MetricDense = "dense_e"
	MetricUnit  = "unit_e"
)

// MalformedOutputError reports an output file that cannot be ingested:
// an untokenizable header, a row whose field count does not match the
// header, or an adaptation value of the wrong numeric shape.
type MalformedOutputError struct {
	Path   string
	Line   int
	Reason string
}

func (e *MalformedOutputError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed output: line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed output %s: line %d: %s", e.Path, e.Line, e.Reason)
}

// OutputRecord is the parsed contents of one engine output file.
// Immutable once constructed.
type OutputRecord struct {
	// Path is the file the record was read from, if known.
	Path string

	// Columns is the ordered column-name sequence from the header row.
	// It defines the array layout for any sample built from this record.
	Columns []string

	// Config holds the commented key/value configuration header.
	Config map[string]string

	// DeclaredDraws is the draw count declared in the configuration
	// header (num_samples), or 0 when the header does not declare one.
	DeclaredDraws int

	// Rows are the draw rows actually read. Every row has exactly
	// len(Columns) values.
	Rows [][]float64

	// StepSize is the adapted step size from the footer, if present.
	StepSize float64

	// MetricType is one of diag_e, dense_e or unit_e when the footer
	// declared a metric, empty otherwise.
	MetricType string

	// Metric holds the adapted metric: a single row for diagonal
	// metrics, a square matrix for dense ones.
	Metric [][]float64

	// AdaptKeys is the sorted set of adaptation-footer keys seen.
	AdaptKeys []string

	// Partial is true when the file ended mid-body: fewer rows than
	// declared and no adaptation footer, or a truncated trailing row
	// (which is discarded, not half-ingested).
	Partial bool
}

// DrawCount returns the number of complete draw rows read.
func (r *OutputRecord) DrawCount() int {
	return len(r.Rows)
}

// DroppedDraws returns how many declared draws are missing from the file.
func (r *OutputRecord) DroppedDraws() int {
	if r.DeclaredDraws <= 0 {
		return 0
	}
	if n := r.DeclaredDraws - len(r.Rows); n > 0 {
		return n
	}
	return 0
}
