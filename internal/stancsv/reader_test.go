package stancsv

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleOutput(draws int, declared int, footer bool) string {
	var b strings.Builder
	b.WriteString("# method = sample\n")
	fmt.Fprintf(&b, "# num_samples = %d\n", declared)
	b.WriteString("# num_warmup = 200\n")
	b.WriteString("# seed = 42\n")
	b.WriteString("lp__,a,b,c\n")
	for i := 0; i < draws; i++ {
		fmt.Fprintf(&b, "-%d.5,%d,%d,%d\n", i, i, i*2, i*3)
	}
	if footer {
		b.WriteString("# step_size = 0.805\n")
		b.WriteString("# metric_type = diag_e\n")
		b.WriteString("# metric: 0.5,0.4,0.3\n")
	}
	return b.String()
}

func TestParseWellFormed(t *testing.T) {
	rec, err := ParseReader(strings.NewReader(sampleOutput(100, 100, true)), "chain-1.csv")
	require.NoError(t, err)

	require.Equal(t, []string{"lp__", "a", "b", "c"}, rec.Columns)
	require.Equal(t, 100, rec.DeclaredDraws)
	require.Equal(t, 100, rec.DrawCount())
	require.False(t, rec.Partial)
	require.Equal(t, 0, rec.DroppedDraws())

	// Row ordering and values must be preserved exactly.
	require.Equal(t, []float64{-0.5, 0, 0, 0}, rec.Rows[0])
	require.Equal(t, []float64{-99.5, 99, 198, 297}, rec.Rows[99])

	require.Equal(t, 0.805, rec.StepSize)
	require.Equal(t, MetricDiag, rec.MetricType)
	require.Equal(t, [][]float64{{0.5, 0.4, 0.3}}, rec.Metric)
	require.Equal(t, []string{"metric", "metric_type", "step_size"}, rec.AdaptKeys)
	require.Equal(t, "sample", rec.Config[ConfigKeyMethod])
}

func TestParseInterleavedComments(t *testing.T) {
	in := strings.Join([]string{
		"",
		"# method = sample",
		"lp__,theta",
		"",
		"-7.2,0.25",
		"# Adaptation terminated",
		"-7.3,0.30",
		"",
		"-7.1,0.28",
	}, "\n")

	rec, err := ParseReader(strings.NewReader(in), "")
	require.NoError(t, err)
	require.Equal(t, 3, rec.DrawCount())
	require.Equal(t, []float64{-7.3, 0.30}, rec.Rows[1])
	require.False(t, rec.Partial)
}

func TestParseTruncatedTrailingRow(t *testing.T) {
	// A killed process leaves a half-written final row; the row is
	// discarded, not half-ingested, and the record is partial.
	full := sampleOutput(50, 50, false)
	truncated := full[:strings.LastIndex(strings.TrimSuffix(full, "\n"), ",")]

	rec, err := ParseReader(strings.NewReader(truncated), "")
	require.NoError(t, err)
	require.True(t, rec.Partial)
	require.Equal(t, 49, rec.DrawCount())
	require.Equal(t, 1, rec.DroppedDraws())
}

func TestParseTruncatedMidBody(t *testing.T) {
	in := strings.Join([]string{
		"# num_samples = 50",
		"lp__,theta",
		"-7.2,0.25",
		"-7.3,0.30",
	}, "\n")

	rec, err := ParseReader(strings.NewReader(in), "")
	require.NoError(t, err)
	require.True(t, rec.Partial)
	require.Equal(t, 2, rec.DrawCount())
	require.Equal(t, 48, rec.DroppedDraws())
}

func TestParseFieldCountMismatchMidBody(t *testing.T) {
	in := strings.Join([]string{
		"lp__,theta",
		"-7.2,0.25",
		"-7.3",
		"-7.1,0.28",
	}, "\n")

	_, err := ParseReader(strings.NewReader(in), "bad.csv")
	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, "bad.csv", malformed.Path)
	require.Contains(t, malformed.Reason, "fields")
}

func TestParseBadNumericValue(t *testing.T) {
	in := strings.Join([]string{
		"lp__,theta",
		"-7.2,zebra",
		"-7.1,0.28",
	}, "\n")

	_, err := ParseReader(strings.NewReader(in), "")
	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	require.Contains(t, malformed.Reason, "zebra")
}

func TestParseNoHeaderRow(t *testing.T) {
	in := "# method = sample\n# num_samples = 10\n"
	_, err := ParseReader(strings.NewReader(in), "")
	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
}

func TestParseDuplicateColumn(t *testing.T) {
	in := "lp__,theta,theta\n-7.2,0.25,0.26\n"
	_, err := ParseReader(strings.NewReader(in), "")
	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	require.Contains(t, malformed.Reason, "duplicate")
}

func TestParseDeclaredExceedsActualWithFooter(t *testing.T) {
	// The engine closed its footer but wrote fewer rows than declared.
	// Not a cancellation artifact, so it is malformed, not partial.
	in := sampleOutput(90, 100, true)
	_, err := ParseReader(strings.NewReader(in), "")
	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	require.Contains(t, malformed.Reason, "declared 100 draws")
}

func TestParseDenseMetric(t *testing.T) {
	in := strings.Join([]string{
		"lp__,a,b",
		"-7.2,0.25,0.5",
		"# step_size = 0.9",
		"# metric_type = dense_e",
		"# metric: 1.0,0.1",
		"# metric: 0.1,2.0",
	}, "\n")

	rec, err := ParseReader(strings.NewReader(in), "")
	require.NoError(t, err)
	require.Equal(t, MetricDense, rec.MetricType)
	require.Equal(t, [][]float64{{1.0, 0.1}, {0.1, 2.0}}, rec.Metric)
}

func TestParseDenseMetricNotSquare(t *testing.T) {
	in := strings.Join([]string{
		"lp__,a,b",
		"-7.2,0.25,0.5",
		"# metric_type = dense_e",
		"# metric: 1.0,0.1,0.3",
	}, "\n")

	_, err := ParseReader(strings.NewReader(in), "")
	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	require.Contains(t, malformed.Reason, "square")
}

func TestParseBadStepSize(t *testing.T) {
	in := strings.Join([]string{
		"lp__,theta",
		"-7.2,0.25",
		"# step_size = fast",
	}, "\n")

	_, err := ParseReader(strings.NewReader(in), "")
	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	require.Contains(t, malformed.Reason, "step_size")
}

func TestReaderStreamsHeaderFirst(t *testing.T) {
	// The column sequence must be available before any draws are read.
	r := NewReader(strings.NewReader(sampleOutput(10, 10, true)), "")
	header, err := r.ReadHeader()
	require.NoError(t, err)
	require.Equal(t, []string{"lp__", "a", "b", "c"}, header.Columns)
	require.Equal(t, 10, header.DeclaredDraws)

	n := 0
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		n++
	}
	require.Equal(t, 10, n)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chain-1.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleOutput(5, 5, true)), 0600))

	rec, err := Parse(path)
	require.NoError(t, err)
	require.Equal(t, path, rec.Path)
	require.Equal(t, 5, rec.DrawCount())
}

func TestProbeHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chain-1.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleOutput(5, 5, true)), 0600))

	header, err := ProbeHeader(path)
	require.NoError(t, err)
	require.Equal(t, []string{"lp__", "a", "b", "c"}, header.Columns)

	_, err = ProbeHeader(filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
}
