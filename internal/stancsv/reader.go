package stancsv

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const commentPrefix = "#"

// Header is the structural prefix of an output file: everything up to
// and including the column-name row. It is cheap to read and lets a
// caller validate structure before committing to reading all draws.
type Header struct {
	Columns       []string
	Config        map[string]string
	DeclaredDraws int
}

// Reader streams one engine output file in a single pass. Memory use is
// bounded by one line regardless of the draw count.
type Reader struct {
	sc   *bufio.Scanner
	path string
	line int

	header    *Header
	adapt     map[string][]string // footer key -> raw values ("metric" repeats)
	adaptSeen []string            // footer keys in first-seen order
	truncated bool
	done      bool
}

// NewReader creates a Reader over r. The path is used in error messages
// only and may be empty.
func NewReader(r io.Reader, path string) *Reader {
	sc := bufio.NewScanner(r)
	// Dense-metric footer rows can be long for large models.
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{
		sc:    sc,
		path:  path,
		adapt: make(map[string][]string),
	}
}

func (r *Reader) malformed(reason string) error {
	return &MalformedOutputError{Path: r.path, Line: r.line, Reason: reason}
}

// ReadHeader consumes the commented configuration block and the column
// header row. It must be called before Next.
func (r *Reader) ReadHeader() (*Header, error) {
	if r.header != nil {
		return r.header, nil
	}

	config := make(map[string]string)
	for r.sc.Scan() {
		r.line++
		text := strings.TrimSpace(r.sc.Text())
		switch {
		case text == "":
			continue
		case strings.HasPrefix(text, commentPrefix):
			if key, value, ok := parseCommentKV(text); ok {
				config[key] = value
			}
			continue
		}

		columns, err := parseColumnRow(text)
		if err != nil {
			return nil, r.malformed(err.Error())
		}

		declared := 0
		if raw, ok := config[ConfigKeyNumSamples]; ok {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return nil, r.malformed(fmt.Sprintf("invalid %s value %q", ConfigKeyNumSamples, raw))
			}
			declared = n
		}

		r.header = &Header{Columns: columns, Config: config, DeclaredDraws: declared}
		return r.header, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	return nil, r.malformed("no column header row found")
}

// Next returns the next complete draw row, or io.EOF when the body is
// exhausted. Comment and blank lines interleaved in the body are
// tolerated; comment key/values after the header row are collected as
// adaptation metadata. A truncated trailing row is discarded and marks
// the record as partial rather than failing.
func (r *Reader) Next() ([]float64, error) {
	if r.header == nil {
		if _, err := r.ReadHeader(); err != nil {
			return nil, err
		}
	}
	if r.done {
		return nil, io.EOF
	}

	ncols := len(r.header.Columns)
	for r.sc.Scan() {
		r.line++
		text := strings.TrimSpace(r.sc.Text())
		switch {
		case text == "":
			continue
		case strings.HasPrefix(text, commentPrefix):
			r.collectAdaptation(text)
			continue
		}

		fields := strings.Split(text, ",")
		if len(fields) != ncols {
			if r.restIsBlank() {
				// Killed mid-write; drop the half row.
				r.truncated = true
				r.done = true
				return nil, io.EOF
			}
			return nil, r.malformed(fmt.Sprintf("row has %d fields, header has %d columns", len(fields), ncols))
		}

		row := make([]float64, ncols)
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				if i == ncols-1 && r.restIsBlank() {
					r.truncated = true
					r.done = true
					return nil, io.EOF
				}
				return nil, r.malformed(fmt.Sprintf("invalid numeric value %q in column %s", f, r.header.Columns[i]))
			}
			row[i] = v
		}
		return row, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	r.done = true
	return nil, io.EOF
}

// restIsBlank reports whether the remainder of the input contains no
// further content. Used to distinguish a truncated trailing row from a
// malformed row in the middle of the body.
func (r *Reader) restIsBlank() bool {
	for r.sc.Scan() {
		r.line++
		if strings.TrimSpace(r.sc.Text()) != "" {
			return false
		}
	}
	return true
}

func (r *Reader) collectAdaptation(text string) {
	key, value, ok := parseCommentKV(text)
	if !ok {
		return
	}
	if _, seen := r.adapt[key]; !seen {
		r.adaptSeen = append(r.adaptSeen, key)
	}
	r.adapt[key] = append(r.adapt[key], value)
}

// footerSeen reports whether an adaptation footer was read. A run killed
// mid-body never writes one, which is what separates a partial record
// from a declared/actual mismatch on a run that finished writing.
func (r *Reader) footerSeen() bool {
	return len(r.adapt) > 0
}

// parseCommentKV extracts a key/value pair from a comment line of the
// form "# key = value" or "# key: value". Comment lines that are not
// key/value pairs return ok=false and are ignored.
func parseCommentKV(text string) (key, value string, ok bool) {
	body := strings.TrimSpace(strings.TrimPrefix(text, commentPrefix))
	if body == "" {
		return "", "", false
	}
	for _, sep := range []string{"=", ":"} {
		if idx := strings.Index(body, sep); idx > 0 {
			key = strings.TrimSpace(body[:idx])
			value = strings.TrimSpace(body[idx+len(sep):])
			if key != "" && !strings.ContainsAny(key, " \t") {
				return key, value, true
			}
		}
	}
	return "", "", false
}

func parseColumnRow(text string) ([]string, error) {
	fields := strings.Split(text, ",")
	columns := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		name := strings.TrimSpace(f)
		if name == "" {
			return nil, fmt.Errorf("empty column name in header row")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate column name %q in header row", name)
		}
		seen[name] = struct{}{}
		columns = append(columns, name)
	}
	return columns, nil
}

// Parse reads the file at path into an OutputRecord in a single pass.
func Parse(path string) (*OutputRecord, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f, path)
}

// ParseReader reads an output stream into an OutputRecord. The path is
// used for error reporting only.
func ParseReader(in io.Reader, path string) (*OutputRecord, error) {
	r := NewReader(in, path)

	header, err := r.ReadHeader()
	if err != nil {
		return nil, err
	}

	var rows [][]float64
	if header.DeclaredDraws > 0 {
		rows = make([][]float64, 0, header.DeclaredDraws)
	}
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	rec := &OutputRecord{
		Path:          path,
		Columns:       header.Columns,
		Config:        header.Config,
		DeclaredDraws: header.DeclaredDraws,
		Rows:          rows,
	}

	if err := r.finishRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// finishRecord applies the collected adaptation metadata to rec and
// settles the complete/partial/malformed trichotomy.
func (r *Reader) finishRecord(rec *OutputRecord) error {
	if err := r.applyAdaptation(rec); err != nil {
		return err
	}

	declared := rec.DeclaredDraws
	actual := len(rec.Rows)
	switch {
	case r.truncated:
		rec.Partial = true
	case declared > 0 && actual < declared:
		if r.footerSeen() {
			// The engine finished writing its footer yet produced fewer
			// rows than it declared. Not a cancellation artifact, so
			// refuse rather than silently truncate.
			return r.malformed(fmt.Sprintf("declared %d draws, file holds %d", declared, actual))
		}
		rec.Partial = true
	case declared > 0 && actual > declared:
		return r.malformed(fmt.Sprintf("declared %d draws, file holds %d", declared, actual))
	}
	return nil
}

func (r *Reader) applyAdaptation(rec *OutputRecord) error {
	if len(r.adapt) == 0 {
		return nil
	}

	keys := make([]string, len(r.adaptSeen))
	copy(keys, r.adaptSeen)
	sort.Strings(keys)
	rec.AdaptKeys = keys

	if raw, ok := r.adapt[AdaptKeyStepSize]; ok {
		v, err := strconv.ParseFloat(raw[len(raw)-1], 64)
		if err != nil {
			return r.malformed(fmt.Sprintf("invalid %s value %q", AdaptKeyStepSize, raw[len(raw)-1]))
		}
		rec.StepSize = v
	}

	if raw, ok := r.adapt[AdaptKeyMetricType]; ok {
		rec.MetricType = raw[len(raw)-1]
	}

	metricRows, ok := r.adapt[AdaptKeyMetric]
	if !ok {
		return nil
	}
	metric := make([][]float64, 0, len(metricRows))
	for _, rowText := range metricRows {
		fields := strings.Split(rowText, ",")
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return r.malformed(fmt.Sprintf("invalid %s value %q", AdaptKeyMetric, f))
			}
			row[i] = v
		}
		metric = append(metric, row)
	}

	switch rec.MetricType {
	case MetricDiag, MetricUnit, "":
		if len(metric) != 1 {
			return r.malformed(fmt.Sprintf("diagonal metric must be a single row, got %d rows", len(metric)))
		}
	case MetricDense:
		for _, row := range metric {
			if len(row) != len(metric) {
				return r.malformed(fmt.Sprintf("dense metric must be square, got %dx%d", len(metric), len(row)))
			}
		}
	}

	rec.Metric = metric
	return nil
}
