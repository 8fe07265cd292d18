package stancsv

import (
	"fmt"
	"os"
	"sort"
)

// InconsistentRunsError reports the first cross-run structural mismatch
// found when validating a group of records against each other.
type InconsistentRunsError struct {
	// Run is the index of the first mismatching record.
	Run int
	// Mismatch is one of "column set", "column order", "adaptation keys"
	// or "declared draw count".
	Mismatch string
	Detail   string
}

func (e *InconsistentRunsError) Error() string {
	return fmt.Sprintf("inconsistent runs: run %d: %s mismatch: %s", e.Run, e.Mismatch, e.Detail)
}

// ValidationResult is the shared structure agreed on by a validated
// group of records.
type ValidationResult struct {
	// Columns is the column-name sequence shared by every record.
	Columns []string
	// AdaptKeys is the adaptation-metadata key set shared by every record.
	AdaptKeys []string
	// PartialRuns lists the indexes of records marked partial. The
	// records are structurally valid; whether a fit containing them is
	// usable is the caller's decision.
	PartialRuns []int
}

// Validate checks that all records describe the same model run: an
// identical column-name sequence (same names, same order), an identical
// declared draw count, and an identical adaptation-metadata key set.
// Adaptation values may differ per run; each run adapts its own step
// size and metric.
func Validate(records []*OutputRecord) (*ValidationResult, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to validate")
	}

	ref := records[0]
	result := &ValidationResult{Columns: ref.Columns}

	// A partial record was killed before it wrote its footer, so the
	// adaptation-key invariant is checked across complete records only.
	adaptRef := -1
	for i, rec := range records {
		if rec.Partial {
			result.PartialRuns = append(result.PartialRuns, i)
			continue
		}
		if adaptRef < 0 {
			adaptRef = i
			result.AdaptKeys = rec.AdaptKeys
		}
	}

	// A record whose header never declared a count is exempt from the
	// declared-draw-count invariant, not a mismatch.
	declRef := -1
	for i, rec := range records {
		if rec.DeclaredDraws > 0 {
			declRef = i
			break
		}
	}

	for i, rec := range records[1:] {
		run := i + 1
		if err := compareColumns(run, ref.Columns, rec.Columns); err != nil {
			return nil, err
		}
		if declRef >= 0 && run != declRef && rec.DeclaredDraws > 0 &&
			rec.DeclaredDraws != records[declRef].DeclaredDraws {
			return nil, &InconsistentRunsError{
				Run:      run,
				Mismatch: "declared draw count",
				Detail: fmt.Sprintf("run %d declares %d, run %d declares %d",
					declRef, records[declRef].DeclaredDraws, run, rec.DeclaredDraws),
			}
		}
		if rec.Partial || adaptRef < 0 || run == adaptRef {
			continue
		}
		if !equalStrings(records[adaptRef].AdaptKeys, rec.AdaptKeys) {
			return nil, &InconsistentRunsError{
				Run:      run,
				Mismatch: "adaptation keys",
				Detail: fmt.Sprintf("run %d has %v, run %d has %v",
					adaptRef, records[adaptRef].AdaptKeys, run, rec.AdaptKeys),
			}
		}
	}
	return result, nil
}

// ParseAll parses one output file per path and validates the group,
// returning the records alongside the shared structure.
func ParseAll(paths []string) ([]*OutputRecord, *ValidationResult, error) {
	records := make([]*OutputRecord, 0, len(paths))
	for _, p := range paths {
		rec, err := Parse(p)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
	}
	result, err := Validate(records)
	if err != nil {
		return nil, nil, err
	}
	return records, result, nil
}

// ProbeHeader reads just the structural prefix of an output file. It is
// the cheap well-formedness check applied before a run is considered
// complete.
func ProbeHeader(path string) (*Header, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return NewReader(f, path).ReadHeader()
}

func compareColumns(run int, want, got []string) error {
	if equalStrings(want, got) {
		return nil
	}
	if sameSet(want, got) {
		return &InconsistentRunsError{
			Run:      run,
			Mismatch: "column order",
			Detail:   fmt.Sprintf("run 0 has %v, run %d has %v", want, run, got),
		}
	}
	return &InconsistentRunsError{
		Run:      run,
		Mismatch: "column set",
		Detail:   fmt.Sprintf("run 0 has %v, run %d has %v", want, run, got),
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	return equalStrings(as, bs)
}
