package runset

import (
	"io"
	"sync"
)

// defaultTailLimit is the maximum number of bytes of recent engine
// stderr retained per run for diagnostics.
const defaultTailLimit = 4096

// TailWriter forwards to an underlying writer and keeps a rolling tail
// of recent output up to max bytes. Safe for concurrent use.
type TailWriter struct {
	mu         sync.Mutex
	underlying io.Writer // may be nil; output is then only retained
	max        int
	buf        []byte
}

// NewTailWriter creates a TailWriter that forwards writes to out and
// retains a rolling tail of recent bytes. out may be nil. If max <= 0
// the package default limit is used.
func NewTailWriter(out io.Writer, max int) *TailWriter {
	if max <= 0 {
		max = defaultTailLimit
	}
	return &TailWriter{underlying: out, max: max}
}

func (t *TailWriter) Write(p []byte) (int, error) {
	var n int
	var err error
	if t.underlying != nil {
		n, err = t.underlying.Write(p)
	} else {
		n = len(p)
	}

	t.mu.Lock()
	if len(p) > 0 {
		t.buf = append(t.buf, p...)
		if len(t.buf) > t.max {
			t.buf = t.buf[len(t.buf)-t.max:]
		}
	}
	t.mu.Unlock()

	return n, err
}

// Tail returns the rolling tail buffer as a string.
func (t *TailWriter) Tail() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
