package xdrcodec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// Record marking constants, RFC 5531 §11 (formerly RFC 1831 §10).
const (
	// LastFragmentFlag is set in a fragment header's high bit to mark the
	// final fragment of a record.
	LastFragmentFlag = 0x80000000

	// MaxFragmentLen is the largest value the 31-bit fragment length field
	// can carry.
	MaxFragmentLen = 0x7FFFFFFF

	// DefaultMaxFragmentSize bounds the size of a single written fragment;
	// larger records are split across multiple fragments.
	DefaultMaxFragmentSize = 1 << 20 // 1MiB
)

// RecordReader reassembles record-marked RPC messages from a byte stream.
// Each record may be split across any number of fragments; the reader
// concatenates fragments until one carries the last-fragment flag.
type RecordReader struct {
	r io.Reader
}

// NewRecordReader wraps r for record-marked reads.
func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{r: r}
}

// ReadRecord reads one complete RPC record (all of its fragments) and
// returns the reassembled payload.
func (rr *RecordReader) ReadRecord() ([]byte, error) {
	var buf bytes.Buffer

	for {
		var header uint32
		if err := binary.Read(rr.r, binary.BigEndian, &header); err != nil {
			return nil, fmt.Errorf("xdr: read fragment header: %w", err)
		}

		last := header&LastFragmentFlag != 0
		fragLen := header &^ LastFragmentFlag

		if fragLen > 0 {
			if _, err := io.CopyN(&buf, rr.r, int64(fragLen)); err != nil {
				return nil, fmt.Errorf("xdr: read fragment data: %w", err)
			}
		}

		if last {
			return buf.Bytes(), nil
		}
	}
}

// RecordWriter frames outgoing RPC messages with record marking.
type RecordWriter struct {
	w           io.Writer
	maxFragment int
	mu          sync.Mutex
}

// NewRecordWriter wraps w for record-marked writes, splitting records
// larger than DefaultMaxFragmentSize across multiple fragments.
func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{w: w, maxFragment: DefaultMaxFragmentSize}
}

// WriteRecord writes data as one RPC record, fragmenting it if it exceeds
// the writer's maximum fragment size. The whole record is written under a
// single lock so that concurrent callers cannot interleave fragments of
// different records on the wire.
func (rw *RecordWriter) WriteRecord(data []byte) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	remaining := data
	for {
		fragLen := len(remaining)
		last := true
		if fragLen > rw.maxFragment {
			fragLen = rw.maxFragment
			last = false
		}

		header := uint32(fragLen)
		if last {
			header |= LastFragmentFlag
		}

		if err := binary.Write(rw.w, binary.BigEndian, header); err != nil {
			return fmt.Errorf("xdr: write fragment header: %w", err)
		}
		if _, err := rw.w.Write(remaining[:fragLen]); err != nil {
			return fmt.Errorf("xdr: write fragment data: %w", err)
		}

		remaining = remaining[fragLen:]
		if last {
			return nil
		}
	}
}
