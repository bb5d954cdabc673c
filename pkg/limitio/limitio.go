// Package limitio bounds the size of a streamed payload.
//
// A counter wraps one side of a stream (typically the receive side of a
// push), accumulates the number of bytes observed, and aborts the
// transfer with a distinct "payload too large" error the instant the
// configured budget is exceeded. The cumulative count keeps growing
// past the budget so rejections can be logged with the true size
// observed. Counters hold per-stream state only and must never be
// shared across concurrent streams.
package limitio

import (
	"fmt"
	"io"

	"go.uber.org/atomic"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/errors"
)

// ErrPayloadTooLarge is the sentinel matched by errors.Is on any limit
// rejection produced by this package. The transport layer maps it to
// its 413-equivalent response.
var ErrPayloadTooLarge = errors.New("payload too large")

// LimitExceededError reports a stream aborted over its byte budget.
type LimitExceededError struct {
	// Op names the operation for error messages, e.g. "push"
	Op string

	// Limit is the configured byte budget
	Limit int64

	// Received is the true cumulative number of bytes observed at the
	// moment of rejection; it may exceed Limit
	Received int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s: received %d bytes, exceeding the %d byte limit", e.Op, e.Received, e.Limit)
}

// Unwrap ties the typed error to the ErrPayloadTooLarge sentinel
func (e *LimitExceededError) Unwrap() error {
	return ErrPayloadTooLarge
}

// Option is a functor to pass optional parameters to a counter
type Option func(*counter)

// OnLimitExceeded registers a callback fired once, at the moment the
// budget is first exceeded, with the over-budget byte count. The
// collaborating transport uses it to tear the connection down rather
// than keep reading bytes.
func OnLimitExceeded(callback func(received int64)) Option {
	return func(c *counter) {
		c.onLimit = callback
	}
}

type counter struct {
	op       string
	limit    int64
	received atomic.Int64
	fired    atomic.Bool
	onLimit  func(int64)
}

// BytesReceived reports the true cumulative byte count observed so far,
// including bytes past the budget.
func (c *counter) BytesReceived() int64 {
	return c.received.Load()
}

// observe accounts for n more bytes and returns the terminal error when
// the budget is exceeded.
func (c *counter) observe(n int) error {
	total := c.received.Add(int64(n))
	if total <= c.limit {
		return nil
	}
	if c.fired.CompareAndSwap(false, true) && c.onLimit != nil {
		c.onLimit(total)
	}
	return &LimitExceededError{Op: c.op, Limit: c.limit, Received: total}
}

// Reader bounds the bytes delivered by an underlying reader.
type Reader struct {
	counter
	r   io.Reader
	err error
}

// NewReader wraps a reader with a byte budget. The op string names the
// guarded operation in error messages.
func NewReader(r io.Reader, op string, limit int64, opts ...Option) *Reader {
	br := &Reader{r: r}
	br.op = op
	br.limit = limit
	for _, apply := range opts {
		apply(&br.counter)
	}
	return br
}

// Read forwards a chunk from the underlying reader while the budget
// holds. The chunk that crosses the budget is counted but not
// delivered, and every subsequent Read returns the same terminal error.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err := r.r.Read(p)
	if n > 0 {
		if lerr := r.observe(n); lerr != nil {
			r.err = lerr
			return 0, r.err
		}
	}
	return n, err
}

// Writer bounds the bytes forwarded to an underlying writer.
type Writer struct {
	counter
	w   io.Writer
	err error
}

// NewWriter wraps a writer with a byte budget.
func NewWriter(w io.Writer, op string, limit int64, opts ...Option) *Writer {
	bw := &Writer{w: w}
	bw.op = op
	bw.limit = limit
	for _, apply := range opts {
		apply(&bw.counter)
	}
	return bw
}

// Write counts the chunk, then forwards it only while the budget holds.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if lerr := w.observe(len(p)); lerr != nil {
		w.err = lerr
		return 0, w.err
	}
	return w.w.Write(p)
}
