package resource

import (
	"context"
	"io"
)

// Writer returns w throttled by the I/O limit. Without a limit w is
// returned as is.
func (c *Controller) Writer(ctx context.Context, w io.Writer) io.Writer {
	if c == nil || c.ioLimiter == nil {
		return w
	}

	return &throttledWriter{ctx: ctx, w: w, c: c}
}

// Reader returns r throttled by the I/O limit. Without a limit r is
// returned as is.
func (c *Controller) Reader(ctx context.Context, r io.Reader) io.Reader {
	if c == nil || c.ioLimiter == nil {
		return r
	}

	return &throttledReader{ctx: ctx, r: r, c: c}
}

type throttledWriter struct {
	ctx context.Context
	w   io.Writer
	c   *Controller
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	if err := t.c.AcquireIO(t.ctx, len(p)); err != nil {
		return 0, err
	}

	return t.w.Write(p)
}

type throttledReader struct {
	ctx context.Context
	r   io.Reader
	c   *Controller
}

// Read charges the bytes actually read.
func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		if lerr := t.c.AcquireIO(t.ctx, n); lerr != nil {
			return n, lerr
		}
	}

	return n, err
}
