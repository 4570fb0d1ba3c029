// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"io"
	"sync/atomic"
)

// Counter passes bytes through unchanged and counts them. OnEnd is called with
// the total once the input is exhausted without error.
type Counter struct {
	n     atomic.Int64
	OnEnd func(total int64)
}

// Name implements Stage.
func (c *Counter) Name() string { return "content-length" }

// Backpressure implements Stage.
func (c *Counter) Backpressure() Backpressure { return Pull }

// Count returns the number of bytes passed so far.
func (c *Counter) Count() int64 { return c.n.Load() }

// Run implements Stage.
func (c *Counter) Run(_ context.Context, in io.Reader, out io.Writer) error {
	if _, err := io.Copy(&countingWriter{w: out, n: &c.n}, in); err != nil {
		return err
	}
	if c.OnEnd != nil {
		c.OnEnd(c.n.Load())
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n *atomic.Int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n.Add(int64(n))
	return n, err
}
