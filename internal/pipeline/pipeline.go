// SPDX-License-Identifier: MIT

// Package pipeline composes byte-stream transform stages. Each stage declares
// how it treats back-pressure, and adjacent stages are connected with
// synchronous pipes so a slow consumer stalls its producer.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// Backpressure describes how a stage consumes its input relative to demand
// on its output.
type Backpressure int

const (
	// Pull stages read input only as fast as their output is consumed.
	Pull Backpressure = iota
	// Eager stages consume input ahead of output demand and queue internally.
	Eager
)

func (b Backpressure) String() string {
	switch b {
	case Pull:
		return "pull"
	case Eager:
		return "eager"
	default:
		return fmt.Sprintf("backpressure(%d)", int(b))
	}
}

// Stage transforms in into out. Run must return once in is exhausted or
// either side fails; it must not close out, the pipeline does that.
type Stage interface {
	Name() string
	Backpressure() Backpressure
	Run(ctx context.Context, in io.Reader, out io.Writer) error
}

// Func adapts a function to a Stage.
func Func(name string, bp Backpressure, fn func(ctx context.Context, in io.Reader, out io.Writer) error) Stage {
	return funcStage{name: name, bp: bp, fn: fn}
}

type funcStage struct {
	name string
	bp   Backpressure
	fn   func(ctx context.Context, in io.Reader, out io.Writer) error
}

func (f funcStage) Name() string { return f.name }

func (f funcStage) Backpressure() Backpressure { return f.bp }

func (f funcStage) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	return f.fn(ctx, in, out)
}

// Builder collects stages in order.
type Builder struct {
	stages []Stage
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{}
}

// Then appends a stage.
func (b *Builder) Then(s Stage) *Builder {
	b.stages = append(b.stages, s)
	return b
}

// Stages returns the configured stages in order.
func (b *Builder) Stages() []Stage {
	return append([]Stage(nil), b.stages...)
}

// Pipeline is a running chain of stages.
type Pipeline struct {
	out      io.Reader
	group    *errgroup.Group
	cancel   context.CancelCauseFunc
	stop     func() bool
	released chan struct{}
	src      io.Reader
}

// Start runs every stage in its own goroutine, feeding src into the first.
// The pipeline owns src: it is closed when the pipeline stops if it is an
// io.Closer. Cancelling ctx (or Cancel) closes every pipe with the cause.
func (b *Builder) Start(ctx context.Context, src io.Reader) *Pipeline {
	ctx, cancel := context.WithCancelCause(ctx)
	g, gctx := errgroup.WithContext(ctx)

	var pipes []*io.PipeWriter
	in := src
	for _, st := range b.stages {
		pr, pw := io.Pipe()
		pipes = append(pipes, pw)

		stage, input := st, in
		g.Go(func() error {
			err := stage.Run(gctx, input, pw)
			if err != nil {
				err = fmt.Errorf("stage %s: %w", stage.Name(), err)
			}
			_ = pw.CloseWithError(err)
			if pin, ok := input.(*io.PipeReader); ok {
				_ = pin.CloseWithError(closeCause(err))
			}
			return err
		})
		in = pr
	}

	p := &Pipeline{out: in, group: g, cancel: cancel, released: make(chan struct{}), src: src}
	p.stop = context.AfterFunc(gctx, func() {
		defer close(p.released)
		cause := context.Cause(gctx)
		// Closing the write side unblocks both ends and hands cause to the
		// reader; the first close of a pipe wins, so writers go before src.
		for _, pw := range pipes {
			_ = pw.CloseWithError(cause)
		}
		closeReader(src, cause)
	})
	return p
}

// Output is the read side of the last stage.
func (p *Pipeline) Output() io.Reader {
	return p.out
}

// Cancel aborts every stage with cause.
func (p *Pipeline) Cancel(cause error) {
	p.cancel(cause)
}

// Wait blocks until every stage returned and reports the first stage error.
// It may run concurrently with the consumer of Output; on success it returns
// only once Output was read to the end.
func (p *Pipeline) Wait() error {
	err := p.group.Wait()
	if p.stop() {
		closeReader(p.src, io.ErrClosedPipe)
	} else {
		<-p.released
	}
	p.cancel(nil)
	return err
}

func closeReader(r io.Reader, cause error) {
	switch c := r.(type) {
	case interface{ CloseWithError(error) error }:
		_ = c.CloseWithError(cause)
	case io.Closer:
		_ = c.Close()
	}
}

func closeCause(err error) error {
	if err == nil {
		return io.ErrClosedPipe
	}
	return err
}
