// SPDX-License-Identifier: MIT

// Package stringifier turns a tokenized template back into HTML. Literal runs
// are copied as-is and every special tag, closing tag and placeholder is handed
// to a visitor that may splice in a stream of bytes instead.
package stringifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/ManuGH/pagestream/internal/bigpipe"
	"github.com/ManuGH/pagestream/internal/pipeline"
	"github.com/ManuGH/pagestream/internal/tokenizer"
)

// Substitute is what the visitor puts in place of an item. The zero value
// passes the original markup through.
type Substitute struct {
	// Stream is spliced into the output at the item's position.
	Stream io.Reader
	// Tag is serialized instead of the original tag.
	Tag *tokenizer.Tag
}

// Empty drops the item from the output.
func Empty() Substitute {
	return Substitute{Stream: bytes.NewReader(nil)}
}

// Bytes splices b into the output.
func Bytes(b []byte) Substitute {
	return Substitute{Stream: bytes.NewReader(b)}
}

// Visitor is called once per special tag, closing tag and placeholder.
type Visitor func(item tokenizer.Item) (Substitute, error)

// Stringifier rewrites one template. It is a pipeline.Stage: the template is
// tokenized eagerly in the background, so every visitor call (and with it every
// fragment fetch) happens as early as possible, while substitutes are drained
// in document order at the pace of the downstream stage.
//
// A Stringifier runs once.
type Stringifier struct {
	tok     *tokenizer.Tokenizer
	visit   Visitor
	queue   *bigpipe.Stream
	aborted atomic.Bool

	// OnFinish is called after the whole template was tokenized.
	OnFinish func()
	// OnError is called when the template cannot be read or the visitor fails.
	OnError func(error)
	// OnParseError is called for every recoverable tokenizer diagnostic.
	OnParseError func(*tokenizer.ParseError)
}

// New returns a Stringifier using tok to scan and visit to substitute.
func New(tok *tokenizer.Tokenizer, visit Visitor) *Stringifier {
	return &Stringifier{
		tok:   tok,
		visit: visit,
		queue: bigpipe.New(),
	}
}

// Name implements pipeline.Stage.
func (s *Stringifier) Name() string { return "stringifier" }

// Backpressure implements pipeline.Stage.
func (s *Stringifier) Backpressure() pipeline.Backpressure { return pipeline.Eager }

// Run implements pipeline.Stage.
func (s *Stringifier) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	stop := context.AfterFunc(ctx, func() {
		s.abort(context.Cause(ctx))
	})
	defer stop()

	rewritten := make(chan error, 1)
	go func() {
		rewritten <- s.rewrite(in)
	}()

	_, copyErr := io.Copy(out, s.queue)
	if copyErr != nil {
		s.abort(copyErr)
	}
	if err := <-rewritten; err != nil {
		return err
	}
	return copyErr
}

func (s *Stringifier) abort(err error) {
	s.aborted.Store(true)
	_ = s.queue.CloseWithError(err)
}

func (s *Stringifier) rewrite(in io.Reader) error {
	if err := s.tok.Tokenize(in, s.handle); err != nil {
		if s.aborted.Load() {
			return nil
		}
		err = fmt.Errorf("rewrite template: %w", err)
		_ = s.queue.CloseWithError(err)
		if s.OnError != nil {
			s.OnError(err)
		}
		return err
	}
	s.queue.End()
	if s.OnFinish != nil {
		s.OnFinish()
	}
	return nil
}

func (s *Stringifier) handle(item tokenizer.Item) error {
	switch it := item.(type) {
	case tokenizer.Literal:
		return s.queue.Write(bytes.NewReader(it))
	case *tokenizer.ParseError:
		if s.OnParseError != nil {
			s.OnParseError(it)
		}
		return nil
	}

	sub, err := s.visit(item)
	if err != nil {
		return fmt.Errorf("visit: %w", err)
	}
	switch {
	case sub.Stream != nil:
		return s.queue.Write(sub.Stream)
	case sub.Tag != nil:
		return s.queue.Write(strings.NewReader(sub.Tag.String()))
	}

	switch it := item.(type) {
	case *tokenizer.Tag:
		return s.queue.Write(strings.NewReader(it.String()))
	case *tokenizer.ClosingTag:
		return s.queue.Write(strings.NewReader(it.String()))
	case tokenizer.Placeholder:
		return nil
	}
	return errors.New("visit: unknown item type")
}
