// SPDX-License-Identifier: MIT

// Package bigpipe concatenates a growing list of upstream readers into a single
// stream. Upstreams are drained strictly in registration order, one at a time,
// so the consumer's read rate is the only thing pulling bytes from the current
// upstream and nothing is read ahead.
package bigpipe

import (
	"errors"
	"io"
	"sync"
)

// ErrEnded is returned by Write after End was called.
var ErrEnded = errors.New("bigpipe: write after end")

// Stream is an append-only, ordered multiplexer. It is safe for concurrent use
// by one reader and any number of writers.
type Stream struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []io.Reader
	ended  bool
	closed error
}

// New returns an empty stream.
func New() *Stream {
	s := &Stream{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Write registers r to be drained after every previously registered reader.
// If the stream is closed, r is closed (when it is an io.Closer) so its
// producer is released.
func (s *Stream) Write(r io.Reader) error {
	s.mu.Lock()
	if s.closed != nil {
		err := s.closed
		s.mu.Unlock()
		closeReader(r, err)
		return err
	}
	if s.ended {
		s.mu.Unlock()
		return ErrEnded
	}
	s.queue = append(s.queue, r)
	s.mu.Unlock()
	s.cond.Broadcast()
	return nil
}

// End signals that no more readers will be registered. Read returns io.EOF
// once every registered reader is drained.
func (s *Stream) End() {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		head, err := s.head()
		if err != nil {
			return 0, err
		}
		n, err := head.Read(p)
		if errors.Is(err, io.EOF) {
			s.advance()
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			if cerr := s.closeErr(); cerr != nil {
				return n, cerr
			}
			return n, err
		}
		if n > 0 {
			return n, nil
		}
	}
}

// Close tears the stream down with io.ErrClosedPipe.
func (s *Stream) Close() error {
	return s.CloseWithError(nil)
}

// CloseWithError tears the stream down. Pending and subsequent reads return
// err (io.ErrClosedPipe when nil) and every undrained upstream that is an
// io.Closer is closed.
func (s *Stream) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	s.mu.Lock()
	if s.closed != nil {
		s.mu.Unlock()
		return nil
	}
	s.closed = err
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()
	s.cond.Broadcast()

	for _, r := range pending {
		closeReader(r, err)
	}
	return nil
}

func (s *Stream) closeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// head blocks until a reader is available, the stream is drained, or it is closed.
func (s *Stream) head() (io.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.ended && s.closed == nil {
		s.cond.Wait()
	}
	if s.closed != nil {
		return nil, s.closed
	}
	if len(s.queue) == 0 {
		return nil, io.EOF
	}
	return s.queue[0], nil
}

// advance drops the drained head. Only Read pops, so the head cannot change
// underneath it; CloseWithError may have emptied the queue already.
func (s *Stream) advance() {
	s.mu.Lock()
	if len(s.queue) > 0 {
		s.queue[0] = nil
		s.queue = s.queue[1:]
	}
	s.mu.Unlock()
}

func closeReader(r io.Reader, err error) {
	switch c := r.(type) {
	case interface{ CloseWithError(error) error }:
		_ = c.CloseWithError(err)
	case io.Closer:
		_ = c.Close()
	}
}
