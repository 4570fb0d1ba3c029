// SPDX-License-Identifier: MIT

// Package tokenizer scans raw HTML and splits it into literal byte runs,
// structured events for a configurable set of special tags, and synthetic
// placeholders at the pipe and async splice points.
//
// Tag-level scanning is delegated to golang.org/x/net/html. Everything that is
// not special is re-serialized into a literal buffer which is flushed right
// before each structured item, so literals and events keep document order.
package tokenizer

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html"
)

// voidTags never receive closing markup.
var voidTags = []string{
	"area", "base", "br", "col", "command", "embed", "hr", "img",
	"input", "keygen", "link", "meta", "param", "source", "track", "wbr",
}

// optionalEnd lists elements whose end tag HTML allows to be omitted.
// Leaving them open at end of input is not reported.
var optionalEnd = map[string]struct{}{
	"html": {}, "head": {}, "body": {}, "p": {}, "li": {}, "dt": {}, "dd": {},
	"option": {}, "optgroup": {}, "tr": {}, "td": {}, "th": {}, "thead": {},
	"tbody": {}, "tfoot": {}, "colgroup": {}, "caption": {}, "rb": {}, "rt": {}, "rp": {},
}

// Config selects which tags are surfaced as structured events.
type Config struct {
	// SpecialTags are emitted as *Tag / *ClosingTag instead of literal markup.
	SpecialTags []string
	// InsertPipeBeforeTags trigger a single pipe placeholder before the first match.
	InsertPipeBeforeTags []string
}

// Tokenizer is immutable after construction and safe for concurrent use;
// every Tokenize call keeps its own scan state.
type Tokenizer struct {
	special     map[string]struct{}
	pipeBefore  map[string]struct{}
	selfClosing map[string]struct{}
}

// New creates a Tokenizer for the given configuration.
func New(cfg Config) *Tokenizer {
	t := &Tokenizer{
		special:     toSet(cfg.SpecialTags),
		pipeBefore:  toSet(cfg.InsertPipeBeforeTags),
		selfClosing: toSet(voidTags),
	}
	for name := range t.special {
		t.selfClosing[name] = struct{}{}
	}
	return t
}

// IsSpecial reports whether name is surfaced as a structured event.
func (t *Tokenizer) IsSpecial(name string) bool {
	_, ok := t.special[name]
	return ok
}

// Tokenize reads r to the end and pushes items to emit in document order.
// Recoverable problems are pushed as *ParseError items. A read error from r or
// an error returned by emit stops tokenization and is returned.
func (t *Tokenizer) Tokenize(r io.Reader, emit func(Item) error) error {
	s := &scan{t: t, emit: emit}
	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		raw := z.Raw()
		offset := s.offset
		s.offset += int64(len(raw))

		var err error
		switch tt {
		case html.ErrorToken:
			if zerr := z.Err(); !errors.Is(zerr, io.EOF) {
				return fmt.Errorf("tokenize: %w", zerr)
			}
			if len(raw) > 0 {
				s.buf.Write(raw)
				if err := s.fail(offset, "unexpected end of input"); err != nil {
					return err
				}
			}
			return s.finish()
		case html.DoctypeToken:
			s.buf.WriteString("<!DOCTYPE html>")
		case html.TextToken, html.CommentToken:
			s.buf.Write(raw)
		case html.StartTagToken:
			err = s.open(z.Token(), false, offset)
		case html.SelfClosingTagToken:
			err = s.open(z.Token(), true, offset)
		case html.EndTagToken:
			name, _ := z.TagName()
			err = s.close(string(name), false, offset)
		}
		if err != nil {
			return err
		}
	}
}

// scan is the per-call state of Tokenize.
type scan struct {
	t            *Tokenizer
	emit         func(Item) error
	buf          bytes.Buffer
	stack        []string
	offset       int64
	pipeInserted bool
	closedBody   bool
}

func (s *scan) flush() error {
	if s.buf.Len() == 0 {
		return nil
	}
	lit := Literal(bytes.Clone(s.buf.Bytes()))
	s.buf.Reset()
	return s.emit(lit)
}

func (s *scan) push(item Item) error {
	if err := s.flush(); err != nil {
		return err
	}
	return s.emit(item)
}

func (s *scan) fail(offset int64, msg string) error {
	return s.emit(&ParseError{Offset: offset, Message: msg})
}

func (s *scan) open(tok html.Token, selfClosing bool, offset int64) error {
	name := tok.Data

	if !s.pipeInserted {
		if _, ok := s.t.pipeBefore[name]; ok {
			s.pipeInserted = true
			if err := s.push(PlaceholderPipe); err != nil {
				return err
			}
		}
	}

	if _, ok := s.t.special[name]; ok {
		attrs := make(map[string]string, len(tok.Attr))
		for _, a := range tok.Attr {
			if _, dup := attrs[a.Key]; !dup {
				attrs[a.Key] = a.Val
			}
		}
		if err := s.push(&Tag{Name: name, Attributes: attrs, SelfClosing: selfClosing}); err != nil {
			return err
		}
	} else {
		s.buf.WriteByte('<')
		s.buf.WriteString(name)
		for _, a := range tok.Attr {
			writeAttr(&s.buf, a.Key, a.Val)
		}
		s.buf.WriteByte('>')
		if _, void := s.t.selfClosing[name]; !void && !selfClosing {
			s.stack = append(s.stack, name)
		}
	}

	if selfClosing {
		return s.close(name, true, offset)
	}
	return nil
}

func (s *scan) close(name string, implicit bool, offset int64) error {
	if _, ok := s.t.special[name]; ok {
		if err := s.push(&ClosingTag{Name: name}); err != nil {
			return err
		}
	}
	if name == "body" && !s.closedBody {
		s.closedBody = true
		if err := s.push(PlaceholderAsync); err != nil {
			return err
		}
	}
	if _, ok := s.t.selfClosing[name]; ok {
		return nil
	}
	if !implicit && !s.pop(name) {
		if err := s.fail(offset, "unexpected closing tag </"+name+">"); err != nil {
			return err
		}
	}
	s.buf.WriteString("</")
	s.buf.WriteString(name)
	s.buf.WriteByte('>')
	return nil
}

// pop closes name and every element opened inside it.
func (s *scan) pop(name string) bool {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] == name {
			s.stack = s.stack[:i]
			return true
		}
	}
	return false
}

func (s *scan) finish() error {
	for _, name := range s.stack {
		if _, ok := optionalEnd[name]; ok {
			continue
		}
		if err := s.fail(s.offset, "unclosed element <"+name+">"); err != nil {
			return err
		}
	}
	s.stack = nil
	if err := s.flush(); err != nil {
		return err
	}
	if !s.closedBody {
		s.closedBody = true
		return s.emit(PlaceholderAsync)
	}
	return nil
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
