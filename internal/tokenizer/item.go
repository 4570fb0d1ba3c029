// SPDX-License-Identifier: MIT

package tokenizer

import (
	"bytes"
	"fmt"
	"html"
	"sort"
)

// Item is one element of the tokenized stream. The concrete types are
// Literal, *Tag, *ClosingTag, Placeholder and *ParseError.
type Item interface {
	isItem()
}

// Literal is a run of re-serialized HTML that needs no further processing.
type Literal []byte

// Tag is an opening tag whose name is in the special tag set.
type Tag struct {
	Name        string
	Attributes  map[string]string
	SelfClosing bool
}

// ClosingTag is the closing tag of a special tag.
type ClosingTag struct {
	Name string
}

// Placeholder is a synthetic splice point without content.
type Placeholder string

const (
	// PlaceholderPipe precedes the first tag of the insert-pipe-before set.
	PlaceholderPipe Placeholder = "pipe"
	// PlaceholderAsync marks where out-of-band fragment output is appended.
	PlaceholderAsync Placeholder = "async"
)

// ParseError is a recoverable diagnostic; tokenization continues after it.
type ParseError struct {
	Offset  int64
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at byte %d: %s", e.Offset, e.Message)
}

func (Literal) isItem()     {}
func (*Tag) isItem()        {}
func (*ClosingTag) isItem() {}
func (Placeholder) isItem() {}
func (*ParseError) isItem() {}

// Attr returns the attribute value and whether it was present.
func (t *Tag) Attr(key string) (string, bool) {
	v, ok := t.Attributes[key]
	return v, ok
}

// String serializes the tag as an opening tag. Attributes are written in
// lexical order so the output is stable.
func (t *Tag) String() string {
	keys := make([]string, 0, len(t.Attributes))
	for k := range t.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('<')
	buf.WriteString(t.Name)
	for _, k := range keys {
		writeAttr(&buf, k, t.Attributes[k])
	}
	buf.WriteByte('>')
	return buf.String()
}

// String serializes the closing tag.
func (c *ClosingTag) String() string {
	return "</" + c.Name + ">"
}

func writeAttr(buf *bytes.Buffer, key, val string) {
	buf.WriteByte(' ')
	buf.WriteString(key)
	buf.WriteString(`="`)
	buf.WriteString(html.EscapeString(val))
	buf.WriteByte('"')
}
