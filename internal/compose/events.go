// SPDX-License-Identifier: MIT

package compose

import (
	"net/http"

	"github.com/ManuGH/pagestream/internal/fragment"
	"github.com/ManuGH/pagestream/internal/tokenizer"
)

// Event is a request lifecycle event. Every event carries the request it
// belongs to; fragment events also carry the originating fragment.
type Event interface {
	Name() string
	HTTPRequest() *http.Request
}

// Meta is embedded in every event.
type Meta struct {
	Request *http.Request
}

// HTTPRequest implements Event.
func (m Meta) HTTPRequest() *http.Request { return m.Request }

// StartEvent is emitted when a request is accepted.
type StartEvent struct {
	Meta
}

// ContextErrorEvent reports a failed context fetch; rendering continues with
// an empty context.
type ContextErrorEvent struct {
	Meta
	Err error
}

// TemplateErrorEvent reports a failed template fetch or rewrite.
type TemplateErrorEvent struct {
	Meta
	Err error
}

// ParseErrorEvent reports a recoverable diagnostic about the template markup.
type ParseErrorEvent struct {
	Meta
	Err *tokenizer.ParseError
}

// ResponseEvent is emitted when response headers are committed for a page
// that is going to be streamed.
type ResponseEvent struct {
	Meta
	StatusCode int
	Header     http.Header
}

// PrimaryErrorEvent reports that the primary fragment failed or timed out.
type PrimaryErrorEvent struct {
	Meta
	Fragment *fragment.Fragment
	Err      error
}

// EndEvent is emitted once the page was streamed completely.
type EndEvent struct {
	Meta
	ContentLength int64
}

// FragmentStartEvent is emitted when a fragment fetch begins.
type FragmentStartEvent struct {
	Meta
	Fragment *fragment.Fragment
}

// FragmentResponseEvent is emitted when a fragment's response headers arrive.
type FragmentResponseEvent struct {
	Meta
	Fragment   *fragment.Fragment
	StatusCode int
	Header     http.Header
}

// FragmentEndEvent is emitted when a fragment body was streamed completely.
type FragmentEndEvent struct {
	Meta
	Fragment      *fragment.Fragment
	ContentLength int64
}

// FragmentErrorEvent reports a failed fragment.
type FragmentErrorEvent struct {
	Meta
	Fragment *fragment.Fragment
	Err      error
}

// FragmentTimeoutEvent reports a fragment that did not answer in time.
type FragmentTimeoutEvent struct {
	Meta
	Fragment *fragment.Fragment
}

func (StartEvent) Name() string            { return "start" }
func (ContextErrorEvent) Name() string     { return "context:error" }
func (TemplateErrorEvent) Name() string    { return "template:error" }
func (ParseErrorEvent) Name() string       { return "template:parse_error" }
func (ResponseEvent) Name() string         { return "response" }
func (PrimaryErrorEvent) Name() string     { return "primary:error" }
func (EndEvent) Name() string              { return "end" }
func (FragmentStartEvent) Name() string    { return "fragment:start" }
func (FragmentResponseEvent) Name() string { return "fragment:response" }
func (FragmentEndEvent) Name() string      { return "fragment:end" }
func (FragmentErrorEvent) Name() string    { return "fragment:error" }
func (FragmentTimeoutEvent) Name() string  { return "fragment:timeout" }
