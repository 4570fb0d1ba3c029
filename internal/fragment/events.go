// SPDX-License-Identifier: MIT

package fragment

import "net/http"

// Event is one step of a fragment's lifecycle.
type Event interface {
	isEvent()
}

// StartEvent is emitted when the fetch begins.
type StartEvent struct{}

// ResponseEvent is emitted once upstream response headers arrived. For a
// redirected primary fragment Header only carries Location.
type ResponseEvent struct {
	StatusCode int
	Header     http.Header
}

// EndEvent is emitted after the body was streamed completely.
type EndEvent struct {
	ContentLength int64
}

// ErrorEvent is emitted when the fetch or the body failed.
type ErrorEvent struct {
	Err error
}

// TimeoutEvent is emitted when no response headers arrived in time.
type TimeoutEvent struct{}

func (StartEvent) isEvent()    {}
func (ResponseEvent) isEvent() {}
func (EndEvent) isEvent()      {}
func (ErrorEvent) isEvent()    {}
func (TimeoutEvent) isEvent()  {}
