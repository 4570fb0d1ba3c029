// SPDX-License-Identifier: MIT

package compose

import (
	"net/http"
	"sync"
)

// commit is the single header decision of a request.
type commit struct {
	status int
	header http.Header
	// stream reports whether the rendered page follows the headers.
	stream bool
}

// requestState is owned by one request. Fragment goroutines, the rewriter
// and the handler race to commit headers; the first one wins.
type requestState struct {
	mu                  sync.Mutex
	shouldCommitHeaders bool
	committed           bool
	primaryClaimed      bool
	primaryID           string
	index               int
}

func newRequestState() *requestState {
	return &requestState{shouldCommitHeaders: true}
}

// nextIndex hands out document-order ordinals to fragment tags.
func (s *requestState) nextIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index
	s.index++
	return i
}

// claimPrimary grants the primary role to the first caller only. From then
// on the end of the template no longer commits headers; the primary does.
func (s *requestState) claimPrimary(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.primaryClaimed {
		return false
	}
	s.primaryClaimed = true
	s.primaryID = id
	s.shouldCommitHeaders = false
	return true
}

// primary returns the id of the primary fragment, if any.
func (s *requestState) primary() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primaryID, s.primaryClaimed
}

// commitFromFinish commits unless a primary fragment took over or someone
// else committed already.
func (s *requestState) commitFromFinish() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.shouldCommitHeaders || s.committed {
		return false
	}
	s.shouldCommitHeaders = false
	s.committed = true
	return true
}

// commitForce commits unless someone else committed already. Primary
// responses and fatal errors use it.
func (s *requestState) commitForce() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.committed {
		return false
	}
	s.shouldCommitHeaders = false
	s.committed = true
	return true
}
