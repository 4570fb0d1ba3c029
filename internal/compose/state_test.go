// SPDX-License-Identifier: MIT

package compose

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestState_PrimaryClaimBlocksFinishCommit(t *testing.T) {
	s := newRequestState()
	assert.True(t, s.claimPrimary("main"))
	assert.False(t, s.claimPrimary("other"), "first primary in document order wins")

	id, ok := s.primary()
	assert.True(t, ok)
	assert.Equal(t, "main", id)

	assert.False(t, s.commitFromFinish())
	assert.True(t, s.commitForce())
	assert.False(t, s.commitForce())
}

func TestRequestState_FinishCommitsOnce(t *testing.T) {
	s := newRequestState()
	assert.True(t, s.commitFromFinish())
	assert.False(t, s.commitFromFinish())
	assert.False(t, s.commitForce())
}

func TestRequestState_ConcurrentCommitHasOneWinner(t *testing.T) {
	s := newRequestState()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			won := false
			if i%2 == 0 {
				won = s.commitForce()
			} else {
				won = s.commitFromFinish()
			}
			if won {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestRequestState_IndexFollowsDocumentOrder(t *testing.T) {
	s := newRequestState()
	assert.Equal(t, 0, s.nextIndex())
	assert.Equal(t, 1, s.nextIndex())
	assert.Equal(t, 2, s.nextIndex())
}
