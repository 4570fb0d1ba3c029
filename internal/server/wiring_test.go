// SPDX-License-Identifier: MIT

package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ManuGH/pagestream/internal/config"
	platformnet "github.com/ManuGH/pagestream/internal/platform/net"
)

type countingFetcher struct{ calls int }

func (c *countingFetcher) Fetch(context.Context, string, http.Header) (*http.Response, error) {
	c.calls++
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func TestLimitedFetcher(t *testing.T) {
	next := &countingFetcher{}
	f := &limitedFetcher{limiter: rate.NewLimiter(rate.Every(time.Hour), 1), next: next}

	resp, err := f.Fetch(context.Background(), "http://a.example", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, "http://a.example", nil)
	assert.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestPolicyFetcher(t *testing.T) {
	policy, err := platformnet.NewSourcePolicy([]string{"a.example"}, nil)
	require.NoError(t, err)
	next := &countingFetcher{}
	f := &policyFetcher{policy: policy, next: next}

	_, err = f.Fetch(context.Background(), "http://b.example/x", nil)
	assert.ErrorIs(t, err, platformnet.ErrSourceNotAllowed)

	resp, err := f.Fetch(context.Background(), "http://a.example/x", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, 1, next.calls)
}

func TestNewTemplateStore_NoTTLDisablesCache(t *testing.T) {
	_, c := newTemplateStore(config.TemplatesConfig{Dir: t.TempDir()}, nil)
	c.Set("k", []byte("v"), time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)
}
