// SPDX-License-Identifier: MIT

package fragment

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ManuGH/pagestream/internal/platform/httpx"
)

// Fetcher retrieves a fragment from its source.
type Fetcher interface {
	Fetch(ctx context.Context, src string, header http.Header) (*http.Response, error)
}

// HTTPFetcher fetches fragments with a plain GET.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a fetcher using client, or a streaming httpx client
// when client is nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = httpx.NewStreamingClient(DefaultTimeout)
	}
	return &HTTPFetcher{client: client}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, src string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", src, err)
	}
	if header != nil {
		req.Header = header.Clone()
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	return resp, nil
}
