// SPDX-License-Identifier: MIT

package fragment

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/pagestream/internal/tokenizer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Idle keep-alive connections of the per-test transports.
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

// recorder collects fragment events in delivery order.
type recorder struct {
	mu     sync.Mutex
	events []Event
	done   chan struct{}
	once   sync.Once
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func (r *recorder) observe(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	switch ev.(type) {
	case EndEvent, ErrorEvent, TimeoutEvent:
		r.once.Do(func() { close(r.done) })
	}
}

func (r *recorder) wait(t *testing.T) []Event {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(3 * time.Second):
		t.Fatal("fragment never reached a terminal event")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func fragmentTag(attrs map[string]string) *tokenizer.Tag {
	return &tokenizer.Tag{Name: "fragment", Attributes: attrs}
}

func newFragment(t *testing.T, src string, extra map[string]string, opts Options) *Fragment {
	t.Helper()
	attrs := map[string]string{"id": "f1", "src": src}
	for k, v := range extra {
		attrs[k] = v
	}
	tag := fragmentTag(attrs)
	return New(tag, ParseAttributes(tag, nil), opts)
}

func TestParseAttributes(t *testing.T) {
	tag := fragmentTag(map[string]string{
		"id":      "header",
		"src":     "http://header.local",
		"async":   "",
		"primary": "false",
		"timeout": "1500",
	})

	got := ParseAttributes(tag, nil)
	assert.Equal(t, Attributes{
		ID:      "header",
		Src:     "http://header.local",
		Async:   true,
		Timeout: 1500 * time.Millisecond,
	}, got)
}

func TestParseAttributes_ContextOverridesTag(t *testing.T) {
	tag := fragmentTag(map[string]string{"id": "header", "src": "http://header.local"})
	ctx := Context{"header": {"src": "http://override.local", "primary": "true"}}

	got := ParseAttributes(tag, ctx)
	assert.Equal(t, "http://override.local", got.Src)
	assert.True(t, got.Primary)
}

func TestParseAttributes_Defaults(t *testing.T) {
	got := ParseAttributes(fragmentTag(map[string]string{"src": "http://a.local", "timeout": "soon"}), nil)
	assert.Equal(t, "http://a.local", got.ID, "id falls back to src")
	assert.Equal(t, DefaultTimeout, got.Timeout)
	assert.False(t, got.Async)
	assert.False(t, got.Public)
}

func TestFragment_StreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "de", r.Header.Get("Accept-Language"))
		_, _ = io.WriteString(w, "<p>ok</p>")
	}))
	defer srv.Close()

	f := newFragment(t, srv.URL, nil, Options{})
	rec := newRecorder()
	f.Subscribe(rec.observe)

	body, err := io.ReadAll(f.Fetch(context.Background(), http.Header{"Accept-Language": {"de"}}))
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", string(body))

	events := rec.wait(t)
	require.Len(t, events, 3)
	assert.Equal(t, StartEvent{}, events[0])
	assert.Equal(t, http.StatusOK, events[1].(ResponseEvent).StatusCode)
	assert.Equal(t, EndEvent{ContentLength: int64(len("<p>ok</p>"))}, events[2])
	assert.Equal(t, Responded, f.State())
}

func TestFragment_ServerErrorFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	}))
	defer srv.Close()

	f := newFragment(t, srv.URL, nil, Options{})
	rec := newRecorder()
	f.Subscribe(rec.observe)

	body, err := io.ReadAll(f.Fetch(context.Background(), nil))
	require.NoError(t, err, "non-primary failures end the stream cleanly")
	assert.Empty(t, body)

	events := rec.wait(t)
	errEv, ok := events[len(events)-1].(ErrorEvent)
	require.True(t, ok)
	assert.ErrorIs(t, errEv.Err, ErrUpstreamStatus)
	assert.Equal(t, Errored, f.State())
}

func TestFragment_PrimaryServerErrorFailsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFragment(t, srv.URL, nil, Options{Primary: true})
	_, err := io.ReadAll(f.Fetch(context.Background(), nil))
	assert.ErrorIs(t, err, ErrUpstreamStatus)
}

func TestFragment_PrimaryRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/login")
		w.Header().Set("Set-Cookie", "secret=1")
		w.WriteHeader(http.StatusFound)
		_, _ = io.WriteString(w, "redirect body")
	}))
	defer srv.Close()

	f := newFragment(t, srv.URL, nil, Options{Primary: true, Fetcher: NewHTTPFetcher(nil)})
	responses := make(chan ResponseEvent, 1)
	f.Subscribe(func(ev Event) {
		if r, ok := ev.(ResponseEvent); ok {
			responses <- r
		}
	})

	body, err := io.ReadAll(f.Fetch(context.Background(), nil))
	require.NoError(t, err)
	assert.Empty(t, body)

	response := <-responses
	assert.Equal(t, http.StatusFound, response.StatusCode)
	assert.Equal(t, http.Header{"Location": {"/login"}}, response.Header)
	assert.Equal(t, Redirected, f.State())
}

func TestFragment_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	f := newFragment(t, srv.URL, map[string]string{"timeout": "20"}, Options{})
	rec := newRecorder()
	f.Subscribe(rec.observe)

	body, err := io.ReadAll(f.Fetch(context.Background(), nil))
	require.NoError(t, err)
	assert.Empty(t, body)

	events := rec.wait(t)
	assert.Equal(t, TimeoutEvent{}, events[len(events)-1])
	assert.Equal(t, TimedOut, f.State())
}

func TestFragment_AsyncContentGoesToAsyncStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "later")
	}))
	defer srv.Close()

	f := newFragment(t, srv.URL, map[string]string{"async": ""}, Options{})
	require.True(t, f.Async)

	inline, err := io.ReadAll(f.Fetch(context.Background(), nil))
	require.NoError(t, err)
	assert.Empty(t, inline)

	async, err := io.ReadAll(f.AsyncStream())
	require.NoError(t, err)
	assert.Equal(t, "later", string(async))
}

func TestFragment_ForceSmartPipe(t *testing.T) {
	tag := fragmentTag(map[string]string{"id": "a", "src": "http://a.local"})
	attrs := ParseAttributes(tag, nil)

	assert.True(t, New(tag, attrs, Options{ForceSmartPipe: true}).Async)
	primary := New(tag, attrs, Options{ForceSmartPipe: true, Primary: true})
	assert.False(t, primary.Async)
	assert.Nil(t, primary.AsyncStream())
}

func TestFragment_PublicGetsNoHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Header.Get("Cookie"))
	}))
	defer srv.Close()

	f := newFragment(t, srv.URL, map[string]string{"public": ""}, Options{})
	body, err := io.ReadAll(f.Fetch(context.Background(), http.Header{"Cookie": {"session=1"}}))
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestFragment_StylesheetLinksUseCDN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Link", `<styles/a.css>; rel="stylesheet", <scripts/b.js>; rel="preload"`)
		_, _ = io.WriteString(w, "<p>x</p>")
	}))
	defer srv.Close()

	f := newFragment(t, srv.URL, nil, Options{
		CDNURL: func(u string) string { return "https://cdn.example/" + u },
	})
	body, err := io.ReadAll(f.Fetch(context.Background(), nil))
	require.NoError(t, err)
	assert.Equal(t, `<link rel="stylesheet" href="https://cdn.example/styles/a.css"><p>x</p>`, string(body))
}

func TestFragment_FetchesOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, "once")
	}))
	defer srv.Close()

	f := newFragment(t, srv.URL, nil, Options{})
	first := f.Fetch(context.Background(), nil)
	second := f.Fetch(context.Background(), nil)
	assert.Same(t, first, second)

	body, err := io.ReadAll(first)
	require.NoError(t, err)
	assert.Equal(t, "once", string(body))
	assert.EqualValues(t, 1, hits.Load())
}

func TestFragment_MissingSource(t *testing.T) {
	tag := fragmentTag(map[string]string{"id": "nowhere"})
	f := New(tag, ParseAttributes(tag, nil), Options{})
	rec := newRecorder()
	f.Subscribe(rec.observe)

	_, err := io.ReadAll(f.Fetch(context.Background(), nil))
	require.NoError(t, err)

	events := rec.wait(t)
	assert.ErrorIs(t, events[len(events)-1].(ErrorEvent).Err, ErrNoSource)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "timed_out", TimedOut.String())
	assert.Equal(t, "state(42)", State(42).String())
}
