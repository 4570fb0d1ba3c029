// SPDX-License-Identifier: MIT

// Package fragment fetches one independently rendered region of a page and
// exposes its body as a stream plus a sequence of lifecycle events.
package fragment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/pagestream/internal/tokenizer"
)

var (
	// ErrUpstreamStatus reports a 5xx answer from the fragment source.
	ErrUpstreamStatus = errors.New("fragment: upstream server error")
	// ErrTimeout reports that no response headers arrived in time.
	ErrTimeout = errors.New("fragment: timed out waiting for response")
	// ErrNoSource reports a fragment tag without a src.
	ErrNoSource = errors.New("fragment: missing src")
)

// State is the fetch state of a fragment.
type State int

// Fetch states. A fragment moves from Created to Fetching and ends in one of
// the remaining states.
const (
	Created State = iota
	Fetching
	Responded
	Redirected
	Errored
	TimedOut
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Fetching:
		return "fetching"
	case Responded:
		return "responded"
	case Redirected:
		return "redirected"
	case Errored:
		return "errored"
	case TimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configure a fragment beyond its tag attributes.
type Options struct {
	// Index is the document-order ordinal of the fragment tag.
	Index int
	// Primary is granted by the caller to at most one fragment per page.
	Primary bool
	// ForceSmartPipe turns every non-primary fragment async.
	ForceSmartPipe bool
	// CDNURL rewrites stylesheet URLs announced by the fragment.
	CDNURL func(string) string
	// Fetcher retrieves the fragment; nil uses NewHTTPFetcher(nil).
	Fetcher Fetcher
}

// Fragment is one fragment tag occurrence. Subscribe before calling Fetch.
type Fragment struct {
	ID      string
	Src     string
	Index   int
	Primary bool
	Async   bool
	Public  bool
	Timeout time.Duration
	Tag     *tokenizer.Tag

	fetcher Fetcher
	cdnURL  func(string) string

	pr   *io.PipeReader
	pw   *io.PipeWriter
	once sync.Once

	mu          sync.Mutex
	state       State
	subscribers []func(Event)
}

// New creates a fragment for tag.
func New(tag *tokenizer.Tag, attrs Attributes, opts Options) *Fragment {
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(nil)
	}
	cdnURL := opts.CDNURL
	if cdnURL == nil {
		cdnURL = func(u string) string { return u }
	}
	timeout := attrs.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	pr, pw := io.Pipe()
	return &Fragment{
		ID:      attrs.ID,
		Src:     attrs.Src,
		Index:   opts.Index,
		Primary: opts.Primary,
		Async:   !opts.Primary && (attrs.Async || opts.ForceSmartPipe),
		Public:  attrs.Public,
		Timeout: timeout,
		Tag:     tag,
		fetcher: fetcher,
		cdnURL:  cdnURL,
		pr:      pr,
		pw:      pw,
	}
}

// Subscribe registers fn for every later event. Events are delivered one at a
// time from the fetch goroutine.
func (f *Fragment) Subscribe(fn func(Event)) {
	f.mu.Lock()
	f.subscribers = append(f.subscribers, fn)
	f.mu.Unlock()
}

// State reports the current fetch state.
func (f *Fragment) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// AsyncStream is the content of an async fragment, nil for blocking ones.
func (f *Fragment) AsyncStream() io.Reader {
	if !f.Async {
		return nil
	}
	return f.pr
}

// Fetch starts the retrieval with the given request headers and returns the
// stream to splice in place of the tag. Async fragments return an empty stream;
// their content is read from AsyncStream. Only the first call fetches.
//
// Fetch does not bind the retrieval to the page: ctx should outlive the
// response so that a fragment is allowed to run to completion.
func (f *Fragment) Fetch(ctx context.Context, header http.Header) io.Reader {
	f.once.Do(func() {
		f.setState(Fetching)
		if f.Public {
			header = nil
		}
		go f.run(ctx, header)
	})
	if f.Async {
		return bytes.NewReader(nil)
	}
	return f.pr
}

func (f *Fragment) run(ctx context.Context, header http.Header) {
	f.emit(StartEvent{})

	if f.Src == "" {
		f.fail(ErrNoSource)
		return
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	timer := time.AfterFunc(f.Timeout, func() { cancel(ErrTimeout) })

	resp, err := f.fetcher.Fetch(ctx, f.Src, header)
	if !timer.Stop() {
		if resp != nil {
			_ = resp.Body.Close()
		}
		f.timeout()
		return
	}
	if err != nil {
		f.fail(err)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		f.fail(fmt.Errorf("%w: %s answered %d", ErrUpstreamStatus, f.Src, resp.StatusCode))
	case f.Primary && isRedirect(resp.StatusCode):
		f.setState(Redirected)
		f.emit(ResponseEvent{
			StatusCode: resp.StatusCode,
			Header:     http.Header{"Location": {resp.Header.Get("Location")}},
		})
		_ = f.pw.Close()
	default:
		f.setState(Responded)
		f.emit(ResponseEvent{StatusCode: resp.StatusCode, Header: resp.Header})
		f.stream(resp)
	}
}

func (f *Fragment) stream(resp *http.Response) {
	cw := &countingWriter{w: f.pw}
	if links := stylesheets(resp.Header.Values("Link")); len(links) > 0 {
		var b strings.Builder
		for _, href := range links {
			fmt.Fprintf(&b, `<link rel="stylesheet" href="%s">`, html.EscapeString(f.cdnURL(href)))
		}
		if _, err := io.WriteString(cw, b.String()); err != nil {
			return
		}
	}

	body := &errReader{r: resp.Body}
	if _, err := io.Copy(cw, body); err != nil {
		if body.err != nil {
			f.fail(fmt.Errorf("read %s: %w", f.Src, body.err))
		}
		// Otherwise the page stopped reading; nothing is waiting for us.
		return
	}
	f.emit(EndEvent{ContentLength: cw.n})
	_ = f.pw.Close()
}

// fail ends the fragment with err. A primary fragment's stream fails with it;
// every other fragment ends cleanly so the page keeps rendering.
func (f *Fragment) fail(err error) {
	f.setState(Errored)
	f.emit(ErrorEvent{Err: err})
	f.closeStream(err)
}

func (f *Fragment) timeout() {
	f.setState(TimedOut)
	f.emit(TimeoutEvent{})
	f.closeStream(ErrTimeout)
}

func (f *Fragment) closeStream(err error) {
	if f.Primary {
		_ = f.pw.CloseWithError(err)
		return
	}
	_ = f.pw.Close()
}

func (f *Fragment) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Fragment) emit(ev Event) {
	f.mu.Lock()
	subs := slices.Clone(f.subscribers)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func isRedirect(code int) bool {
	return code >= http.StatusMultipleChoices && code < http.StatusBadRequest
}

// stylesheets extracts rel=stylesheet targets from Link header values.
func stylesheets(values []string) []string {
	var out []string
	for _, v := range values {
		for _, link := range strings.Split(v, ",") {
			link = strings.TrimSpace(link)
			end := strings.IndexByte(link, '>')
			if !strings.HasPrefix(link, "<") || end < 0 {
				continue
			}
			target := link[1:end]
			for _, param := range strings.Split(link[end+1:], ";") {
				key, val, ok := strings.Cut(strings.TrimSpace(param), "=")
				if ok && strings.EqualFold(key, "rel") && strings.EqualFold(strings.Trim(val, `"`), "stylesheet") {
					out = append(out, target)
					break
				}
			}
		}
	}
	return out
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// errReader remembers the first non-EOF read error so copy failures can be
// attributed to the upstream or to the consumer.
type errReader struct {
	r   io.Reader
	err error
}

func (e *errReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && e.err == nil {
		e.err = err
	}
	return n, err
}
