// SPDX-License-Identifier: MIT

// Package compose renders pages made of fragments. A page template is streamed
// through the tag rewriter, every fragment tag starts a concurrent fetch, and
// the result is written to the client in document order as soon as bytes are
// available. Response headers are committed exactly once per request, either
// when the template was fully tokenized or when the primary fragment answered.
package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/pagestream/internal/bigpipe"
	"github.com/ManuGH/pagestream/internal/fragment"
	xglog "github.com/ManuGH/pagestream/internal/log"
	"github.com/ManuGH/pagestream/internal/pipeline"
	"github.com/ManuGH/pagestream/internal/stringifier"
	"github.com/ManuGH/pagestream/internal/tokenizer"
)

// DefaultFragmentTag is the tag name used when Options.FragmentTag is empty.
const DefaultFragmentTag = "fragment"

var (
	// ErrNoTemplate is returned by the default template fetcher.
	ErrNoTemplate = errors.New("compose: no template fetcher configured")

	errAborted = errors.New("compose: response aborted")
)

// ContextFetcher returns per-fragment attribute overrides for a request.
type ContextFetcher func(ctx context.Context, r *http.Request) (fragment.Context, error)

// TemplateFetcher returns the page template for a request.
type TemplateFetcher func(ctx context.Context, r *http.Request) (io.ReadCloser, error)

// Options configure a Handler. Only FetchTemplate is required.
type Options struct {
	FetchContext  ContextFetcher
	FetchTemplate TemplateFetcher
	// Tokenizer must treat FragmentTag as special.
	Tokenizer *tokenizer.Tokenizer
	// FilterHeaders selects the request headers forwarded to fragments.
	FilterHeaders func(http.Header) http.Header
	CDNURL        func(string) string
	// HandleTag substitutes special tags other than FragmentTag and the pipe
	// placeholder.
	HandleTag   stringifier.Visitor
	FragmentTag string
	// ForceSmartPipe is consulted once per request.
	ForceSmartPipe func(*http.Request) bool
	Fetcher        fragment.Fetcher
	Observer       Observer
	Logger         *zerolog.Logger
}

// Handler composes pages. It is safe for concurrent use.
type Handler struct {
	opts Options
	log  zerolog.Logger
}

// New returns a Handler, filling unset options with defaults.
func New(opts Options) *Handler {
	if opts.FragmentTag == "" {
		opts.FragmentTag = DefaultFragmentTag
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = tokenizer.New(tokenizer.Config{SpecialTags: []string{opts.FragmentTag}})
	}
	if opts.FetchContext == nil {
		opts.FetchContext = func(context.Context, *http.Request) (fragment.Context, error) {
			return fragment.Context{}, nil
		}
	}
	if opts.FetchTemplate == nil {
		opts.FetchTemplate = func(context.Context, *http.Request) (io.ReadCloser, error) {
			return nil, ErrNoTemplate
		}
	}
	if opts.FilterHeaders == nil {
		opts.FilterHeaders = func(http.Header) http.Header { return http.Header{} }
	}
	if opts.CDNURL == nil {
		opts.CDNURL = func(u string) string { return u }
	}
	if opts.HandleTag == nil {
		opts.HandleTag = func(tokenizer.Item) (stringifier.Substitute, error) {
			return stringifier.Substitute{}, nil
		}
	}
	if opts.ForceSmartPipe == nil {
		opts.ForceSmartPipe = func(*http.Request) bool { return false }
	}
	if opts.Fetcher == nil {
		opts.Fetcher = fragment.NewHTTPFetcher(nil)
	}
	if opts.Observer == nil {
		opts.Observer = Observers()
	}

	l := xglog.Derive(func(c *zerolog.Context) {
		*c = c.Str(xglog.FieldComponent, "compose").Str("fragment_tag", opts.FragmentTag)
	})
	if opts.Logger != nil {
		l = *opts.Logger
	}
	return &Handler{opts: opts, log: l}
}

// ServeHTTP renders the page for r.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.opts.Observer.Observe(StartEvent{Meta: Meta{Request: r}})

	pageCtx, tmpl, err := h.fetch(r)
	if err != nil {
		h.opts.Observer.Observe(TemplateErrorEvent{Meta: Meta{Request: r}, Err: err})
		writeHeader(w, errorCommit("text/plain"))
		return
	}

	ctx, abort := context.WithCancelCause(r.Context())
	defer abort(nil)

	p := &page{
		h:              h,
		r:              r,
		log:            xglog.WithContext(r.Context(), h.log.With().Str(xglog.FieldPath, r.URL.Path).Logger()),
		state:          newRequestState(),
		pageCtx:        pageCtx,
		header:         h.opts.FilterHeaders(r.Header),
		fetchCtx:       context.WithoutCancel(r.Context()),
		forceSmartPipe: h.opts.ForceSmartPipe(r),
		async:          bigpipe.New(),
		commits:        make(chan commit, 1),
		abort:          abort,
	}

	rewriter := stringifier.New(h.opts.Tokenizer, p.visit)
	rewriter.OnFinish = p.finish
	rewriter.OnError = p.rewriteFailed
	rewriter.OnParseError = p.parseError
	counter := &pipeline.Counter{OnEnd: p.end}
	pl := pipeline.New().Then(rewriter).Then(counter).Start(ctx, tmpl)

	waited := make(chan error, 1)
	go func() {
		err := pl.Wait()
		if err != nil {
			p.pipelineFailed(err)
		}
		waited <- err
	}()

	select {
	case c := <-p.commits:
		writeHeader(w, c)
		if !c.stream {
			abort(errAborted)
			break
		}
		if err := copyFlushing(w, pl.Output()); err != nil {
			abort(err)
		}
	case <-ctx.Done():
	}

	err = <-waited
	// Async fragments that never got attached to the output are released.
	_ = p.async.CloseWithError(errAborted)
	if err != nil && !errors.Is(err, errAborted) {
		p.log.Debug().Err(err).Str(xglog.FieldEvent, "page.aborted").Msg("page stream stopped early")
	}
}

// fetch retrieves the context and the template concurrently. A context
// failure is reported and replaced with an empty context.
func (h *Handler) fetch(r *http.Request) (fragment.Context, io.ReadCloser, error) {
	var (
		g       errgroup.Group
		pageCtx fragment.Context
		tmpl    io.ReadCloser
	)
	g.Go(func() error {
		c, err := h.opts.FetchContext(r.Context(), r)
		if err != nil {
			h.opts.Observer.Observe(ContextErrorEvent{Meta: Meta{Request: r}, Err: err})
			c = fragment.Context{}
		}
		pageCtx = c
		return nil
	})
	g.Go(func() error {
		t, err := h.opts.FetchTemplate(r.Context(), r)
		if err != nil {
			return fmt.Errorf("fetch template: %w", err)
		}
		if t == nil {
			return fmt.Errorf("fetch template: %w", ErrNoTemplate)
		}
		tmpl = t
		return nil
	})
	if err := g.Wait(); err != nil {
		if tmpl != nil {
			_ = tmpl.Close()
		}
		return nil, nil, err
	}
	return pageCtx, tmpl, nil
}

// page is the state of one request being rendered.
type page struct {
	h     *Handler
	r     *http.Request
	log   zerolog.Logger
	state *requestState

	pageCtx        fragment.Context
	header         http.Header
	fetchCtx       context.Context
	forceSmartPipe bool

	async   *bigpipe.Stream
	commits chan commit
	abort   context.CancelCauseFunc
}

func (p *page) observe(ev Event) {
	p.h.opts.Observer.Observe(ev)
}

func (p *page) meta() Meta {
	return Meta{Request: p.r}
}

func (p *page) visit(item tokenizer.Item) (stringifier.Substitute, error) {
	tag := p.h.opts.FragmentTag
	switch it := item.(type) {
	case tokenizer.Placeholder:
		if it == tokenizer.PlaceholderAsync {
			return stringifier.Substitute{Stream: p.async}, nil
		}
	case *tokenizer.Tag:
		if it.Name == tag {
			return stringifier.Substitute{Stream: p.fragment(it)}, nil
		}
	case *tokenizer.ClosingTag:
		if it.Name == tag {
			return stringifier.Empty(), nil
		}
	}
	return p.h.opts.HandleTag(item)
}

func (p *page) fragment(tag *tokenizer.Tag) io.Reader {
	attrs := fragment.ParseAttributes(tag, p.pageCtx)
	index := p.state.nextIndex()

	primary := false
	if attrs.Primary {
		primary = p.state.claimPrimary(attrs.ID)
		if !primary {
			current, _ := p.state.primary()
			p.log.Warn().
				Str(xglog.FieldEvent, "fragment.primary_demoted").
				Str(xglog.FieldFragmentID, attrs.ID).
				Str("primary_id", current).
				Int("index", index).
				Msg("second primary fragment rendered as a regular fragment")
		}
	}

	f := fragment.New(tag, attrs, fragment.Options{
		Index:          index,
		Primary:        primary,
		ForceSmartPipe: p.forceSmartPipe,
		CDNURL:         p.h.opts.CDNURL,
		Fetcher:        p.h.opts.Fetcher,
	})
	f.Subscribe(p.relay(f))
	if f.Async {
		// Write closes the stream if the page is already gone.
		_ = p.async.Write(f.AsyncStream())
	}
	return f.Fetch(p.fetchCtx, p.header)
}

// relay re-emits fragment events as page events and applies the primary
// fragment rules.
func (p *page) relay(f *fragment.Fragment) func(fragment.Event) {
	return func(ev fragment.Event) {
		switch ev := ev.(type) {
		case fragment.StartEvent:
			p.observe(FragmentStartEvent{Meta: p.meta(), Fragment: f})
		case fragment.ResponseEvent:
			p.observe(FragmentResponseEvent{Meta: p.meta(), Fragment: f, StatusCode: ev.StatusCode, Header: ev.Header})
			if f.Primary {
				p.primaryResponded(ev)
			}
		case fragment.EndEvent:
			p.observe(FragmentEndEvent{Meta: p.meta(), Fragment: f, ContentLength: ev.ContentLength})
		case fragment.ErrorEvent:
			p.observe(FragmentErrorEvent{Meta: p.meta(), Fragment: f, Err: ev.Err})
			if f.Primary {
				p.primaryFailed(f, ev.Err)
			}
		case fragment.TimeoutEvent:
			p.observe(FragmentTimeoutEvent{Meta: p.meta(), Fragment: f})
			if f.Primary {
				p.primaryFailed(f, fragment.ErrTimeout)
			}
		}
	}
}

func (p *page) primaryResponded(ev fragment.ResponseEvent) {
	if !p.state.commitForce() {
		return
	}
	header := http.Header{"Content-Type": {"text/html"}}
	if loc := ev.Header.Get("Location"); loc != "" {
		header.Set("Location", loc)
	}
	p.observe(ResponseEvent{Meta: p.meta(), StatusCode: ev.StatusCode, Header: header})
	p.commits <- commit{status: ev.StatusCode, header: header, stream: true}
}

func (p *page) primaryFailed(f *fragment.Fragment, err error) {
	p.observe(PrimaryErrorEvent{Meta: p.meta(), Fragment: f, Err: err})
	if !p.state.commitForce() {
		p.abort(err)
		return
	}
	p.commits <- errorCommit("text/html")
}

func (p *page) finish() {
	p.async.End()
	if !p.state.commitFromFinish() {
		return
	}
	header := http.Header{"Content-Type": {"text/html"}}
	p.observe(ResponseEvent{Meta: p.meta(), StatusCode: http.StatusOK, Header: header})
	p.commits <- commit{status: http.StatusOK, header: header, stream: true}
}

func (p *page) rewriteFailed(err error) {
	p.observe(TemplateErrorEvent{Meta: p.meta(), Err: err})
	if !p.state.commitForce() {
		p.abort(err)
		return
	}
	p.commits <- errorCommit("text/plain")
}

func (p *page) parseError(pe *tokenizer.ParseError) {
	p.observe(ParseErrorEvent{Meta: p.meta(), Err: pe})
}

// pipelineFailed covers output failures that reached neither the rewriter nor
// a primary fragment, such as a substitute stream erroring out.
func (p *page) pipelineFailed(err error) {
	if p.r.Context().Err() != nil || !p.state.commitForce() {
		return
	}
	p.observe(TemplateErrorEvent{Meta: p.meta(), Err: err})
	p.commits <- errorCommit("text/plain")
}

func (p *page) end(n int64) {
	p.observe(EndEvent{Meta: p.meta(), ContentLength: n})
}

func errorCommit(contentType string) commit {
	return commit{
		status: http.StatusInternalServerError,
		header: http.Header{"Content-Type": {contentType}},
	}
}

func writeHeader(w http.ResponseWriter, c commit) {
	for k, v := range c.header {
		w.Header()[k] = v
	}
	w.WriteHeader(c.status)
}

// copyFlushing streams r to w, flushing after every chunk so fragments reach
// the client as soon as they are rendered.
func copyFlushing(w http.ResponseWriter, r io.Reader) error {
	rc := http.NewResponseController(w)
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
