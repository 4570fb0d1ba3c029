// SPDX-License-Identifier: MIT

package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/pagestream/internal/config"
)

func testConfig(t *testing.T, templates map[string]string) config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	for name, body := range templates {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}

	return config.AppConfig{
		ListenAddr:      "127.0.0.1:0",
		ShutdownTimeout: time.Second,
		Templates:       config.TemplatesConfig{Dir: dir, CacheTTL: time.Minute},
		Fragments: config.FragmentsConfig{
			Tag:            "fragment",
			PipeBeforeTags: []string{"script"},
			ForwardHeaders: []string{"Accept-Language"},
			HeaderTimeout:  time.Second,
			PipeName:       "Pipe",
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newServer(t *testing.T, cfg config.AppConfig) *Server {
	t.Helper()
	s, err := New(cfg, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func get(t *testing.T, h http.Handler, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func fragmentServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
		if lang := r.Header.Get("Accept-Language"); lang != "" {
			_, _ = io.WriteString(w, "["+lang+"]")
		}
		if r.Header.Get("Cookie") != "" {
			_, _ = io.WriteString(w, "[cookie leaked]")
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_ComposesPage(t *testing.T) {
	frag := fragmentServer(t, "<p>header</p>")
	cfg := testConfig(t, map[string]string{
		"index.html": `<html><body><fragment id="header" src="` + frag.URL + `"></fragment><script src="app.js"></script></body></html>`,
	})
	s := newServer(t, cfg)

	rec := get(t, s.Handler(), "/", http.Header{
		"Accept-Language": {"de"},
		"Cookie":          {"session=1"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	body := rec.Body.String()
	assert.Contains(t, body, "<p>header</p>[de]")
	assert.NotContains(t, body, "cookie leaked")
	assert.Contains(t, body, `<script data-pipe>`)
	assert.Less(t, strings.Index(body, "data-pipe"), strings.Index(body, `src="app.js"`),
		"pipe script precedes the first page script")
}

func TestServer_ConfiguredTagsAreRendered(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"index.html": `<body><banner text="sale"></banner></body>`,
	})
	cfg.Fragments.Tags = map[string]string{"banner": `<div class="banner">$text</div>`}
	s := newServer(t, cfg)

	rec := get(t, s.Handler(), "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `<body><div class="banner">sale</div></body>`, rec.Body.String())
}

func TestServer_ContextFileOverridesSource(t *testing.T) {
	frag := fragmentServer(t, "<p>from context</p>")
	cfg := testConfig(t, map[string]string{
		"shop/index.html": `<body><fragment id="cart" src="http://unused.invalid"></fragment></body>`,
	})
	contextFile := filepath.Join(t.TempDir(), "context.yaml")
	require.NoError(t, os.WriteFile(contextFile, []byte(`"/shop/":
  cart:
    src: "`+frag.URL+`"
`), 0o600))
	cfg.Context = config.ContextConfig{File: contextFile, CacheTTL: time.Minute}

	rec := get(t, newServer(t, cfg).Handler(), "/shop/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<p>from context</p>")
}

func TestServer_MissingTemplateFails(t *testing.T) {
	s := newServer(t, testConfig(t, map[string]string{"index.html": "<html></html>"}))
	rec := get(t, s.Handler(), "/nope", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_HealthAndReadiness(t *testing.T) {
	cfg := testConfig(t, map[string]string{"index.html": "<html></html>"})
	s := newServer(t, cfg)

	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/readyz", nil).Code)

	require.NoError(t, os.RemoveAll(cfg.Templates.Dir))
	rec := get(t, s.Handler(), "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"templates"`)
}

func TestServer_ExposesMetrics(t *testing.T) {
	s := newServer(t, testConfig(t, map[string]string{"index.html": "<html></html>"}))
	get(t, s.Handler(), "/", nil)

	rec := get(t, s.Handler(), "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pagestream_page_events_total")
	assert.Contains(t, rec.Body.String(), "pagestream_http_request_duration_seconds")
}

func TestServer_ApplyConfigSwapsSmartPipe(t *testing.T) {
	cfg := testConfig(t, map[string]string{"index.html": "<html></html>"})
	s := newServer(t, cfg)
	req := httptest.NewRequest(http.MethodGet, "/shop", nil)
	assert.False(t, s.forceSmartPipe(req))

	cfg.SmartPipe = `Path startsWith "/shop"`
	require.NoError(t, s.ApplyConfig(cfg))
	assert.True(t, s.forceSmartPipe(req))

	cfg.SmartPipe = `Path +`
	assert.Error(t, s.ApplyConfig(cfg))
	assert.True(t, s.forceSmartPipe(req), "a broken expression keeps the previous one")
}

func TestServer_RenderWithoutListener(t *testing.T) {
	frag := fragmentServer(t, "<p>x</p>")
	s := newServer(t, testConfig(t, map[string]string{
		"a/b.html": `<main><fragment src="` + frag.URL + `"></fragment></main>`,
	}))

	var out strings.Builder
	status, header, err := s.Render(httptest.NewRequest(http.MethodGet, "/a/b", nil), &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "text/html", header.Get("Content-Type"))
	assert.Contains(t, out.String(), "<main><p>x</p></main>")
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, map[string]string{"index.html": "<html></html>"})
	cfg.Templates.Watch = true
	s := newServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestCDNResolver(t *testing.T) {
	resolve, err := cdnResolver("https://cdn.example/assets/")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/assets/css/a.css", resolve("css/a.css"))
	assert.Equal(t, "https://other.example/b.css", resolve("https://other.example/b.css"))

	none, err := cdnResolver("")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestServer_SourceAllowlist(t *testing.T) {
	frag := fragmentServer(t, "<p>private</p>")
	cfg := testConfig(t, map[string]string{
		"index.html": `<body><fragment src="` + frag.URL + `"></fragment></body>`,
	})
	cfg.Fragments.AllowedHosts = []string{"fragments.example"}

	rec := get(t, newServer(t, cfg).Handler(), "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<body></body>", rec.Body.String())

	cfg.Fragments.AllowedCIDRs = []string{"127.0.0.0/8"}
	rec = get(t, newServer(t, cfg).Handler(), "/", nil)
	assert.Equal(t, "<body><p>private</p></body>", rec.Body.String())
}

func TestServer_RedisTemplateCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, map[string]string{"index.html": "<p>shared</p>"})
	cfg.Context.Redis = config.RedisConfig{Addr: mr.Addr(), Prefix: "ctx:"}
	cfg.Templates.Cache = config.TemplateCacheRedis

	s := newServer(t, cfg)
	rec := get(t, s.Handler(), "/", nil)
	assert.Equal(t, "<p>shared</p>", rec.Body.String())
	assert.True(t, mr.Exists(config.DefaultTemplatePrefix+"index.html"))

	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/readyz", nil).Code)
	require.NoError(t, s.Close())
}
