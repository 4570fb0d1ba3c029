// SPDX-License-Identifier: MIT

// Package template loads page templates from a directory. Templates are
// cached in memory and invalidated when the files change on disk.
package template

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ManuGH/pagestream/internal/cache"
	xglog "github.com/ManuGH/pagestream/internal/log"
	"github.com/ManuGH/pagestream/internal/platform/paths"
)

var (
	// ErrNotFound is returned when no template exists for a path.
	ErrNotFound = errors.New("template: not found")
	// ErrInvalidPath is returned for request paths that escape the template directory.
	ErrInvalidPath = errors.New("template: invalid path")
)

const (
	indexName = "index"
	extension = ".html"
)

// Store serves templates from a directory.
type Store struct {
	dir    string
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger

	// OnLookup, when set, is told whether a load was served from the cache.
	OnLookup func(hit bool)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewStore returns a Store for dir. A nil cache disables caching; a zero ttl
// keeps entries until the file changes.
func NewStore(dir string, c cache.Cache, ttl time.Duration) *Store {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return &Store{
		dir:    filepath.Clean(dir),
		cache:  c,
		ttl:    ttl,
		logger: xglog.WithComponent("template"),
	}
}

// Name maps a request path to a template file name relative to the store:
// "/" is "index.html", "/a/" is "a/index.html" and "/a/b" is "a/b.html".
func Name(urlPath string) (string, error) {
	p := strings.TrimPrefix(urlPath, "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." || seg == "." || strings.ContainsRune(seg, '\\') {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, urlPath)
		}
	}
	if p == "" || strings.HasSuffix(p, "/") {
		p += indexName
	}
	return p + extension, nil
}

// Load returns the template for urlPath.
func (s *Store) Load(urlPath string) ([]byte, error) {
	name, err := Name(urlPath)
	if err != nil {
		return nil, err
	}
	b, ok := s.cache.Get(name)
	if s.OnLookup != nil {
		s.OnLookup(ok)
	}
	if ok {
		return b, nil
	}

	path, err := paths.Resolve(s.dir, name)
	if err == nil {
		b, err = os.ReadFile(path) // #nosec G304 -- confined to the template dir
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	s.cache.Set(name, b, s.ttl)
	return b, nil
}

// Fetch loads the template for r. It has the shape of compose.TemplateFetcher.
func (s *Store) Fetch(_ context.Context, r *http.Request) (io.ReadCloser, error) {
	b, err := s.Load(r.URL.Path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Check reports whether the template directory is readable.
func (s *Store) Check(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("template dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("template dir: %s is not a directory", s.dir)
	}
	return nil
}

// StartWatcher watches the template directory and its subdirectories and
// evicts cached templates when their files change. It returns once the
// watches are in place; the watch ends with ctx or Stop.
func (s *Store) StartWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch template dir: %w", err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info().
		Str("event", "template.watcher_started").
		Str("path", s.dir).
		Msg("watching templates for changes")

	go s.watchLoop(ctx, watcher, s.done)
	return nil
}

// Stop ends the watcher started by StartWatcher and waits for it to exit.
func (s *Store) Stop() {
	s.mu.Lock()
	watcher, done := s.watcher, s.done
	s.watcher = nil
	s.mu.Unlock()

	if watcher == nil {
		return
	}
	_ = watcher.Close()
	<-done
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handle(watcher, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().
				Err(err).
				Str("event", "template.watcher_error").
				Msg("template watcher error")
		}
	}
}

func (s *Store) handle(watcher *fsnotify.Watcher, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := watcher.Add(event.Name); err != nil {
				s.logger.Warn().Err(err).Str("path", event.Name).Msg("watch new template dir")
			}
			return
		}
	}
	if event.Op == fsnotify.Chmod {
		return
	}

	rel, err := filepath.Rel(s.dir, event.Name)
	if err != nil {
		return
	}
	name := filepath.ToSlash(rel)
	if !strings.HasSuffix(name, extension) && event.Has(fsnotify.Remove|fsnotify.Rename) {
		// A directory went away; its templates cannot be named individually.
		s.cache.Clear()
	} else {
		s.cache.Delete(name)
	}

	s.logger.Debug().
		Str("event", "template.invalidated").
		Str(xglog.FieldTemplate, name).
		Str("op", event.Op.String()).
		Msg("template changed")
}
