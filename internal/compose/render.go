// SPDX-License-Identifier: MIT

package compose

import (
	"io"
	"net/http"
)

// Render composes the page for r outside of an HTTP server and writes the
// body to out. It returns the committed status and headers.
func (h *Handler) Render(r *http.Request, out io.Writer) (int, http.Header, error) {
	rw := &renderWriter{header: http.Header{}, out: out}
	h.ServeHTTP(rw, r)
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.status, rw.header, rw.err
}

// renderWriter is a minimal http.ResponseWriter around an io.Writer.
type renderWriter struct {
	header http.Header
	status int
	out    io.Writer
	err    error
}

func (w *renderWriter) Header() http.Header { return w.header }

func (w *renderWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *renderWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.out.Write(p)
	if err != nil && w.err == nil {
		w.err = err
	}
	return n, err
}
