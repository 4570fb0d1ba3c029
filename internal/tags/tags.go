// SPDX-License-Identifier: MIT

// Package tags renders special tags that are not fragments, along with the
// pipe placeholder that precedes the first script of a page.
package tags

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"os"

	"github.com/a-h/templ"

	"github.com/ManuGH/pagestream/internal/stringifier"
	"github.com/ManuGH/pagestream/internal/tokenizer"
)

// Renderer produces the markup that replaces one tag occurrence.
type Renderer func(tag *tokenizer.Tag) templ.Component

// Handler substitutes registered tags. Unregistered tags pass through.
type Handler struct {
	pipe      templ.Component
	renderers map[string]Renderer
}

// NewHandler returns a Handler that writes pipe at the pipe placeholder. A nil
// pipe leaves the placeholder empty.
func NewHandler(pipe templ.Component) *Handler {
	return &Handler{pipe: pipe, renderers: map[string]Renderer{}}
}

// Register renders tags called name with fn. The tag's closing markup is dropped.
func (h *Handler) Register(name string, fn Renderer) {
	h.renderers[name] = fn
}

// Names lists the registered tag names, which the tokenizer must treat as special.
func (h *Handler) Names() []string {
	out := make([]string, 0, len(h.renderers))
	for name := range h.renderers {
		out = append(out, name)
	}
	return out
}

// Visit is a stringifier.Visitor.
func (h *Handler) Visit(item tokenizer.Item) (stringifier.Substitute, error) {
	switch it := item.(type) {
	case tokenizer.Placeholder:
		if it == tokenizer.PlaceholderPipe && h.pipe != nil {
			return render(h.pipe)
		}
	case *tokenizer.Tag:
		if fn, ok := h.renderers[it.Name]; ok {
			return render(fn(it))
		}
	case *tokenizer.ClosingTag:
		if _, ok := h.renderers[it.Name]; ok {
			return stringifier.Empty(), nil
		}
	}
	return stringifier.Substitute{}, nil
}

func render(c templ.Component) (stringifier.Substitute, error) {
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		return stringifier.Substitute{}, fmt.Errorf("render tag: %w", err)
	}
	return stringifier.Bytes(buf.Bytes()), nil
}

// Static renders markup for every occurrence. $name and ${name} expand to
// the HTML-escaped value of the tag's attribute name, or to nothing.
func Static(markup string) Renderer {
	return func(tag *tokenizer.Tag) templ.Component {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			_, err := io.WriteString(w, os.Expand(markup, func(key string) string {
				v, _ := tag.Attr(key)
				return html.EscapeString(v)
			}))
			return err
		})
	}
}

// PipeScript declares the client-side pipe that fragment scripts push into.
// A non-empty loader adds an async script tag for it.
func PipeScript(name, loader string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if name == "" {
			name = "Pipe"
		}
		_, err := fmt.Fprintf(w,
			`<script data-pipe>(function(g,n){g[n]=g[n]||{q:[],push:function(e){this.q.push(e)}}})(window,%q);</script>`,
			html.EscapeString(name))
		if err != nil || loader == "" {
			return err
		}
		_, err = fmt.Fprintf(w, `<script src="%s" async></script>`, html.EscapeString(loader))
		return err
	})
}
