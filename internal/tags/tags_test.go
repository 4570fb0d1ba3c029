// SPDX-License-Identifier: MIT

package tags

import (
	"context"
	"errors"
	"io"
	"sort"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/pagestream/internal/stringifier"
	"github.com/ManuGH/pagestream/internal/tokenizer"
)

func bodyOf(t *testing.T, s stringifier.Substitute) string {
	t.Helper()
	require.NotNil(t, s.Stream)
	b, err := io.ReadAll(s.Stream)
	require.NoError(t, err)
	return string(b)
}

func TestHandler_PipePlaceholder(t *testing.T) {
	h := NewHandler(PipeScript("", "/static/pipe.js"))

	s, err := h.Visit(tokenizer.PlaceholderPipe)
	require.NoError(t, err)
	assert.Equal(t,
		`<script data-pipe>(function(g,n){g[n]=g[n]||{q:[],push:function(e){this.q.push(e)}}})(window,"Pipe");</script>`+
			`<script src="/static/pipe.js" async></script>`,
		bodyOf(t, s))
}

func TestHandler_AsyncPlaceholderUntouched(t *testing.T) {
	s, err := NewHandler(PipeScript("", "")).Visit(tokenizer.PlaceholderAsync)
	require.NoError(t, err)
	assert.Equal(t, stringifier.Substitute{}, s)
}

func TestHandler_NoPipe(t *testing.T) {
	s, err := NewHandler(nil).Visit(tokenizer.PlaceholderPipe)
	require.NoError(t, err)
	assert.Equal(t, stringifier.Substitute{}, s)
}

func TestHandler_RegisteredTag(t *testing.T) {
	h := NewHandler(nil)
	h.Register("clock", func(tag *tokenizer.Tag) templ.Component {
		return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
			_, err := io.WriteString(w, "<time>"+tag.Attributes["tz"]+"</time>")
			return err
		})
	})
	h.Register("banner", func(*tokenizer.Tag) templ.Component { return templ.NopComponent })

	names := h.Names()
	sort.Strings(names)
	assert.Equal(t, []string{"banner", "clock"}, names)

	s, err := h.Visit(&tokenizer.Tag{Name: "clock", Attributes: map[string]string{"tz": "UTC"}})
	require.NoError(t, err)
	assert.Equal(t, "<time>UTC</time>", bodyOf(t, s))

	s, err = h.Visit(&tokenizer.ClosingTag{Name: "clock"})
	require.NoError(t, err)
	assert.Equal(t, stringifier.Empty(), s)

	s, err = h.Visit(&tokenizer.Tag{Name: "other"})
	require.NoError(t, err)
	assert.Equal(t, stringifier.Substitute{}, s)
}

func TestHandler_RenderError(t *testing.T) {
	boom := errors.New("boom")
	h := NewHandler(nil)
	h.Register("x", func(*tokenizer.Tag) templ.Component {
		return templ.ComponentFunc(func(context.Context, io.Writer) error { return boom })
	})

	_, err := h.Visit(&tokenizer.Tag{Name: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestStatic_ExpandsEscapedAttributes(t *testing.T) {
	h := NewHandler(nil)
	h.Register("banner", Static(`<div class="banner">${text} ($missing)</div>`))

	s, err := h.Visit(&tokenizer.Tag{Name: "banner", Attributes: map[string]string{"text": `<b>"sale"</b>`}})
	require.NoError(t, err)
	assert.Equal(t, `<div class="banner">&lt;b&gt;&#34;sale&#34;&lt;/b&gt; ()</div>`, bodyOf(t, s))
}
