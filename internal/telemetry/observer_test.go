// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ManuGH/pagestream/internal/compose"
	"github.com/ManuGH/pagestream/internal/fragment"
)

func TestSpanObserver_RecordsEvents(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer(TracerName).Start(context.Background(), "page")
	r := httptest.NewRequest("GET", "/shop/", nil).WithContext(ctx)
	meta := compose.Meta{Request: r}
	f := newFragment(map[string]string{"id": "header", "src": "http://header.local"}, fragment.Options{Primary: true})

	obs := NewSpanObserver()
	obs.Observe(compose.StartEvent{Meta: meta})
	obs.Observe(compose.FragmentStartEvent{Meta: meta, Fragment: f})
	obs.Observe(compose.PrimaryErrorEvent{Meta: meta, Fragment: f, Err: errors.New("boom")})
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	got := spans[0]

	var names []string
	for _, ev := range got.Events() {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"start", "fragment:start", "exception", "primary:error"}, names)
	assert.Equal(t, codes.Error, got.Status().Code)
	verifyAttribute(t, got.Attributes(), PagePathKey, "/shop/")
}

func TestSpanObserver_IgnoresUntracedRequests(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.NotPanics(t, func() {
		NewSpanObserver().Observe(compose.EndEvent{Meta: compose.Meta{Request: r}, ContentLength: 10})
		NewSpanObserver().Observe(compose.EndEvent{})
	})
}
