// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/pagestream/internal/compose"
)

// SpanObserver records lifecycle events on the span of the request they
// belong to. Requests without a recording span are ignored.
type SpanObserver struct{}

// NewSpanObserver returns a SpanObserver.
func NewSpanObserver() SpanObserver { return SpanObserver{} }

// Observe implements compose.Observer.
func (SpanObserver) Observe(ev compose.Event) {
	r := ev.HTTPRequest()
	if r == nil {
		return
	}
	span := trace.SpanFromContext(r.Context())
	if !span.IsRecording() {
		return
	}

	var attrs []attribute.KeyValue
	switch ev := ev.(type) {
	case compose.StartEvent:
		span.SetAttributes(PageAttributes(r.URL.Path, 0)...)
	case compose.ResponseEvent:
		span.SetAttributes(attribute.Int(PageStatusCodeKey, ev.StatusCode))
	case compose.EndEvent:
		attrs = []attribute.KeyValue{attribute.Int64(PageContentLengthKey, ev.ContentLength)}
	case compose.TemplateErrorEvent:
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, "template failed")
		attrs = ErrorAttributes("template")
	case compose.ContextErrorEvent:
		span.RecordError(ev.Err)
		attrs = ErrorAttributes("context")
	case compose.PrimaryErrorEvent:
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, "primary fragment failed")
		attrs = append(FragmentAttributes(ev.Fragment), ErrorAttributes("primary")...)
	case compose.ParseErrorEvent:
		attrs = []attribute.KeyValue{attribute.String("parse.reason", ev.Err.Message)}
	case compose.FragmentStartEvent:
		attrs = FragmentAttributes(ev.Fragment)
	case compose.FragmentResponseEvent:
		attrs = append(FragmentAttributes(ev.Fragment), attribute.Int(FragmentStatusCodeKey, ev.StatusCode))
	case compose.FragmentEndEvent:
		attrs = append(FragmentAttributes(ev.Fragment), attribute.Int64(FragmentContentLengthKey, ev.ContentLength))
	case compose.FragmentErrorEvent:
		attrs = append(FragmentAttributes(ev.Fragment), ErrorAttributes("fragment")...)
		attrs = append(attrs, attribute.String("error.message", ev.Err.Error()))
	case compose.FragmentTimeoutEvent:
		attrs = append(FragmentAttributes(ev.Fragment), ErrorAttributes("timeout")...)
		attrs = append(attrs, attribute.Int64(FragmentTimeoutKey, ev.Fragment.Timeout.Milliseconds()))
	}
	span.AddEvent(ev.Name(), trace.WithAttributes(attrs...))
}
