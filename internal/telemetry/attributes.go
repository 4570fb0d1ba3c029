// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/ManuGH/pagestream/internal/fragment"
	platformnet "github.com/ManuGH/pagestream/internal/platform/net"
)

// Attribute keys shared by page and fragment spans.
const (
	PagePathKey          = "page.path"
	PageStatusCodeKey    = "page.status_code"
	PageContentLengthKey = "page.content_length"

	FragmentIDKey            = "fragment.id"
	FragmentSrcKey           = "fragment.src"
	FragmentIndexKey         = "fragment.index"
	FragmentPrimaryKey       = "fragment.primary"
	FragmentAsyncKey         = "fragment.async"
	FragmentStatusCodeKey    = "fragment.status_code"
	FragmentContentLengthKey = "fragment.content_length"
	FragmentTimeoutKey       = "fragment.timeout_ms"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// PageAttributes describes the composed page.
func PageAttributes(path string, statusCode int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(PagePathKey, path)}
	if statusCode != 0 {
		attrs = append(attrs, attribute.Int(PageStatusCodeKey, statusCode))
	}
	return attrs
}

// FragmentAttributes describes f.
func FragmentAttributes(f *fragment.Fragment) []attribute.KeyValue {
	if f == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(FragmentIDKey, f.ID),
		attribute.String(FragmentSrcKey, platformnet.SanitizeURL(f.Src)),
		attribute.Int(FragmentIndexKey, f.Index),
		attribute.Bool(FragmentPrimaryKey, f.Primary),
		attribute.Bool(FragmentAsyncKey, f.Async),
	}
}

// ErrorAttributes marks a span event as failed.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
