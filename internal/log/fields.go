// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldTraceID       = "trace_id"
	FieldSpanID        = "span_id"
	FieldFragmentID    = "fragment_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"

	// Request fields
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatus        = "status"
	FieldBytes         = "bytes"
	FieldDurationMS    = "duration_ms"
	FieldRemoteAddr    = "remote_addr"
	FieldContentLength = "content_length"

	// Source fields
	FieldSrc      = "src"
	FieldTemplate = "template"
)
