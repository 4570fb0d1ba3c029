// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ManuGH/pagestream/internal/log"
)

const (
	// HeaderRequestID carries the request id in both directions.
	HeaderRequestID = "X-Request-Id"
	// HeaderCorrelationID carries a caller-assigned id spanning several
	// requests. It is echoed but never generated.
	HeaderCorrelationID = "X-Correlation-Id"
)

// RequestID adds a unique ID to every request. The id is also written back
// into the request headers so that it is forwarded to fragment services. An
// incoming correlation id is stored in the context for log lines.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
			r.Header.Set(HeaderRequestID, reqID)
		}
		w.Header().Set(HeaderRequestID, reqID)
		ctx := log.ContextWithRequestID(r.Context(), reqID)
		if corrID := r.Header.Get(HeaderCorrelationID); corrID != "" {
			w.Header().Set(HeaderCorrelationID, corrID)
			ctx = log.ContextWithCorrelationID(ctx, corrID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
