// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/pagestream/internal/metrics"
)

// Metrics records request latency, time to first byte and response size.
// Routes are labelled by chi pattern so that page paths do not become labels.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			mw := &metricsWriter{ResponseWriter: w, start: time.Now(), statusCode: http.StatusOK}
			next.ServeHTTP(mw, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			status := strconv.Itoa(mw.statusCode)
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(mw.start).Seconds())
			if mw.written {
				metrics.HTTPTimeToFirstByte.WithLabelValues(r.Method, route).Observe(mw.firstByte.Seconds())
			}
			if mw.bytesWritten > 0 {
				metrics.HTTPResponseSize.WithLabelValues(r.Method, route, status).Observe(float64(mw.bytesWritten))
			}
		})
	}
}

type metricsWriter struct {
	http.ResponseWriter
	start        time.Time
	firstByte    time.Duration
	statusCode   int
	bytesWritten int
	written      bool
}

func (mw *metricsWriter) WriteHeader(statusCode int) {
	if !mw.written {
		mw.statusCode = statusCode
		mw.firstByte = time.Since(mw.start)
		mw.written = true
	}
	mw.ResponseWriter.WriteHeader(statusCode)
}

func (mw *metricsWriter) Write(b []byte) (int, error) {
	if !mw.written {
		mw.WriteHeader(http.StatusOK)
	}
	n, err := mw.ResponseWriter.Write(b)
	mw.bytesWritten += n
	return n, err
}

func (mw *metricsWriter) Flush() {
	if !mw.written {
		mw.WriteHeader(http.StatusOK)
	}
	if f, ok := mw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (mw *metricsWriter) Unwrap() http.ResponseWriter {
	return mw.ResponseWriter
}
