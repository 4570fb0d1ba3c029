// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration observes time to the end of the response body.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagestream_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds, until the last byte was written.",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "route", "status"})

	// HTTPTimeToFirstByte observes time until the response was committed.
	HTTPTimeToFirstByte = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagestream_http_time_to_first_byte_seconds",
		Help:    "Time until response headers were written, in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// HTTPRequestsInFlight tracks requests currently being served.
	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pagestream_http_requests_in_flight",
		Help: "Current number of HTTP requests being served.",
	})

	// HTTPResponseSize observes response body sizes.
	HTTPResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagestream_http_response_size_bytes",
		Help:    "HTTP response sizes in bytes.",
		Buckets: prometheus.ExponentialBuckets(100, 10, 8),
	}, []string{"method", "route", "status"})
)
