// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for page composition.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay bounded: events and results are fixed sets, fragment ids come
// from templates, never from requests.

var (
	// PageEventsTotal counts lifecycle events by name.
	PageEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagestream_page_events_total",
		Help: "Total number of page lifecycle events, by event name.",
	}, []string{"event"})

	// PageResponsesTotal counts committed page responses by status code.
	PageResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagestream_page_responses_total",
		Help: "Total number of committed page responses, by status code.",
	}, []string{"status"})

	// PageSizeBytes observes the size of completely streamed pages.
	PageSizeBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pagestream_page_size_bytes",
		Help:    "Size of streamed pages in bytes.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})

	// FragmentResultsTotal counts fragment outcomes.
	FragmentResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagestream_fragment_results_total",
		Help: "Total number of fragment fetches, by fragment id and result (end/error/timeout).",
	}, []string{"fragment", "result"})

	// FragmentResponseSeconds observes the time until a fragment's response headers arrived.
	FragmentResponseSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagestream_fragment_response_seconds",
		Help:    "Time from fragment fetch start to response headers, in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"fragment"})

	// FragmentsInFlight tracks fragments waiting for response headers.
	FragmentsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pagestream_fragments_in_flight",
		Help: "Current number of fragments waiting for response headers.",
	})

	// TemplateCacheRequestsTotal counts template cache lookups.
	TemplateCacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagestream_template_cache_requests_total",
		Help: "Template cache lookups, by result (hit/miss).",
	}, []string{"result"})
)
