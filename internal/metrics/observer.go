// SPDX-License-Identifier: MIT

package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/ManuGH/pagestream/internal/compose"
	"github.com/ManuGH/pagestream/internal/fragment"
)

// Observer records page and fragment metrics from lifecycle events.
type Observer struct {
	now     func() time.Time
	started sync.Map // *fragment.Fragment -> time.Time
}

// NewObserver returns an Observer.
func NewObserver() *Observer {
	return &Observer{now: time.Now}
}

// Observe implements compose.Observer.
func (o *Observer) Observe(ev compose.Event) {
	PageEventsTotal.WithLabelValues(ev.Name()).Inc()

	switch ev := ev.(type) {
	case compose.ResponseEvent:
		PageResponsesTotal.WithLabelValues(strconv.Itoa(ev.StatusCode)).Inc()
	case compose.EndEvent:
		PageSizeBytes.Observe(float64(ev.ContentLength))
	case compose.FragmentStartEvent:
		o.started.Store(ev.Fragment, o.now())
		FragmentsInFlight.Inc()
	case compose.FragmentResponseEvent:
		if start, ok := o.answered(ev.Fragment); ok {
			FragmentResponseSeconds.WithLabelValues(ev.Fragment.ID).Observe(o.now().Sub(start).Seconds())
		}
	case compose.FragmentEndEvent:
		FragmentResultsTotal.WithLabelValues(ev.Fragment.ID, "end").Inc()
	case compose.FragmentErrorEvent:
		o.answered(ev.Fragment)
		FragmentResultsTotal.WithLabelValues(ev.Fragment.ID, "error").Inc()
	case compose.FragmentTimeoutEvent:
		o.answered(ev.Fragment)
		FragmentResultsTotal.WithLabelValues(ev.Fragment.ID, "timeout").Inc()
	}
}

// answered ends the in-flight period of f and returns when it started.
func (o *Observer) answered(f *fragment.Fragment) (time.Time, bool) {
	v, ok := o.started.LoadAndDelete(f)
	if !ok {
		return time.Time{}, false
	}
	FragmentsInFlight.Dec()
	return v.(time.Time), true
}

// TemplateCacheLookup records a template cache hit or miss.
func TemplateCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	TemplateCacheRequestsTotal.WithLabelValues(result).Inc()
}
