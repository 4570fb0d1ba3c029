// SPDX-License-Identifier: MIT

package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/pagestream/internal/compose"
	"github.com/ManuGH/pagestream/internal/fragment"
	"github.com/ManuGH/pagestream/internal/tokenizer"
)

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	m, ok := o.(prometheus.Metric)
	require.True(t, ok)
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	return pb.GetHistogram().GetSampleCount()
}

func newFragment(id string) *fragment.Fragment {
	tag := &tokenizer.Tag{Name: "fragment", Attributes: map[string]string{"id": id, "src": "http://" + id}}
	return fragment.New(tag, fragment.ParseAttributes(tag, nil), fragment.Options{})
}

func TestObserver_PageEvents(t *testing.T) {
	o := NewObserver()
	meta := compose.Meta{Request: httptest.NewRequest("GET", "/", nil)}

	responses := testutil.ToFloat64(PageResponsesTotal.WithLabelValues("203"))
	starts := testutil.ToFloat64(PageEventsTotal.WithLabelValues("start"))
	sizes := histogramCount(t, PageSizeBytes)

	o.Observe(compose.StartEvent{Meta: meta})
	o.Observe(compose.ResponseEvent{Meta: meta, StatusCode: 203})
	o.Observe(compose.EndEvent{Meta: meta, ContentLength: 4096})

	assert.Equal(t, responses+1, testutil.ToFloat64(PageResponsesTotal.WithLabelValues("203")))
	assert.Equal(t, starts+1, testutil.ToFloat64(PageEventsTotal.WithLabelValues("start")))
	assert.Equal(t, sizes+1, histogramCount(t, PageSizeBytes))
}

func TestObserver_FragmentLifecycle(t *testing.T) {
	clock := time.Unix(0, 0)
	o := &Observer{now: func() time.Time { return clock }}
	meta := compose.Meta{Request: httptest.NewRequest("GET", "/", nil)}
	f := newFragment("header-test")

	inFlight := testutil.ToFloat64(FragmentsInFlight)

	o.Observe(compose.FragmentStartEvent{Meta: meta, Fragment: f})
	assert.Equal(t, inFlight+1, testutil.ToFloat64(FragmentsInFlight))

	clock = clock.Add(250 * time.Millisecond)
	o.Observe(compose.FragmentResponseEvent{Meta: meta, Fragment: f, StatusCode: 200})
	o.Observe(compose.FragmentEndEvent{Meta: meta, Fragment: f, ContentLength: 10})

	assert.Equal(t, inFlight, testutil.ToFloat64(FragmentsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(FragmentResultsTotal.WithLabelValues("header-test", "end")))
	assert.Equal(t, uint64(1), histogramCount(t, FragmentResponseSeconds.WithLabelValues("header-test")))

	var pb dto.Metric
	require.NoError(t, FragmentResponseSeconds.WithLabelValues("header-test").(prometheus.Metric).Write(&pb))
	assert.InDelta(t, 0.25, pb.GetHistogram().GetSampleSum(), 1e-9)
}

func TestObserver_FragmentFailures(t *testing.T) {
	o := NewObserver()
	meta := compose.Meta{Request: httptest.NewRequest("GET", "/", nil)}
	failed, slow := newFragment("failing-test"), newFragment("slow-test")

	inFlight := testutil.ToFloat64(FragmentsInFlight)
	o.Observe(compose.FragmentStartEvent{Meta: meta, Fragment: failed})
	o.Observe(compose.FragmentStartEvent{Meta: meta, Fragment: slow})
	o.Observe(compose.FragmentErrorEvent{Meta: meta, Fragment: failed})
	o.Observe(compose.FragmentTimeoutEvent{Meta: meta, Fragment: slow})

	assert.Equal(t, inFlight, testutil.ToFloat64(FragmentsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(FragmentResultsTotal.WithLabelValues("failing-test", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(FragmentResultsTotal.WithLabelValues("slow-test", "timeout")))

	// An error after the response does not decrement twice.
	o.Observe(compose.FragmentErrorEvent{Meta: meta, Fragment: failed})
	assert.Equal(t, inFlight, testutil.ToFloat64(FragmentsInFlight))
}

func TestTemplateCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(TemplateCacheRequestsTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(TemplateCacheRequestsTotal.WithLabelValues("miss"))

	TemplateCacheLookup(true)
	TemplateCacheLookup(false)
	TemplateCacheLookup(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(TemplateCacheRequestsTotal.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(TemplateCacheRequestsTotal.WithLabelValues("miss")))
}
