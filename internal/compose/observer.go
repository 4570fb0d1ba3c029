// SPDX-License-Identifier: MIT

package compose

import (
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/pagestream/internal/log"
	platformnet "github.com/ManuGH/pagestream/internal/platform/net"
)

// Observer receives lifecycle events. Fragment events are delivered from the
// fragment's fetch goroutine, so implementations must be safe for concurrent
// use. Events of one fragment arrive in order.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(ev Event) { f(ev) }

type multiObserver []Observer

func (m multiObserver) Observe(ev Event) {
	for _, o := range m {
		o.Observe(ev)
	}
}

// Observers fans every event out to obs in order. Nil entries are skipped.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// LogObserver writes failures as warnings and the remaining events at debug
// level, using the request-scoped logger when one is present.
func LogObserver() Observer {
	return ObserverFunc(func(ev Event) {
		r := ev.HTTPRequest()
		l := xglog.WithComponent("compose")
		if r != nil {
			l = xglog.WithComponentFromContext(r.Context(), "compose")
		}
		logEvent(l, ev)
	})
}

func logEvent(l zerolog.Logger, ev Event) {
	var e *zerolog.Event
	switch ev := ev.(type) {
	case ContextErrorEvent:
		e = l.Warn().Err(ev.Err)
	case TemplateErrorEvent:
		e = l.Error().Err(ev.Err)
	case ParseErrorEvent:
		e = l.Debug().Int64("offset", ev.Err.Offset).Str("reason", ev.Err.Message)
	case ResponseEvent:
		e = l.Debug().Int(xglog.FieldStatus, ev.StatusCode)
	case PrimaryErrorEvent:
		e = l.Error().Err(ev.Err).Str(xglog.FieldFragmentID, ev.Fragment.ID)
	case EndEvent:
		e = l.Debug().Int64(xglog.FieldContentLength, ev.ContentLength)
	case FragmentResponseEvent:
		e = l.Debug().Str(xglog.FieldFragmentID, ev.Fragment.ID).Int(xglog.FieldStatus, ev.StatusCode)
	case FragmentEndEvent:
		e = l.Debug().Str(xglog.FieldFragmentID, ev.Fragment.ID).Int64(xglog.FieldContentLength, ev.ContentLength)
	case FragmentErrorEvent:
		e = l.Warn().Err(ev.Err).Str(xglog.FieldFragmentID, ev.Fragment.ID).Str(xglog.FieldSrc, platformnet.SanitizeURL(ev.Fragment.Src))
	case FragmentTimeoutEvent:
		e = l.Warn().Str(xglog.FieldFragmentID, ev.Fragment.ID).Str(xglog.FieldSrc, platformnet.SanitizeURL(ev.Fragment.Src)).
			Dur("timeout", ev.Fragment.Timeout)
	case FragmentStartEvent:
		e = l.Debug().Str(xglog.FieldFragmentID, ev.Fragment.ID)
	default:
		e = l.Debug()
	}
	if r := ev.HTTPRequest(); r != nil {
		e = e.Str(xglog.FieldPath, r.URL.Path)
	}
	e.Str(xglog.FieldEvent, ev.Name()).Msg("page event")
}
