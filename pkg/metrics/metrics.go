// Package metrics exports session activity as Prometheus metrics.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/mediasession"
	"github.com/pion/mediasession/pkg/engine"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mediasession"

// Outcome label values.
const (
	outcomeClosed = "closed"
	outcomeFailed = "failed"
)

// Observer records session notifications. Register it with a registry and
// pass it to mediasession.WithObserver.
type Observer struct {
	mediasession.NopObserver

	sessionsActive  prometheus.Gauge
	sessionsTotal   *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	eventsTotal     *prometheus.CounterVec
	tracksBound     *prometheus.CounterVec
	tracksRejected  *prometheus.CounterVec
	framesTotal     prometheus.Counter
	frameBytesTotal prometheus.Counter
	encodeDuration  prometheus.Histogram

	mu      sync.Mutex
	started map[string]time.Time
}

func New() *Observer {
	return &Observer{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently running",
		}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of terminated sessions",
		}, []string{"outcome"}), // outcome: closed, failed
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Histogram of session lifetime in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of engine events by type",
		}, []string{"type"}),
		tracksBound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_bound_total",
			Help:      "Total number of bound tracks by codec",
		}, []string{"codec"}),
		tracksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_rejected_total",
			Help:      "Total number of ignored media sections by kind",
		}, []string{"kind"}),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total number of frames sent",
		}),
		frameBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_bytes_total",
			Help:      "Total number of compressed bytes sent",
		}),
		encodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_duration_seconds",
			Help:      "Histogram of frame conversion and compression time in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		started: map[string]time.Time{},
	}
}

func (o *Observer) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		o.sessionsActive,
		o.sessionsTotal,
		o.sessionDuration,
		o.eventsTotal,
		o.tracksBound,
		o.tracksRejected,
		o.framesTotal,
		o.frameBytesTotal,
		o.encodeDuration,
	}
}

// Register registers every metric with r. Metrics already registered by an
// earlier call are left in place.
func (o *Observer) Register(r prometheus.Registerer) error {
	var errs []error
	for _, c := range o.collectors() {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Observer) OnStateChange(id string, state mediasession.SessionState) {
	switch state {
	case mediasession.StateRunning:
		o.mu.Lock()
		o.started[id] = time.Now()
		o.mu.Unlock()
		o.sessionsActive.Inc()
	case mediasession.StateClosed, mediasession.StateFailed:
		outcome := outcomeClosed
		if state == mediasession.StateFailed {
			outcome = outcomeFailed
		}
		o.sessionsTotal.WithLabelValues(outcome).Inc()

		o.mu.Lock()
		start, ok := o.started[id]
		delete(o.started, id)
		o.mu.Unlock()
		if ok {
			o.sessionsActive.Dec()
			o.sessionDuration.Observe(time.Since(start).Seconds())
		}
	}
}

func (o *Observer) OnEvent(_ string, ev engine.Event) {
	o.eventsTotal.WithLabelValues(eventType(ev)).Inc()
}

func (o *Observer) OnTrackBound(_ string, t mediasession.Track) {
	o.tracksBound.WithLabelValues(t.Params.MimeType).Inc()
}

func (o *Observer) OnTrackRejected(_ string, m engine.MediaAdded) {
	o.tracksRejected.WithLabelValues(m.Kind.String()).Inc()
}

func (o *Observer) OnFrame(_ string, f mediasession.FrameInfo) {
	o.framesTotal.Inc()
	o.frameBytesTotal.Add(float64(f.Bytes))
	o.encodeDuration.Observe(f.EncodeTime.Seconds())
}

func eventType(ev engine.Event) string {
	switch ev.(type) {
	case engine.MediaAdded:
		return "media_added"
	case engine.ChannelOpen:
		return "channel_open"
	case engine.ChannelData:
		return "channel_data"
	case engine.ConnectionStateChange:
		return "connection_state"
	case engine.KeyframeRequested:
		return "keyframe_requested"
	case engine.Disconnected:
		return "disconnected"
	default:
		return "other"
	}
}
