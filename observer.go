package mediasession

import (
	"time"

	"github.com/pion/logging"
	"github.com/pion/mediasession/pkg/engine"
)

// SessionState is the lifecycle state of a Session.
type SessionState int

const (
	StateNew SessionState = iota
	StateRunning
	StateConnected
	StateClosed
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FrameInfo describes one frame handed to the engine.
type FrameInfo struct {
	Mid       engine.Mid
	Timestamp uint32
	// PTS is the presentation time of the frame.
	PTS time.Duration
	// Bytes is the compressed size.
	Bytes int
	// EncodeTime is how long conversion and compression took.
	EncodeTime time.Duration
}

// Observer receives session lifecycle notifications. Calls are made from
// the session's own goroutine and must not block.
type Observer interface {
	OnStateChange(id string, state SessionState)
	OnEvent(id string, ev engine.Event)
	OnTrackBound(id string, t Track)
	OnTrackRejected(id string, m engine.MediaAdded)
	OnFrame(id string, f FrameInfo)
	// OnClose is called once, with nil after a disconnect.
	OnClose(id string, err error)
}

// NopObserver ignores everything. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnStateChange(string, SessionState)        {}
func (NopObserver) OnEvent(string, engine.Event)              {}
func (NopObserver) OnTrackBound(string, Track)                {}
func (NopObserver) OnTrackRejected(string, engine.MediaAdded) {}
func (NopObserver) OnFrame(string, FrameInfo)                 {}
func (NopObserver) OnClose(string, error)                     {}

// MultiObserver fans notifications out in order.
type MultiObserver []Observer

func (m MultiObserver) OnStateChange(id string, state SessionState) {
	for _, o := range m {
		o.OnStateChange(id, state)
	}
}

func (m MultiObserver) OnEvent(id string, ev engine.Event) {
	for _, o := range m {
		o.OnEvent(id, ev)
	}
}

func (m MultiObserver) OnTrackBound(id string, t Track) {
	for _, o := range m {
		o.OnTrackBound(id, t)
	}
}

func (m MultiObserver) OnTrackRejected(id string, ma engine.MediaAdded) {
	for _, o := range m {
		o.OnTrackRejected(id, ma)
	}
}

func (m MultiObserver) OnFrame(id string, f FrameInfo) {
	for _, o := range m {
		o.OnFrame(id, f)
	}
}

func (m MultiObserver) OnClose(id string, err error) {
	for _, o := range m {
		o.OnClose(id, err)
	}
}

type loggingObserver struct {
	log logging.LeveledLogger
}

// NewLoggingObserver logs transitions at Info, events at Debug and frames
// at Trace.
func NewLoggingObserver(log logging.LeveledLogger) Observer {
	return &loggingObserver{log: log}
}

func (o *loggingObserver) OnStateChange(id string, state SessionState) {
	o.log.Infof("session %s: %s", id, state)
}

func (o *loggingObserver) OnEvent(id string, ev engine.Event) {
	o.log.Debugf("session %s: event %T %+v", id, ev, ev)
}

func (o *loggingObserver) OnTrackBound(id string, t Track) {
	o.log.Infof("session %s: bound track mid=%s codec=%s pt=%d", id, t.Mid, t.Params.MimeType, t.PayloadType)
}

func (o *loggingObserver) OnTrackRejected(id string, m engine.MediaAdded) {
	o.log.Infof("session %s: ignoring %s %s media mid=%s", id, m.Direction, m.Kind, m.Mid)
}

func (o *loggingObserver) OnFrame(id string, f FrameInfo) {
	o.log.Tracef("session %s: frame ts=%d pts=%v %d bytes in %v", id, f.Timestamp, f.PTS, f.Bytes, f.EncodeTime)
}

func (o *loggingObserver) OnClose(id string, err error) {
	if err != nil {
		o.log.Errorf("session %s: closed: %v", id, err)
		return
	}
	o.log.Infof("session %s: closed", id)
}
