package mediasession

import (
	"time"

	"github.com/pion/mediasession/pkg/engine"
)

// Track is the video stream a session sends on. It is bound once, on the
// first accepted MediaAdded event.
type Track struct {
	Mid         engine.Mid
	Params      engine.PayloadParams
	PayloadType engine.PayloadType

	clockRate   uint32
	accumulated time.Duration
}

func newTrack(mid engine.Mid, params engine.PayloadParams, pt engine.PayloadType, defaultClockRate uint32) *Track {
	clockRate := params.ClockRate
	if clockRate == 0 {
		clockRate = defaultClockRate
	}
	return &Track{
		Mid:         mid,
		Params:      params,
		PayloadType: pt,
		clockRate:   clockRate,
	}
}

// Accumulated is the presentation time of the next frame.
func (t *Track) Accumulated() time.Duration {
	return t.accumulated
}

// advance returns the RTP timestamp of the current frame and moves the
// presentation time forward by d.
func (t *Track) advance(d time.Duration) uint32 {
	ts := rebase(t.accumulated, t.clockRate)
	t.accumulated += d
	return ts
}

// rebase converts d into ticks of a clockRate Hz clock. RTP timestamps wrap,
// so only the low 32 bits are kept.
func rebase(d time.Duration, clockRate uint32) uint32 {
	secs := uint64(d / time.Second)
	rem := uint64(d % time.Second)
	rate := uint64(clockRate)
	return uint32(secs*rate + rem*rate/uint64(time.Second))
}

// TrackPolicy decides whether a negotiated media section binds the
// session's track.
type TrackPolicy func(m engine.MediaAdded) bool

// SingleVideoSend accepts video sections the local side sends on.
func SingleVideoSend(m engine.MediaAdded) bool {
	return m.Kind == engine.MediaKindVideo && m.Direction.Sends()
}
