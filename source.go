package mediasession

import (
	"github.com/pion/mediasession/pkg/frame"
)

// FrameSource produces the next BGRA frame to encode. The returned buffer
// may be reused by the source on the following call.
type FrameSource interface {
	Frame() (frame.Buffer, error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func() (frame.Buffer, error)

func (f FrameSourceFunc) Frame() (frame.Buffer, error) {
	return f()
}

// FrameSourceBuilder creates a source producing width x height frames for
// one session.
type FrameSourceBuilder func(width, height int) (FrameSource, error)
