// Package codec defines the compressor boundary and the frame pipeline that
// turns BGRA pixel buffers into compressed video frames.
package codec

import (
	"errors"
)

// ErrEncode wraps every failure reported by a VideoCompressor.
var ErrEncode = errors.New("codec: encode failed")

// VideoSetting describes the stream a compressor is built for.
type VideoSetting struct {
	Width, Height int
	// TargetBitRate in bits per second.
	TargetBitRate int
	FrameRate     float32
	// Timebase is the unit of the pts and duration passed to Compress.
	// Zero means one millisecond.
	Timebase Timebase
}

// Timebase is a rational time unit, Num/Den seconds.
type Timebase struct {
	Num, Den int
}

// Millisecond is the timebase the pipeline counts presentation time in.
var Millisecond = Timebase{Num: 1, Den: 1000}

// VideoCompressor compresses planar I420 frames.
type VideoCompressor interface {
	// Compress encodes one frame at presentation time pts lasting duration,
	// both in the setting's timebase, and returns the compressed packets the
	// codec emitted for it. The result may be empty while the codec buffers.
	Compress(yuv []byte, pts, duration int64) ([][]byte, error)
	// ForceKeyFrame makes the next Compress produce a key frame.
	ForceKeyFrame()
	// Close releases the codec. It's safe to call more than once.
	Close() error
}

// VideoCompressorBuilder creates a compressor for the given setting.
type VideoCompressorBuilder func(s VideoSetting) (VideoCompressor, error)
