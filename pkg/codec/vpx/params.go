package vpx

import (
	"github.com/pion/mediasession/pkg/codec"
)

// Params stores libvpx specific encoding parameters.
// Value range is codec (VP8/VP9) specific.
type Params struct {
	RateControlEndUsage RateControlMode
	ErrorResilient      ErrorResilientMode
	// KeyFrameInterval is the maximum distance between key frames, in frames.
	KeyFrameInterval uint
	// LagInFrames above zero lets the encoder buffer input, delaying output.
	LagInFrames uint
	// CPUUsed trades quality for speed, -16..16 for VP8.
	CPUUsed int
}

// RateControlMode represents rate control mode.
type RateControlMode int

// RateControlMode values.
const (
	RateControlVBR RateControlMode = iota
	RateControlCBR
	RateControlCQ
)

// ErrorResilientMode represents error resilient mode.
type ErrorResilientMode int

// ErrorResilientMode values.
const (
	ErrorResilientDefault    ErrorResilientMode = 0x01
	ErrorResilientPartitions ErrorResilientMode = 0x02
)

// DefaultParams is a real time, constant bitrate configuration with no
// encoder lag, so every input frame produces output immediately.
func DefaultParams() Params {
	return Params{
		RateControlEndUsage: RateControlCBR,
		ErrorResilient:      ErrorResilientDefault,
		KeyFrameInterval:    60,
		LagInFrames:         0,
		CPUUsed:             8,
	}
}

// VP8 returns a builder for VP8 compressors using p.
func (p Params) VP8() codec.VideoCompressorBuilder {
	return func(s codec.VideoSetting) (codec.VideoCompressor, error) {
		return newCompressor(s, p, vp8)
	}
}

// VP9 returns a builder for VP9 compressors using p.
func (p Params) VP9() codec.VideoCompressorBuilder {
	return func(s codec.VideoSetting) (codec.VideoCompressor, error) {
		return newCompressor(s, p, vp9)
	}
}

// NewVP8 builds a VP8 compressor with DefaultParams.
func NewVP8(s codec.VideoSetting) (codec.VideoCompressor, error) {
	return DefaultParams().VP8()(s)
}

// NewVP9 builds a VP9 compressor with DefaultParams.
func NewVP9(s codec.VideoSetting) (codec.VideoCompressor, error) {
	return DefaultParams().VP9()(s)
}
