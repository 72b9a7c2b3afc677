package codec

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/mediasession/pkg/frame"
)

// ErrGeometry is returned when a frame doesn't match the pipeline's setting.
var ErrGeometry = errors.New("codec: frame geometry mismatch")

const bitrateWindow = time.Second

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Frames  uint64
	Bytes   uint64
	Bitrate float64
}

// Pipeline converts BGRA frames to I420 and feeds them to a compressor with
// a millisecond presentation counter starting at zero.
type Pipeline struct {
	mu         sync.Mutex
	setting    VideoSetting
	compressor VideoCompressor
	yuv        []byte
	pts        int64
	stats      Stats
	bitrate    *BitrateTracker
	closed     bool
}

// NewPipeline validates s and builds its compressor.
func NewPipeline(s VideoSetting, build VideoCompressorBuilder) (*Pipeline, error) {
	if build == nil {
		return nil, errors.New("codec: no compressor builder")
	}
	if s.Width <= 0 || s.Height <= 0 || s.Width%2 != 0 || s.Height%2 != 0 {
		return nil, fmt.Errorf("%w: %dx%d", frame.ErrOddDimension, s.Width, s.Height)
	}
	if s.Timebase == (Timebase{}) {
		s.Timebase = Millisecond
	}
	if s.Timebase != Millisecond {
		return nil, fmt.Errorf("codec: unsupported timebase %d/%d", s.Timebase.Num, s.Timebase.Den)
	}

	c, err := build(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return &Pipeline{
		setting:    s,
		compressor: c,
		bitrate:    NewBitrateTracker(bitrateWindow),
	}, nil
}

// Setting returns the setting the compressor was built with.
func (p *Pipeline) Setting() VideoSetting {
	return p.setting
}

// Encode compresses one width x height BGRA frame lasting d and returns the
// concatenated compressed packets. The presentation counter only advances
// when the frame was accepted by the compressor.
func (p *Pipeline) Encode(pixels []byte, width, height int, d time.Duration) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("%w: pipeline closed", ErrEncode)
	}
	if width != p.setting.Width || height != p.setting.Height {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrGeometry, width, height, p.setting.Width, p.setting.Height)
	}

	var err error
	p.yuv, err = frame.BGRAToI420(p.yuv, pixels, width, height)
	if err != nil {
		return nil, err
	}

	duration := d.Milliseconds()
	packets, err := p.compressor.Compress(p.yuv, p.pts, duration)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	var out []byte
	for _, pkt := range packets {
		out = append(out, pkt...)
	}

	p.bitrate.AddFrame(len(out), time.Duration(p.pts)*time.Millisecond)
	p.pts += duration
	p.stats.Frames++
	p.stats.Bytes += uint64(len(out))
	return out, nil
}

// PTS returns the presentation time the next frame will be encoded at, in
// milliseconds.
func (p *Pipeline) PTS() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pts
}

// ForceKeyFrame requests a key frame on the next Encode.
func (p *Pipeline) ForceKeyFrame() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.compressor.ForceKeyFrame()
	}
}

func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Bitrate = p.bitrate.Bitrate()
	return s
}

// Close releases the compressor. Subsequent calls are no-ops.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.compressor.Close()
}
