package codec

import (
	"time"
)

// BitrateTracker estimates the output bitrate over a sliding window of
// presentation time.
type BitrateTracker struct {
	windowSize time.Duration
	sizes      []int
	times      []time.Duration
	total      int
}

func NewBitrateTracker(windowSize time.Duration) *BitrateTracker {
	return &BitrateTracker{
		windowSize: windowSize,
	}
}

// AddFrame records a frame of sizeBytes presented at pts.
func (bt *BitrateTracker) AddFrame(sizeBytes int, pts time.Duration) {
	bt.sizes = append(bt.sizes, sizeBytes)
	bt.times = append(bt.times, pts)
	bt.total += sizeBytes

	// Drop entries that fell out of the window
	cutoff := pts - bt.windowSize
	i := 0
	for ; i < len(bt.times); i++ {
		if bt.times[i] > cutoff {
			break
		}
		bt.total -= bt.sizes[i]
	}
	bt.sizes = bt.sizes[i:]
	bt.times = bt.times[i:]
}

// Bitrate returns bits per second, or 0 until two frames are in the window.
func (bt *BitrateTracker) Bitrate() float64 {
	if len(bt.times) < 2 {
		return 0
	}
	duration := (bt.times[len(bt.times)-1] - bt.times[0]).Seconds()
	if duration <= 0 {
		return 0
	}
	return float64(bt.total*8) / duration
}
