// Package codectest provides shared test for codec implementations.
package codectest

import (
	"image/color"
	"testing"
	"time"

	"github.com/pion/mediasession/pkg/codec"
	"github.com/pion/mediasession/pkg/frame"
)

func assertNoPanic(t *testing.T, fn func() error, msg string) error {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("panic: %v: %s", r, msg)
		}
	}()
	return fn()
}

// VideoCompressorCloseTwiceTest checks Close can be called twice.
func VideoCompressorCloseTwiceTest(t *testing.T, b codec.VideoCompressorBuilder, s codec.VideoSetting) {
	enc, err := b(s)
	if err != nil {
		t.Fatal(err)
	}

	if err := assertNoPanic(t, enc.Close, "on first Close()"); err != nil {
		t.Fatal(err)
	}
	if err := assertNoPanic(t, enc.Close, "on second Close()"); err != nil {
		t.Fatal(err)
	}
}

// VideoCompressorPipelineTest pushes solid frames through a Pipeline and
// expects compressed output for every one of them, including a forced key
// frame in the middle.
func VideoCompressorPipelineTest(t *testing.T, b codec.VideoCompressorBuilder, s codec.VideoSetting, frames int) {
	p, err := codec.NewPipeline(s, b)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	buf := frame.NewBuffer(s.Width, s.Height)
	buf.Fill(color.RGBA{R: 255, G: 255, A: 255})

	for i := 0; i < frames; i++ {
		if i == frames/2 {
			p.ForceKeyFrame()
		}
		out, err := p.Encode(buf.Pix, s.Width, s.Height, 10*time.Millisecond)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if len(out) == 0 {
			t.Fatalf("frame %d: no output", i)
		}
	}
	if got, want := p.PTS(), int64(10*frames); got != want {
		t.Errorf("Expected pts %d, got %d", want, got)
	}
}
