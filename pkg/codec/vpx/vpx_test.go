package vpx

import (
	"testing"

	"github.com/pion/mediasession/pkg/codec"
	"github.com/pion/mediasession/pkg/codec/internal/codectest"
)

func TestCompressor(t *testing.T) {
	setting := codec.VideoSetting{
		Width:         300,
		Height:        300,
		TargetBitRate: 5 * 1024 * 1024,
		FrameRate:     100,
	}
	for name, builder := range map[string]codec.VideoCompressorBuilder{
		"VP8": NewVP8,
		"VP9": NewVP9,
	} {
		builder := builder
		t.Run(name, func(t *testing.T) {
			t.Run("CloseTwice", func(t *testing.T) {
				codectest.VideoCompressorCloseTwiceTest(t, builder, setting)
			})
			t.Run("Pipeline", func(t *testing.T) {
				codectest.VideoCompressorPipelineTest(t, builder, setting, 10)
			})
		})
	}
}

func TestCompressorRejectsSize(t *testing.T) {
	c, err := NewVP8(codec.VideoSetting{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, err := c.Compress(make([]byte, 10), 0, 10); err == nil {
		t.Fatal("Expected an error for a short frame")
	}
}

func TestCompressorAfterClose(t *testing.T) {
	c, err := NewVP8(codec.VideoSetting{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Compress(make([]byte, 24), 0, 10); err == nil {
		t.Fatal("Expected an error after Close")
	}
}

func TestParamsRejectTimebase(t *testing.T) {
	_, err := DefaultParams().VP8()(codec.VideoSetting{
		Width: 4, Height: 4,
		Timebase: codec.Timebase{Num: 1, Den: 60},
	})
	if err == nil {
		t.Fatal("Expected an error for a 1/60 timebase")
	}
}
