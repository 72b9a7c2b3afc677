// Package videotest provides synthetic frame sources for testing and demos.
package videotest

import (
	"image"
	"image/color"
	"math/rand"

	"github.com/pion/mediasession/pkg/frame"
)

// Yellow is the default solid color.
var Yellow = color.RGBA{R: 255, G: 255, B: 0, A: 255}

// Solid produces the same single-color frame every time.
type Solid struct {
	buf frame.Buffer
}

func NewSolid(width, height int, c color.RGBA) *Solid {
	buf := frame.NewBuffer(width, height)
	buf.Fill(c)
	return &Solid{buf: buf}
}

func (s *Solid) Frame() (frame.Buffer, error) {
	return s.buf, nil
}

// ColorBars produces 75% color bars over a gray gradation, with a block of
// black and white noise in the bottom right corner that changes every
// frame.
type ColorBars struct {
	base   frame.Buffer
	buf    frame.Buffer
	random *rand.Rand

	noiseTop, noiseLeft int
}

func NewColorBars(width, height int) *ColorBars {
	colors := []color.RGBA{
		{R: 191, G: 191, B: 191, A: 255},
		{R: 191, G: 191, B: 0, A: 255},
		{R: 0, G: 191, B: 191, A: 255},
		{R: 0, G: 191, B: 0, A: 255},
		{R: 191, G: 0, B: 191, A: 255},
		{R: 191, G: 0, B: 0, A: 255},
		{R: 0, G: 0, B: 191, A: 255},
	}

	base := frame.NewBuffer(width, height)
	stride := base.Stride()
	hColorBarEnd := height * 3 / 4
	wGradationEnd := width * 5 / 7
	set := func(x, y int, c color.RGBA) {
		i := y*stride + x*frame.BytesPerPixel
		base.Pix[i+0] = c.B
		base.Pix[i+1] = c.G
		base.Pix[i+2] = c.R
		base.Pix[i+3] = c.A
	}

	for y := 0; y < hColorBarEnd; y++ {
		// Color bar
		for x := 0; x < width; x++ {
			set(x, y, colors[x*len(colors)/width])
		}
	}
	for y := hColorBarEnd; y < height; y++ {
		for x := 0; x < wGradationEnd; x++ {
			// Gray gradation
			v := uint8(x * 255 / wGradationEnd)
			set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
		for x := wGradationEnd; x < width; x++ {
			set(x, y, color.RGBA{A: 255})
		}
	}

	return &ColorBars{
		base:      base,
		buf:       frame.NewBuffer(width, height),
		random:    rand.New(rand.NewSource(0)),
		noiseTop:  hColorBarEnd,
		noiseLeft: wGradationEnd,
	}
}

func (c *ColorBars) Frame() (frame.Buffer, error) {
	copy(c.buf.Pix, c.base.Pix)
	stride := c.buf.Stride()
	for y := c.noiseTop; y < c.buf.Height; y++ {
		for x := c.noiseLeft; x < c.buf.Width; x++ {
			// Noise
			v := uint8(c.random.Int31n(2) * 255)
			i := y*stride + x*frame.BytesPerPixel
			c.buf.Pix[i+0], c.buf.Pix[i+1], c.buf.Pix[i+2] = v, v, v
		}
	}
	return c.buf, nil
}

// Image produces a still image scaled to the frame size.
type Image struct {
	buf frame.Buffer
}

func NewImage(img image.Image, width, height int) *Image {
	return &Image{buf: frame.FromImage(frame.Buffer{}, img, width, height)}
}

func (i *Image) Frame() (frame.Buffer, error) {
	return i.buf, nil
}
