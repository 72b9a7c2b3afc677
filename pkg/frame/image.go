package frame

import (
	"image"

	"golang.org/x/image/draw"
)

// FromImage scales src into a width x height BGRA buffer. dst is reused when
// it already has the requested geometry.
func FromImage(dst Buffer, src image.Image, width, height int) Buffer {
	if dst.Width != width || dst.Height != height || dst.Stride() < BytesPerPixel*width {
		dst = NewBuffer(width, height)
	}

	rgba := &image.RGBA{
		Pix:    dst.Pix,
		Stride: dst.Stride(),
		Rect:   image.Rect(0, 0, width, height),
	}
	draw.ApproxBiLinear.Scale(rgba, rgba.Rect, src, src.Bounds(), draw.Src, nil)

	// RGBA -> BGRA
	stride := dst.Stride()
	for y := 0; y < height; y++ {
		row := dst.Pix[y*stride : y*stride+BytesPerPixel*width]
		for i := 0; i < len(row); i += BytesPerPixel {
			row[i], row[i+2] = row[i+2], row[i]
		}
	}
	return dst
}
