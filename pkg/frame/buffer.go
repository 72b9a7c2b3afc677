package frame

import (
	"errors"
	"fmt"
	"image/color"
)

var (
	// ErrOddDimension is returned for frames whose width or height is odd.
	// 4:2:0 chroma subsampling takes one sample per 2x2 block and no padding
	// rule is defined for a trailing row or column.
	ErrOddDimension = errors.New("frame: odd width or height")
	// ErrFrameSize is returned when a pixel buffer doesn't hold a whole
	// number of rows of at least 4*width bytes each.
	ErrFrameSize = errors.New("frame: invalid buffer size")
)

// Buffer is a caller-owned BGRA pixel buffer. Rows may be padded: the byte
// stride is len(Pix)/Height and must be at least 4*Width.
type Buffer struct {
	Pix    []byte
	Width  int
	Height int
}

// NewBuffer allocates an unpadded BGRA buffer.
func NewBuffer(width, height int) Buffer {
	return Buffer{
		Pix:    make([]byte, frameSizeBGRA(width, height)),
		Width:  width,
		Height: height,
	}
}

// Stride returns the byte length of one row.
func (b Buffer) Stride() int {
	if b.Height <= 0 {
		return 0
	}
	return len(b.Pix) / b.Height
}

// Validate checks the buffer against the layout rules the I420 conversion relies on.
func (b Buffer) Validate() error {
	return validate(b.Pix, b.Width, b.Height)
}

// Fill paints every pixel with c. Padding bytes are left untouched.
func (b Buffer) Fill(c color.RGBA) {
	stride := b.Stride()
	for y := 0; y < b.Height; y++ {
		row := b.Pix[y*stride : y*stride+BytesPerPixel*b.Width]
		for i := 0; i < len(row); i += BytesPerPixel {
			row[i+0] = c.B
			row[i+1] = c.G
			row[i+2] = c.R
			row[i+3] = c.A
		}
	}
}

func validate(pix []byte, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrFrameSize, width, height)
	}
	if width%2 != 0 || height%2 != 0 {
		return fmt.Errorf("%w: %dx%d", ErrOddDimension, width, height)
	}
	if len(pix)%height != 0 {
		return fmt.Errorf("%w: %d bytes is not a whole number of %d rows", ErrFrameSize, len(pix), height)
	}
	if stride := len(pix) / height; stride < BytesPerPixel*width {
		return fmt.Errorf("%w: stride %d is less than %d", ErrFrameSize, stride, BytesPerPixel*width)
	}
	return nil
}
