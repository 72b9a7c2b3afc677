package frame

// BGRAToI420 converts a BGRA buffer into planar I420 using the BT.601
// studio-range integer transform and appends the result to dst[:0].
//
// The output is the width*height Y plane followed by the U and V planes,
// each (width/2)*(height/2) samples taken from the top-left pixel of every
// 2x2 block. The stride of src is len(src)/height.
func BGRAToI420(dst, src []byte, width, height int) ([]byte, error) {
	if err := validate(src, width, height); err != nil {
		return nil, err
	}

	stride := len(src) / height
	cw, ch := (width+1)/2, (height+1)/2
	size := int(frameSizeI420(width, height))
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]

	yPlane := dst[:width*height]
	uPlane := dst[width*height : width*height+cw*ch]
	vPlane := dst[width*height+cw*ch:]

	i := 0
	for y := 0; y < height; y++ {
		row := src[y*stride:]
		for x := 0; x < width; x++ {
			o := 4 * x
			b, g, r := int32(row[o]), int32(row[o+1]), int32(row[o+2])
			yPlane[i] = clamp(((66*r + 129*g + 25*b + 128) >> 8) + 16)
			i++
		}
	}

	i = 0
	for y := 0; y < height; y += 2 {
		row := src[y*stride:]
		for x := 0; x < width; x += 2 {
			o := 4 * x
			b, g, r := int32(row[o]), int32(row[o+1]), int32(row[o+2])
			uPlane[i] = clamp(((-38*r - 74*g + 112*b + 128) >> 8) + 128)
			vPlane[i] = clamp(((112*r - 94*g - 18*b + 128) >> 8) + 128)
			i++
		}
	}

	return dst, nil
}

// ToI420 converts b, see BGRAToI420.
func (b Buffer) ToI420(dst []byte) ([]byte, error) {
	return BGRAToI420(dst, b.Pix, b.Width, b.Height)
}

func clamp(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
