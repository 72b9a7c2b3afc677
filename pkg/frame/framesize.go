package frame

// FrameSizeMap returns a function to get the number of bytes an unpadded
// frame will occupy in the given format.
var FrameSizeMap = map[Format]frameSizeFunc{
	FormatBGRA: frameSizeBGRA,
	FormatI420: frameSizeI420,
}

type frameSizeFunc func(width, height int) uint

func frameSizeBGRA(width, height int) uint {
	return uint(BytesPerPixel * width * height)
}

func frameSizeI420(width, height int) uint {
	yi := width * height
	ci := chromaSize(width, height)
	return uint(yi + 2*ci)
}

// chromaSize is the sample count of one subsampled chroma plane.
func chromaSize(width, height int) int {
	return ((width + 1) / 2) * ((height + 1) / 2)
}
