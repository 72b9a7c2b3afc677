package frame

type Format string

const (
	// Packed RGB Formats

	// FormatBGRA is 8-bit blue, green, red and alpha, in that byte order.
	// https://www.fourcc.org/pixel-format/rgb-bi_rgb/
	FormatBGRA Format = "BGRA"

	// YUV Formats

	// FormatI420 https://www.fourcc.org/pixel-format/yuv-i420/
	FormatI420 Format = "I420"
)

// BytesPerPixel of FormatBGRA.
const BytesPerPixel = 4
