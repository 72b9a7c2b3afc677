// Package vpx implements VP8 and VP9 compressors.
// This package requires libvpx headers and libraries to be built.
package vpx

// #cgo pkg-config: vpx
// #include <stdlib.h>
// #include <vpx/vpx_encoder.h>
// #include <vpx/vpx_image.h>
// #include <vpx/vp8cx.h>
//
// // C function pointers
// vpx_codec_iface_t *ifaceVP8() {
//   return vpx_codec_vp8_cx();
// }
// vpx_codec_iface_t *ifaceVP9() {
//   return vpx_codec_vp9_cx();
// }
//
// // C union helpers
// void *pktBuf(vpx_codec_cx_pkt_t *pkt) {
//   return pkt->data.frame.buf;
// }
// int pktSz(vpx_codec_cx_pkt_t *pkt) {
//   return pkt->data.frame.sz;
// }
//
// // Alloc helpers
// vpx_codec_ctx_t *newCtx() {
//   return malloc(sizeof(vpx_codec_ctx_t));
// }
// vpx_image_t *newImage() {
//   return malloc(sizeof(vpx_image_t));
// }
//
// // vpx_codec_control is variadic
// vpx_codec_err_t setCPUUsed(vpx_codec_ctx_t *codec, int v) {
//   return vpx_codec_control(codec, VP8E_SET_CPUUSED, v);
// }
//
// // Wrap encode function to keep Go memory safe
// vpx_codec_err_t encode_wrapper(
//     vpx_codec_ctx_t* codec, vpx_image_t* raw,
//     long t, unsigned long dt, long flags, unsigned long deadline,
//     unsigned char *y_ptr, unsigned char *cb_ptr, unsigned char *cr_ptr) {
//   raw->planes[0] = y_ptr;
//   raw->planes[1] = cb_ptr;
//   raw->planes[2] = cr_ptr;
//   vpx_codec_err_t ret = vpx_codec_encode(codec, raw, t, dt, flags, deadline);
//   raw->planes[0] = raw->planes[1] = raw->planes[2] = 0;
//   return ret;
// }
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/pion/mediasession/pkg/codec"
)

type iface int

const (
	vp8 iface = iota
	vp9
)

func (i iface) cx() *C.vpx_codec_iface_t {
	if i == vp9 {
		return C.ifaceVP9()
	}
	return C.ifaceVP8()
}

type compressor struct {
	codec *C.vpx_codec_ctx_t
	raw   *C.vpx_image_t
	cfg   *C.vpx_codec_enc_cfg_t

	width, height int
	ySize, cSize  int

	mu       sync.Mutex
	keyFrame bool
	closed   bool
}

func newCompressor(s codec.VideoSetting, p Params, i iface) (*compressor, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("vpx: invalid frame size %dx%d", s.Width, s.Height)
	}
	if s.Timebase != (codec.Timebase{}) && s.Timebase != codec.Millisecond {
		return nil, fmt.Errorf("vpx: unsupported timebase %d/%d", s.Timebase.Num, s.Timebase.Den)
	}
	if s.TargetBitRate == 0 {
		s.TargetBitRate = 100000
	}

	cfg := &C.vpx_codec_enc_cfg_t{}
	if ec := C.vpx_codec_enc_config_default(i.cx(), cfg, 0); ec != 0 {
		return nil, fmt.Errorf("vpx_codec_enc_config_default failed (%d)", ec)
	}
	cfg.g_w = C.uint(s.Width)
	cfg.g_h = C.uint(s.Height)
	cfg.g_timebase.num = 1
	cfg.g_timebase.den = 1000
	cfg.rc_target_bitrate = C.uint(s.TargetBitRate / 1000)
	cfg.rc_end_usage = uint32(p.RateControlEndUsage)
	cfg.g_error_resilient = C.vpx_codec_er_flags_t(p.ErrorResilient)
	cfg.g_lag_in_frames = C.uint(p.LagInFrames)
	if p.KeyFrameInterval > 0 {
		cfg.kf_max_dist = C.uint(p.KeyFrameInterval)
	}

	cfg.rc_resize_allowed = 0
	cfg.g_pass = C.VPX_RC_ONE_PASS

	raw := &C.vpx_image_t{}
	if C.vpx_img_alloc(raw, C.VPX_IMG_FMT_I420, cfg.g_w, cfg.g_h, 1) == nil {
		return nil, errors.New("vpx_img_alloc failed")
	}
	rawNoBuffer := C.newImage()
	*rawNoBuffer = *raw // Copy only parameters
	C.vpx_img_free(raw) // Pointers will be overwritten by the raw buffer

	cw := (s.Width + 1) / 2
	ch := (s.Height + 1) / 2
	rawNoBuffer.stride[0] = C.int(s.Width)
	rawNoBuffer.stride[1] = C.int(cw)
	rawNoBuffer.stride[2] = C.int(cw)

	ctx := C.newCtx()
	if ec := C.vpx_codec_enc_init_ver(
		ctx, i.cx(), cfg, 0, C.VPX_ENCODER_ABI_VERSION,
	); ec != 0 {
		C.free(unsafe.Pointer(rawNoBuffer))
		C.free(unsafe.Pointer(ctx))
		return nil, fmt.Errorf("vpx_codec_enc_init failed (%d)", ec)
	}
	if p.CPUUsed != 0 {
		if ec := C.setCPUUsed(ctx, C.int(p.CPUUsed)); ec != C.VPX_CODEC_OK {
			C.vpx_codec_destroy(ctx)
			C.free(unsafe.Pointer(rawNoBuffer))
			C.free(unsafe.Pointer(ctx))
			return nil, fmt.Errorf("vpx_codec_control failed (%d)", ec)
		}
	}

	return &compressor{
		codec:  ctx,
		raw:    rawNoBuffer,
		cfg:    cfg,
		width:  s.Width,
		height: s.Height,
		ySize:  s.Width * s.Height,
		cSize:  cw * ch,
	}, nil
}

func (e *compressor) Compress(yuv []byte, pts, duration int64) ([][]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.New("vpx: compressor closed")
	}
	if len(yuv) != e.ySize+2*e.cSize {
		return nil, fmt.Errorf("vpx: got %d bytes, want %d for %dx%d I420", len(yuv), e.ySize+2*e.cSize, e.width, e.height)
	}

	y := yuv[:e.ySize]
	u := yuv[e.ySize : e.ySize+e.cSize]
	v := yuv[e.ySize+e.cSize:]

	var flags int
	if e.keyFrame {
		flags |= C.VPX_EFLAG_FORCE_KF
		e.keyFrame = false
	}
	if ec := C.encode_wrapper(
		e.codec, e.raw,
		C.long(pts), C.ulong(duration), C.long(flags), C.VPX_DL_REALTIME,
		(*C.uchar)(&y[0]), (*C.uchar)(&u[0]), (*C.uchar)(&v[0]),
	); ec != C.VPX_CODEC_OK {
		return nil, fmt.Errorf("vpx_codec_encode failed (%d)", ec)
	}

	var packets [][]byte
	var iter C.vpx_codec_iter_t
	for {
		pkt := C.vpx_codec_get_cx_data(e.codec, &iter)
		if pkt == nil {
			break
		}
		if pkt.kind == C.VPX_CODEC_CX_FRAME_PKT {
			packets = append(packets, C.GoBytes(unsafe.Pointer(C.pktBuf(pkt)), C.pktSz(pkt)))
		}
	}
	return packets, nil
}

func (e *compressor) ForceKeyFrame() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keyFrame = true
}

func (e *compressor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	C.free(unsafe.Pointer(e.raw))
	defer C.free(unsafe.Pointer(e.codec))

	if C.vpx_codec_destroy(e.codec) != 0 {
		return errors.New("vpx_codec_destroy failed")
	}
	return nil
}
