package webrtc

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/pion/mediasession/pkg/engine"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
)

const (
	defaultMTU    = 1200
	rtpHeaderSize = 12
)

var errNoLocalTrack = errors.New("webrtc: media has no local track")

type media struct {
	mid         engine.Mid
	kind        engine.MediaKind
	transceiver *webrtc.RTPTransceiver
	fallback    []engine.PayloadParams

	mu        sync.Mutex
	track     *webrtc.TrackLocalStaticRTP
	payloader rtp.Payloader
	sequencer rtp.Sequencer
	ssrc      uint32
}

func newMedia(t *webrtc.RTPTransceiver, track *webrtc.TrackLocalStaticRTP, fallback []engine.PayloadParams) *media {
	m := &media{
		mid:         engine.Mid(t.Mid()),
		kind:        mediaKind(t.Kind()),
		transceiver: t,
		fallback:    fallback,
		track:       track,
		sequencer:   rtp.NewRandomSequencer(),
		ssrc:        rand.Uint32(),
	}
	if track != nil {
		m.payloader = payloaderFor(track.Codec().MimeType)
	}
	return m
}

func payloaderFor(mimeType string) rtp.Payloader {
	switch {
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP9):
		return &codecs.VP9Payloader{}
	case strings.EqualFold(mimeType, webrtc.MimeTypeH264):
		return &codecs.H264Payloader{}
	default:
		return &codecs.VP8Payloader{EnablePictureID: true}
	}
}

func (m *media) Mid() engine.Mid { return m.mid }

func (m *media) Kind() engine.MediaKind { return m.kind }

func (m *media) PayloadParams() []engine.PayloadParams {
	sender := m.transceiver.Sender()
	if sender == nil {
		return m.fallback
	}
	negotiated := sender.GetParameters().Codecs
	if len(negotiated) == 0 {
		return m.fallback
	}
	params := make([]engine.PayloadParams, 0, len(negotiated))
	for _, c := range negotiated {
		params = append(params, fromCodecParameters(c))
	}
	return params
}

func (m *media) MatchParams(p engine.PayloadParams) (engine.PayloadType, bool) {
	for _, c := range m.PayloadParams() {
		if c.Matches(p) {
			return c.PayloadType, true
		}
	}
	return 0, false
}

// Write packetizes one compressed frame. The marker bit is set on the last
// packet of the frame.
func (m *media) Write(pt engine.PayloadType, rtpTime uint32, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.track == nil {
		return fmt.Errorf("%w: mid %s", errNoLocalTrack, m.mid)
	}
	if len(payload) == 0 {
		return nil
	}

	payloads := m.payloader.Payload(defaultMTU-rtpHeaderSize, payload)
	for i, pp := range payloads {
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         i == len(payloads)-1,
				PayloadType:    uint8(pt),
				SequenceNumber: m.sequencer.NextSequenceNumber(),
				Timestamp:      rtpTime,
				SSRC:           m.ssrc,
			},
			Payload: pp,
		}
		if err := m.track.WriteRTP(pkt); err != nil {
			return err
		}
	}
	return nil
}

func mediaKind(t webrtc.RTPCodecType) engine.MediaKind {
	switch t {
	case webrtc.RTPCodecTypeAudio:
		return engine.MediaKindAudio
	case webrtc.RTPCodecTypeVideo:
		return engine.MediaKindVideo
	default:
		return engine.MediaKindUnknown
	}
}

func fromCodecParameters(c webrtc.RTPCodecParameters) engine.PayloadParams {
	return engine.PayloadParams{
		PayloadType: engine.PayloadType(c.PayloadType),
		MimeType:    c.MimeType,
		ClockRate:   c.ClockRate,
		FmtpLine:    c.SDPFmtpLine,
	}
}

func toCodecParameters(p engine.PayloadParams) webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    p.MimeType,
			ClockRate:   p.ClockRate,
			SDPFmtpLine: p.FmtpLine,
		},
		PayloadType: webrtc.PayloadType(p.PayloadType),
	}
}

func directionFromTransceiver(d webrtc.RTPTransceiverDirection) engine.Direction {
	switch d {
	case webrtc.RTPTransceiverDirectionSendrecv:
		return engine.DirectionSendRecv
	case webrtc.RTPTransceiverDirectionSendonly:
		return engine.DirectionSendOnly
	case webrtc.RTPTransceiverDirectionRecvonly:
		return engine.DirectionRecvOnly
	case webrtc.RTPTransceiverDirectionInactive:
		return engine.DirectionInactive
	default:
		return engine.DirectionUnknown
	}
}
