package engine

import (
	"strings"
)

// MediaKind is the kind of a negotiated media section.
type MediaKind int

const (
	MediaKindUnknown MediaKind = iota
	MediaKindAudio
	MediaKindVideo
)

func (k MediaKind) String() string {
	switch k {
	case MediaKindAudio:
		return "audio"
	case MediaKindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Direction is the negotiated direction of a media section, seen from the
// local side.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionSendRecv
	DirectionSendOnly
	DirectionRecvOnly
	DirectionInactive
)

func (d Direction) String() string {
	switch d {
	case DirectionSendRecv:
		return "sendrecv"
	case DirectionSendOnly:
		return "sendonly"
	case DirectionRecvOnly:
		return "recvonly"
	case DirectionInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Sends reports whether the local side transmits media in this direction.
func (d Direction) Sends() bool {
	return d == DirectionSendRecv || d == DirectionSendOnly
}

// Mid identifies a media section.
type Mid string

// ChannelID identifies a data channel.
type ChannelID uint16

// PayloadType is the RTP payload type code.
type PayloadType uint8

// PayloadParams describes one negotiated codec.
type PayloadParams struct {
	PayloadType PayloadType
	MimeType    string
	ClockRate   uint32
	FmtpLine    string
}

// Matches reports whether p and o describe the same codec, ignoring the
// payload type code.
func (p PayloadParams) Matches(o PayloadParams) bool {
	return strings.EqualFold(p.MimeType, o.MimeType) &&
		p.ClockRate == o.ClockRate &&
		fmtpEqual(p.FmtpLine, o.FmtpLine)
}

// fmtpEqual compares fmtp lines as unordered key=value sets.
func fmtpEqual(a, b string) bool {
	pa, pb := parseFmtp(a), parseFmtp(b)
	if len(pa) != len(pb) {
		return false
	}
	for k, v := range pa {
		if w, ok := pb[k]; !ok || !strings.EqualFold(v, w) {
			return false
		}
	}
	return true
}

func parseFmtp(line string) map[string]string {
	params := make(map[string]string)
	for _, kv := range strings.Split(line, ";") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		k, v, _ := strings.Cut(kv, "=")
		params[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return params
}
