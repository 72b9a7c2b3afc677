package webrtc

import (
	"github.com/pion/mediasession/pkg/engine"
	"github.com/pion/sdp/v3"
)

// mediaDirections maps every mid of a session description to the direction
// it declares.
func mediaDirections(desc string) (map[engine.Mid]engine.Direction, error) {
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(desc)); err != nil {
		return nil, err
	}

	dirs := make(map[engine.Mid]engine.Direction, len(parsed.MediaDescriptions))
	for _, m := range parsed.MediaDescriptions {
		mid, ok := m.Attribute(sdp.AttrKeyMID)
		if !ok {
			continue
		}
		dir := engine.DirectionSendRecv
		for _, a := range m.Attributes {
			switch a.Key {
			case sdp.AttrKeySendRecv:
				dir = engine.DirectionSendRecv
			case sdp.AttrKeySendOnly:
				dir = engine.DirectionSendOnly
			case sdp.AttrKeyRecvOnly:
				dir = engine.DirectionRecvOnly
			case sdp.AttrKeyInactive:
				dir = engine.DirectionInactive
			}
		}
		dirs[engine.Mid(mid)] = dir
	}
	return dirs, nil
}
