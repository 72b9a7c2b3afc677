package webrtc

import (
	"github.com/pion/mediasession/pkg/engine"
	"github.com/pion/webrtc/v4"
)

type channel struct {
	id engine.ChannelID
	dc *webrtc.DataChannel
}

func (c *channel) ID() engine.ChannelID { return c.id }

func (c *channel) Write(binary bool, data []byte) error {
	if binary {
		return c.dc.Send(data)
	}
	return c.dc.SendText(string(data))
}
