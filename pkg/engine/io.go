package engine

import (
	"net"
	"time"
)

// Output is what Poll returns: Timeout, Transmit or an Event.
type Output interface {
	isOutput()
}

// Timeout asks to be polled again no later than At.
type Timeout struct {
	At time.Time
}

// Transmit carries protocol bytes to send to Destination right away.
type Transmit struct {
	Destination net.Addr
	Contents    []byte
}

func (Timeout) isOutput()  {}
func (Transmit) isOutput() {}

// Event is a semantic occurrence reported through Poll.
type Event interface {
	Output
	isEvent()
}

type event struct{}

func (event) isOutput() {}
func (event) isEvent()  {}

// MediaAdded is reported once per negotiated media section.
type MediaAdded struct {
	event
	Mid       Mid
	Kind      MediaKind
	Direction Direction
}

// ChannelOpen is reported when a data channel becomes usable.
type ChannelOpen struct {
	event
	ID    ChannelID
	Label string
}

// ChannelData carries one data channel message.
type ChannelData struct {
	event
	ID     ChannelID
	Binary bool
	Data   []byte
}

// ConnectionState is the aggregate transport state.
type ConnectionState int

const (
	ConnectionStateNew ConnectionState = iota
	ConnectionStateConnecting
	ConnectionStateConnected
	ConnectionStateDisconnected
	ConnectionStateFailed
	ConnectionStateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateNew:
		return "new"
	case ConnectionStateConnecting:
		return "connecting"
	case ConnectionStateConnected:
		return "connected"
	case ConnectionStateDisconnected:
		return "disconnected"
	case ConnectionStateFailed:
		return "failed"
	case ConnectionStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionStateChange reports a transition of the aggregate state.
type ConnectionStateChange struct {
	event
	State ConnectionState
}

// KeyframeRequested is reported when the remote asks for a key frame on Mid.
type KeyframeRequested struct {
	event
	Mid Mid
}

// Disconnected is reported once the peer is gone. No further output follows.
type Disconnected struct {
	event
}

// Input is what HandleInput accepts: Receive or TimeoutFired.
type Input interface {
	isInput()
}

// Receive is one datagram read from the socket.
type Receive struct {
	At          time.Time
	Source      net.Addr
	Destination net.Addr
	Contents    []byte
}

// TimeoutFired signals that the last Timeout elapsed.
type TimeoutFired struct {
	At time.Time
}

func (Receive) isInput()      {}
func (TimeoutFired) isInput() {}
