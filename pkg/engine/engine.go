// Package engine defines the boundary between the media session pump and a
// negotiation engine. An Engine owns ICE, DTLS, SRTP and RTP state but does
// no I/O of its own: the caller polls it for outputs, performs the socket
// work, and feeds back what it read and when timers fire.
package engine

import (
	"errors"
	"net/netip"
	"time"

	"github.com/pion/logging"
)

var (
	// ErrProtocol wraps failures the engine reports after setup, like a
	// failed handshake.
	ErrProtocol = errors.New("engine: protocol error")
	// ErrNegotiation wraps offers the engine can't answer.
	ErrNegotiation = errors.New("engine: negotiation failed")
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine: closed")
)

// Engine is a sans-IO session engine.
type Engine interface {
	// AddLocalCandidate advertises addr as a host candidate. It must be
	// called before AcceptOffer.
	AddLocalCandidate(addr netip.AddrPort) error
	// AcceptOffer applies a remote offer and returns the local answer.
	AcceptOffer(offer string) (answer string, err error)
	// Poll returns the next output. When there is nothing to do it returns a
	// Timeout.
	Poll(now time.Time) (Output, error)
	HandleInput(in Input) error
	// Media looks up a negotiated media section.
	Media(mid Mid) (Media, bool)
	// Channel looks up an open data channel.
	Channel(id ChannelID) (Channel, bool)
	Close() error
}

// Media is a negotiated media section.
type Media interface {
	Mid() Mid
	Kind() MediaKind
	// PayloadParams returns the negotiated codecs, preferred first.
	PayloadParams() []PayloadParams
	// MatchParams returns the payload type negotiated for a codec like p.
	MatchParams(p PayloadParams) (PayloadType, bool)
	// Write sends one compressed frame with timestamp rtpTime, in the
	// codec's clock rate.
	Write(pt PayloadType, rtpTime uint32, payload []byte) error
}

// Channel is an open data channel.
type Channel interface {
	ID() ChannelID
	Write(binary bool, data []byte) error
}

// Config is passed to a Builder.
type Config struct {
	// Codecs are the only codecs the engine may negotiate.
	Codecs []PayloadParams
	// TickInterval is the Timeout Poll returns when idle.
	TickInterval time.Duration
	// GatherTimeout bounds AcceptOffer.
	GatherTimeout time.Duration
	LoggerFactory logging.LoggerFactory
}

// Builder creates a fresh engine for one session.
type Builder func(c Config) (Engine, error)
