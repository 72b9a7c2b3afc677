package mediasession

import (
	"errors"
	"fmt"
	"image/color"
	"net/netip"
	"time"

	"github.com/pion/logging"
	"github.com/pion/mediasession/pkg/codec"
	"github.com/pion/mediasession/pkg/driver/videotest"
	"github.com/pion/mediasession/pkg/engine"
	"github.com/pion/mediasession/pkg/ext/webrtc"
	"github.com/pion/transport/v3"
)

const (
	DefaultWidth          = 300
	DefaultHeight         = 300
	DefaultFrameDuration  = 10 * time.Millisecond
	DefaultBitRate        = 5 * 1024 * 1024
	DefaultClockRate      = 90000
	DefaultReadBufferSize = 2000
	DefaultListenAddress  = "0.0.0.0:0"
)

// DefaultCodec is the only codec offered by default.
var DefaultCodec = engine.PayloadParams{
	PayloadType: 96,
	MimeType:    "video/VP8",
	ClockRate:   DefaultClockRate,
}

// DefaultChannelReply is sent back for every data channel message.
var DefaultChannelReply = []byte("pong")

// Config holds everything a Factory or Session needs.
type Config struct {
	Width, Height int
	FrameDuration time.Duration
	// BitRate is the compressor target in bits per second.
	BitRate int
	// Codec is the single codec the engine negotiates.
	Codec     engine.PayloadParams
	ClockRate uint32

	ReadBufferSize int
	ListenAddress  string
	// HostAddress is advertised as the host candidate. When unset the first
	// usable address of Net is used.
	HostAddress netip.Addr
	// Net is used to enumerate interfaces and bind the session socket.
	// nil means the host network.
	Net transport.Net

	// TickInterval and GatherTimeout are passed to the engine.
	TickInterval  time.Duration
	GatherTimeout time.Duration

	TrackPolicy  TrackPolicy
	ChannelReply []byte

	EngineBuilder     engine.Builder
	CompressorBuilder codec.VideoCompressorBuilder
	FrameSource       FrameSourceBuilder

	Observer      Observer
	LoggerFactory logging.LoggerFactory
}

// Option configures a Config.
type Option func(*Config)

// DefaultConfig returns a 300x300 VP8 stream at 10 ms per frame on the pion
// engine. A compressor builder must still be set with WithCompressor.
func DefaultConfig() Config {
	return Config{
		Width:          DefaultWidth,
		Height:         DefaultHeight,
		FrameDuration:  DefaultFrameDuration,
		BitRate:        DefaultBitRate,
		Codec:          DefaultCodec,
		ClockRate:      DefaultClockRate,
		ReadBufferSize: DefaultReadBufferSize,
		ListenAddress:  DefaultListenAddress,
		TrackPolicy:    SingleVideoSend,
		ChannelReply:   DefaultChannelReply,
		EngineBuilder:  webrtc.Builder,
		FrameSource:    solidSource(videotest.Yellow),
	}
}

func solidSource(c color.RGBA) FrameSourceBuilder {
	return func(width, height int) (FrameSource, error) {
		return videotest.NewSolid(width, height, c), nil
	}
}

// WithFrameSize sets the encoded frame size. Both must be even.
func WithFrameSize(width, height int) Option {
	return func(c *Config) {
		c.Width, c.Height = width, height
	}
}

// WithFrameDuration sets the presentation time each frame adds.
func WithFrameDuration(d time.Duration) Option {
	return func(c *Config) {
		c.FrameDuration = d
	}
}

func WithBitRate(bps int) Option {
	return func(c *Config) {
		c.BitRate = bps
	}
}

// WithCodec replaces the negotiated codec. The compressor must produce the
// same format.
func WithCodec(p engine.PayloadParams) Option {
	return func(c *Config) {
		c.Codec = p
	}
}

// WithHostAddress pins the advertised host candidate address.
func WithHostAddress(addr netip.Addr) Option {
	return func(c *Config) {
		c.HostAddress = addr
	}
}

func WithListenAddress(addr string) Option {
	return func(c *Config) {
		c.ListenAddress = addr
	}
}

// WithNet runs sessions on n, for example a vnet.Net in tests.
func WithNet(n transport.Net) Option {
	return func(c *Config) {
		c.Net = n
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(c *Config) {
		c.TickInterval = d
	}
}

func WithTrackPolicy(p TrackPolicy) Option {
	return func(c *Config) {
		c.TrackPolicy = p
	}
}

// WithChannelReply sets the payload sent back for data channel messages.
func WithChannelReply(reply []byte) Option {
	return func(c *Config) {
		c.ChannelReply = reply
	}
}

func WithEngine(b engine.Builder) Option {
	return func(c *Config) {
		c.EngineBuilder = b
	}
}

func WithCompressor(b codec.VideoCompressorBuilder) Option {
	return func(c *Config) {
		c.CompressorBuilder = b
	}
}

func WithFrameSource(b FrameSourceBuilder) Option {
	return func(c *Config) {
		c.FrameSource = b
	}
}

// WithObserver adds o to the observers notified by every session.
func WithObserver(o Observer) Option {
	return func(c *Config) {
		switch existing := c.Observer.(type) {
		case nil:
			c.Observer = o
		case MultiObserver:
			c.Observer = append(existing, o)
		default:
			c.Observer = MultiObserver{existing, o}
		}
	}
}

func WithLoggerFactory(f logging.LoggerFactory) Option {
	return func(c *Config) {
		c.LoggerFactory = f
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 || c.Width%2 != 0 || c.Height%2 != 0 {
		errs = append(errs, fmt.Errorf("frame size %dx%d must be positive and even", c.Width, c.Height))
	}
	if c.FrameDuration < time.Millisecond {
		errs = append(errs, fmt.Errorf("frame duration %v is below 1ms", c.FrameDuration))
	}
	if c.Codec.MimeType == "" || c.Codec.ClockRate == 0 {
		errs = append(errs, errors.New("codec is not set"))
	}
	if c.ReadBufferSize <= 0 {
		errs = append(errs, errors.New("read buffer size must be positive"))
	}
	if c.EngineBuilder == nil {
		errs = append(errs, errors.New("no engine builder"))
	}
	if c.CompressorBuilder == nil {
		errs = append(errs, errors.New("no compressor builder"))
	}
	if c.FrameSource == nil {
		errs = append(errs, errors.New("no frame source"))
	}
	if c.TrackPolicy == nil {
		errs = append(errs, errors.New("no track policy"))
	}
	if err := errors.Join(errs...); err != nil {
		return newError(ErrConfiguration, "validate config", err)
	}
	if c.ClockRate == 0 {
		c.ClockRate = c.Codec.ClockRate
	}
	return nil
}
