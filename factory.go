package mediasession

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/pion/logging"
	mlogging "github.com/pion/mediasession/internal/logging"
	"github.com/pion/mediasession/pkg/engine"
	"github.com/pion/sdp/v3"
	"github.com/pion/transport/v3/stdnet"
)

// Factory turns offers into running sessions. Sessions share nothing but
// the Factory's configuration.
type Factory struct {
	cfg Config
	log logging.LeveledLogger
}

// NewFactory validates the options against DefaultConfig.
func NewFactory(opts ...Option) (*Factory, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Net == nil {
		n, err := stdnet.NewNet()
		if err != nil {
			return nil, newError(ErrConfiguration, "network", err)
		}
		cfg.Net = n
	}
	return &Factory{
		cfg: cfg,
		log: mlogging.Or(cfg.LoggerFactory).NewLogger("factory"),
	}, nil
}

// Accept answers offer and starts a session streaming to the offerer. The
// offer is checked before any socket or engine is created. On error nothing
// is left running.
func (f *Factory) Accept(offer string) (answer string, s *Session, err error) {
	if err := checkOffer(offer, f.cfg.Codec); err != nil {
		return "", nil, newError(ErrNegotiation, "parse offer", err)
	}

	host := f.cfg.HostAddress
	if !host.IsValid() {
		if host, err = SelectHostAddress(f.cfg.Net); err != nil {
			return "", nil, newError(ErrConfiguration, "select host address", err)
		}
	}

	conn, err := f.cfg.Net.ListenPacket("udp4", f.cfg.ListenAddress)
	if err != nil {
		return "", nil, newError(ErrTransport, "listen", err)
	}
	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()
	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", nil, newError(ErrTransport, "listen", fmt.Errorf("unexpected local address %T", conn.LocalAddr()))
	}

	eng, err := f.cfg.EngineBuilder(engine.Config{
		Codecs:        []engine.PayloadParams{f.cfg.Codec},
		TickInterval:  f.cfg.TickInterval,
		GatherTimeout: f.cfg.GatherTimeout,
		LoggerFactory: f.cfg.LoggerFactory,
	})
	if err != nil {
		return "", nil, newError(ErrConfiguration, "build engine", err)
	}
	defer func() {
		if err != nil {
			_ = eng.Close()
		}
	}()

	candidate := netip.AddrPortFrom(host, uint16(local.Port))
	if err = eng.AddLocalCandidate(candidate); err != nil {
		return "", nil, newError(ErrConfiguration, "add candidate", err)
	}
	if answer, err = eng.AcceptOffer(offer); err != nil {
		return "", nil, newError(ErrNegotiation, "accept offer", err)
	}

	if s, err = newSession(eng, conn, f.cfg); err != nil {
		return "", nil, err
	}
	f.log.Debugf("session %s: answering from %s", s.ID(), candidate)
	s.Start()
	return answer, s, nil
}

var errNoMatchingCodec = errors.New("offer has no media section for the configured codec")

// checkOffer parses offer and makes sure one of its media sections offers
// codec.
func checkOffer(offer string, codec engine.PayloadParams) error {
	var desc sdp.SessionDescription
	if err := desc.UnmarshalString(offer); err != nil {
		return err
	}

	kind, name, _ := strings.Cut(codec.MimeType, "/")
	for _, m := range desc.MediaDescriptions {
		if !strings.EqualFold(m.MediaName.Media, kind) {
			continue
		}
		for _, format := range m.MediaName.Formats {
			pt, err := strconv.ParseUint(format, 10, 8)
			if err != nil {
				continue
			}
			c, err := desc.GetCodecForPayloadType(uint8(pt))
			if err != nil {
				continue
			}
			if strings.EqualFold(c.Name, name) && c.ClockRate == codec.ClockRate {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s/%d", errNoMatchingCodec, codec.MimeType, codec.ClockRate)
}
