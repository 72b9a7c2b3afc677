// Package webrtc implements engine.Engine on top of pion/webrtc.
//
// pion runs its ICE agent on a virtual net.PacketConn behind an ICE UDP mux.
// Whatever pion writes to that conn comes out of Poll as a Transmit, and
// datagrams passed to HandleInput are what pion reads from it. The caller
// keeps ownership of the real socket.
package webrtc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/ice/v4"
	"github.com/pion/interceptor"
	"github.com/pion/logging"
	mlogging "github.com/pion/mediasession/internal/logging"
	"github.com/pion/mediasession/pkg/engine"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
)

const (
	defaultTickInterval  = 10 * time.Millisecond
	defaultGatherTimeout = 5 * time.Second
)

var (
	errNoCodecs      = errors.New("webrtc: no codecs configured")
	errNoCandidate   = errors.New("webrtc: AddLocalCandidate must be called before AcceptOffer")
	errOfferAccepted = errors.New("webrtc: offer already accepted")
	errNotIPv4       = errors.New("webrtc: only IPv4 host candidates are supported")
	errGatherTimeout = errors.New("webrtc: timed out gathering candidates")
)

// Engine is a pion/webrtc backed engine.Engine for a single peer.
type Engine struct {
	config        engine.Config
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger

	mu           sync.Mutex
	candidate    *net.UDPAddr
	conn         *packetConn
	mux          ice.UDPMux
	pc           *webrtc.PeerConnection
	outputs      []engine.Output
	fatal        error
	medias       map[engine.Mid]*media
	channels     map[engine.ChannelID]*channel
	disconnected bool
	closed       bool

	wg sync.WaitGroup
}

// New creates an engine restricted to the configured codecs.
func New(c engine.Config) (*Engine, error) {
	if len(c.Codecs) == 0 {
		return nil, errNoCodecs
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.GatherTimeout <= 0 {
		c.GatherTimeout = defaultGatherTimeout
	}
	lf := mlogging.Or(c.LoggerFactory)
	c.LoggerFactory = lf

	return &Engine{
		config:        c,
		loggerFactory: lf,
		log:           lf.NewLogger("engine"),
		medias:        make(map[engine.Mid]*media),
		channels:      make(map[engine.ChannelID]*channel),
	}, nil
}

// Builder is an engine.Builder for this backend.
func Builder(c engine.Config) (engine.Engine, error) {
	return New(c)
}

func (e *Engine) AddLocalCandidate(addr netip.AddrPort) error {
	ip := addr.Addr().Unmap()
	if !ip.Is4() {
		return fmt.Errorf("%w: %s", errNotIPv4, addr)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.ErrClosed
	}
	if e.pc != nil {
		return errOfferAccepted
	}
	e.candidate = net.UDPAddrFromAddrPort(netip.AddrPortFrom(ip, addr.Port()))
	return nil
}

func (e *Engine) AcceptOffer(offer string) (string, error) {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return "", engine.ErrClosed
	case e.candidate == nil:
		e.mu.Unlock()
		return "", errNoCandidate
	case e.pc != nil:
		e.mu.Unlock()
		return "", errOfferAccepted
	}
	candidate := e.candidate
	e.mu.Unlock()

	m := &webrtc.MediaEngine{}
	for _, c := range e.config.Codecs {
		if err := m.RegisterCodec(toCodecParameters(c), codecType(c.MimeType)); err != nil {
			return "", err
		}
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return "", err
	}

	conn := newPacketConn(candidate, e.log, e.enqueueTransmit)
	mux := webrtc.NewICEUDPMux(e.loggerFactory.NewLogger("ice"), conn)

	se := webrtc.SettingEngine{
		LoggerFactory: e.loggerFactory,
	}
	se.SetICEUDPMux(mux)
	se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	se.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)
	if candidate.IP.IsLoopback() {
		se.SetIncludeLoopbackCandidate(true)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithSettingEngine(se),
		webrtc.WithInterceptorRegistry(ir),
	)
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		_ = mux.Close()
		return "", err
	}

	e.mu.Lock()
	e.conn, e.mux, e.pc = conn, mux, pc
	e.mu.Unlock()

	var sender *webrtc.RTPSender
	if first := e.config.Codecs[0]; codecType(first.MimeType) == webrtc.RTPCodecTypeVideo {
		track, err := webrtc.NewTrackLocalStaticRTP(toCodecParameters(first).RTPCodecCapability, "video", uuid.NewString())
		if err != nil {
			return "", err
		}
		if sender, err = pc.AddTrack(track); err != nil {
			return "", err
		}
	}

	pc.OnICEConnectionStateChange(e.onICEConnectionStateChange)
	pc.OnConnectionStateChange(e.onConnectionStateChange)
	pc.OnDataChannel(e.onDataChannel)

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer,
	}); err != nil {
		return "", fmt.Errorf("%w: %w", engine.ErrNegotiation, err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", engine.ErrNegotiation, err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("%w: %w", engine.ErrNegotiation, err)
	}
	select {
	case <-gatherComplete:
	case <-time.After(e.config.GatherTimeout):
		return "", errGatherTimeout
	}

	local := pc.LocalDescription()
	directions, err := mediaDirections(local.SDP)
	if err != nil {
		return "", err
	}

	for _, t := range pc.GetTransceivers() {
		mid := engine.Mid(t.Mid())
		if mid == "" {
			continue
		}
		dir, ok := directions[mid]
		if !ok {
			dir = directionFromTransceiver(t.Direction())
		}

		var md *media
		if sender != nil && t.Sender() == sender {
			md = newMedia(t, sender.Track().(*webrtc.TrackLocalStaticRTP), e.config.Codecs)
			e.wg.Add(1)
			go e.readRTCP(mid, sender)
		} else {
			md = newMedia(t, nil, e.config.Codecs)
		}

		e.mu.Lock()
		e.medias[mid] = md
		e.outputs = append(e.outputs, engine.MediaAdded{Mid: mid, Kind: md.kind, Direction: dir})
		e.mu.Unlock()
	}

	return local.SDP, nil
}

func (e *Engine) Poll(now time.Time) (engine.Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, engine.ErrClosed
	}
	if len(e.outputs) > 0 {
		out := e.outputs[0]
		e.outputs[0] = nil
		e.outputs = e.outputs[1:]
		return out, nil
	}
	if e.fatal != nil {
		return nil, e.fatal
	}
	return engine.Timeout{At: now.Add(e.config.TickInterval)}, nil
}

func (e *Engine) HandleInput(in engine.Input) error {
	e.mu.Lock()
	closed, conn := e.closed, e.conn
	e.mu.Unlock()
	if closed {
		return engine.ErrClosed
	}

	switch v := in.(type) {
	case engine.Receive:
		if conn == nil {
			return errNoCandidate
		}
		return conn.deliver(v.Source, v.Contents)
	case engine.TimeoutFired:
		// pion keeps its own timers
		return nil
	default:
		return fmt.Errorf("webrtc: unexpected input %T", in)
	}
}

func (e *Engine) Media(mid engine.Mid) (engine.Media, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.medias[mid]
	if !ok {
		return nil, false
	}
	return m, true
}

func (e *Engine) Channel(id engine.ChannelID) (engine.Channel, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.channels[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// Close tears down the peer connection and the virtual conn. It's safe to
// call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	pc, mux, conn := e.pc, e.mux, e.conn
	e.mu.Unlock()

	var errs []error
	if pc != nil {
		errs = append(errs, pc.Close())
	}
	if mux != nil {
		errs = append(errs, mux.Close())
	}
	if conn != nil {
		errs = append(errs, conn.Close())
	}
	e.wg.Wait()
	return errors.Join(errs...)
}

func (e *Engine) enqueue(out engine.Output) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.disconnected {
		return
	}
	e.outputs = append(e.outputs, out)
}

func (e *Engine) enqueueTransmit(dst net.Addr, contents []byte) {
	e.enqueue(engine.Transmit{Destination: dst, Contents: contents})
}

func (e *Engine) onICEConnectionStateChange(s webrtc.ICEConnectionState) {
	e.log.Debugf("ICE connection state: %s", s)

	switch s {
	case webrtc.ICEConnectionStateDisconnected,
		webrtc.ICEConnectionStateFailed,
		webrtc.ICEConnectionStateClosed:
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed || e.disconnected {
			return
		}
		e.outputs = append(e.outputs, engine.Disconnected{})
		e.disconnected = true
	}
}

func (e *Engine) onConnectionStateChange(s webrtc.PeerConnectionState) {
	e.log.Debugf("peer connection state: %s", s)

	e.enqueue(engine.ConnectionStateChange{State: connectionState(s)})
	if s == webrtc.PeerConnectionStateFailed {
		e.mu.Lock()
		if e.fatal == nil {
			e.fatal = fmt.Errorf("%w: peer connection failed", engine.ErrProtocol)
		}
		e.mu.Unlock()
	}
}

func (e *Engine) onDataChannel(dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		id := dc.ID()
		if id == nil {
			return
		}
		ch := &channel{id: engine.ChannelID(*id), dc: dc}

		e.mu.Lock()
		e.channels[ch.id] = ch
		e.mu.Unlock()
		e.enqueue(engine.ChannelOpen{ID: ch.id, Label: dc.Label()})
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		id := dc.ID()
		if id == nil {
			return
		}
		e.enqueue(engine.ChannelData{
			ID:     engine.ChannelID(*id),
			Binary: !msg.IsString,
			Data:   msg.Data,
		})
	})
}

// readRTCP turns picture loss and full intra requests into
// KeyframeRequested events until the sender stops.
func (e *Engine) readRTCP(mid engine.Mid, sender *webrtc.RTPSender) {
	defer e.wg.Done()
	for {
		pkts, _, err := sender.ReadRTCP()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || e.isClosed() {
				return
			}
			e.log.Debugf("failed to read RTCP: %v", err)
			continue
		}
		for _, pkt := range pkts {
			switch pkt.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				e.enqueue(engine.KeyframeRequested{Mid: mid})
			}
		}
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func codecType(mimeType string) webrtc.RTPCodecType {
	if strings.HasPrefix(strings.ToLower(mimeType), "audio/") {
		return webrtc.RTPCodecTypeAudio
	}
	return webrtc.RTPCodecTypeVideo
}

func connectionState(s webrtc.PeerConnectionState) engine.ConnectionState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return engine.ConnectionStateConnecting
	case webrtc.PeerConnectionStateConnected:
		return engine.ConnectionStateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return engine.ConnectionStateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return engine.ConnectionStateFailed
	case webrtc.PeerConnectionStateClosed:
		return engine.ConnectionStateClosed
	default:
		return engine.ConnectionStateNew
	}
}
