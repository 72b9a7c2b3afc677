package mediasession

import (
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"
	mlogging "github.com/pion/mediasession/internal/logging"
	"github.com/pion/mediasession/pkg/codec"
	"github.com/pion/mediasession/pkg/engine"
)

var errAlreadyRunning = errors.New("mediasession: session already running")

// Session pumps one engine over one socket until the peer disconnects or a
// fatal error occurs. It exclusively owns both and releases them when Run
// returns.
type Session struct {
	id       string
	cfg      Config
	engine   engine.Engine
	conn     net.PacketConn
	pipeline *codec.Pipeline
	source   FrameSource
	observer Observer
	log      logging.LeveledLogger
	now      func() time.Time

	track *Track
	buf   []byte

	running atomic.Bool
	done    chan struct{}
	errMu   sync.Mutex
	err     error
}

// NewSession prepares a session over eng and conn, which must already carry
// an accepted offer. Nothing runs until Run or Start.
func NewSession(eng engine.Engine, conn net.PacketConn, opts ...Option) (*Session, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newSession(eng, conn, cfg)
}

func newSession(eng engine.Engine, conn net.PacketConn, cfg Config) (*Session, error) {
	id := uuid.NewString()
	log := mlogging.Or(cfg.LoggerFactory).NewLogger("session")

	source, err := cfg.FrameSource(cfg.Width, cfg.Height)
	if err != nil {
		return nil, newError(ErrConfiguration, "frame source", err)
	}

	pipeline, err := codec.NewPipeline(codec.VideoSetting{
		Width:         cfg.Width,
		Height:        cfg.Height,
		TargetBitRate: cfg.BitRate,
		FrameRate:     float32(time.Second) / float32(cfg.FrameDuration),
		Timebase:      codec.Millisecond,
	}, cfg.CompressorBuilder)
	if err != nil {
		return nil, newError(ErrEncoding, "build pipeline", err)
	}

	observer := cfg.Observer
	if observer == nil {
		observer = NewLoggingObserver(log)
	}

	s := &Session{
		id:       id,
		cfg:      cfg,
		engine:   eng,
		conn:     conn,
		pipeline: pipeline,
		source:   source,
		observer: observer,
		log:      log,
		now:      time.Now,
		buf:      make([]byte, cfg.ReadBufferSize),
		done:     make(chan struct{}),
	}
	observer.OnStateChange(id, StateNew)
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

// Track returns the bound track, or nil before one is bound. It must only
// be called after Done is closed or from an Observer.
func (s *Session) Track() *Track {
	return s.track
}

// Stats returns the encoding pipeline counters.
func (s *Session) Stats() codec.Stats {
	return s.pipeline.Stats()
}

// Start runs the session in a new goroutine.
func (s *Session) Start() {
	go func() {
		_ = s.Run()
	}()
}

// Done is closed once the session has terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the reason the session terminated: nil for a disconnect.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Run drives the session until the engine reports a disconnect, returning
// nil, or until a fatal error, which is returned. Run may only be called
// once.
func (s *Session) Run() error {
	if !s.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}

	s.observer.OnStateChange(s.id, StateRunning)
	err := s.loop()
	s.release(err)
	return err
}

func (s *Session) loop() error {
	for {
		out, err := s.engine.Poll(s.now())
		if err != nil {
			return newError(ErrProtocol, "poll", err)
		}

		switch v := out.(type) {
		case engine.Transmit:
			if _, err := s.conn.WriteTo(v.Contents, v.Destination); err != nil {
				return newError(ErrTransport, "write", err)
			}
		case engine.Timeout:
			if err := s.wait(v.At); err != nil {
				return err
			}
		case engine.Event:
			done, err := s.handleEvent(v)
			if err != nil || done {
				return err
			}
		default:
			s.log.Warnf("ignoring unexpected output %T", out)
		}
	}
}

// wait is the only point the loop blocks: it reads one datagram or lets
// the deadline elapse, then feeds the result to the engine. A deadline that
// already passed fires immediately.
func (s *Session) wait(at time.Time) error {
	now := s.now()
	remaining := at.Sub(now)
	if remaining <= 0 {
		return s.input(engine.TimeoutFired{At: now})
	}

	if s.track != nil {
		if err := s.writeFrame(); err != nil {
			return err
		}
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(remaining)); err != nil {
		return newError(ErrTransport, "set read deadline", err)
	}
	n, addr, err := s.conn.ReadFrom(s.buf)
	if err != nil {
		if isTimeout(err) {
			return s.input(engine.TimeoutFired{At: s.now()})
		}
		return newError(ErrTransport, "read", err)
	}

	contents := make([]byte, n)
	copy(contents, s.buf[:n])
	return s.input(engine.Receive{
		At:          s.now(),
		Source:      addr,
		Destination: s.conn.LocalAddr(),
		Contents:    contents,
	})
}

func (s *Session) input(in engine.Input) error {
	if err := s.engine.HandleInput(in); err != nil {
		return newError(ErrProtocol, "handle input", err)
	}
	return nil
}

// handleEvent reports whether the session is over.
func (s *Session) handleEvent(ev engine.Event) (bool, error) {
	s.observer.OnEvent(s.id, ev)

	switch v := ev.(type) {
	case engine.MediaAdded:
		s.bindTrack(v)
	case engine.ChannelData:
		ch, ok := s.engine.Channel(v.ID)
		if !ok {
			s.log.Warnf("data on unknown channel %d", v.ID)
			break
		}
		if err := ch.Write(false, s.cfg.ChannelReply); err != nil {
			s.log.Warnf("failed to reply on channel %d: %v", v.ID, err)
		}
	case engine.KeyframeRequested:
		if s.track != nil && s.track.Mid == v.Mid {
			s.pipeline.ForceKeyFrame()
		}
	case engine.ConnectionStateChange:
		if v.State == engine.ConnectionStateConnected {
			s.observer.OnStateChange(s.id, StateConnected)
		}
	case engine.Disconnected:
		return true, nil
	}
	return false, nil
}

func (s *Session) bindTrack(m engine.MediaAdded) {
	if s.track != nil || !s.cfg.TrackPolicy(m) {
		s.observer.OnTrackRejected(s.id, m)
		return
	}

	media, ok := s.engine.Media(m.Mid)
	if !ok {
		s.log.Warnf("no media for mid %s", m.Mid)
		s.observer.OnTrackRejected(s.id, m)
		return
	}
	params := media.PayloadParams()
	if len(params) == 0 {
		s.log.Warnf("no payload params for mid %s", m.Mid)
		s.observer.OnTrackRejected(s.id, m)
		return
	}
	pt, ok := media.MatchParams(params[0])
	if !ok {
		s.log.Warnf("no payload type for %s on mid %s", params[0].MimeType, m.Mid)
		s.observer.OnTrackRejected(s.id, m)
		return
	}

	s.track = newTrack(m.Mid, params[0], pt, s.cfg.ClockRate)
	s.observer.OnTrackBound(s.id, *s.track)
}

func (s *Session) writeFrame() error {
	start := time.Now()
	buf, err := s.source.Frame()
	if err != nil {
		return newError(ErrEncoding, "produce frame", err)
	}
	payload, err := s.pipeline.Encode(buf.Pix, buf.Width, buf.Height, s.cfg.FrameDuration)
	if err != nil {
		return newError(ErrEncoding, "encode", err)
	}
	encodeTime := time.Since(start)

	pts := s.track.Accumulated()
	ts := s.track.advance(s.cfg.FrameDuration)

	media, ok := s.engine.Media(s.track.Mid)
	if !ok {
		return newError(ErrProtocol, "write frame", errors.New("bound media disappeared"))
	}
	if err := media.Write(s.track.PayloadType, ts, payload); err != nil {
		return newError(ErrProtocol, "write frame", err)
	}

	s.observer.OnFrame(s.id, FrameInfo{
		Mid:        s.track.Mid,
		Timestamp:  ts,
		PTS:        pts,
		Bytes:      len(payload),
		EncodeTime: encodeTime,
	})
	return nil
}

func (s *Session) release(err error) {
	var errs []error
	if e := s.engine.Close(); e != nil {
		errs = append(errs, e)
	}
	if e := s.conn.Close(); e != nil && !errors.Is(e, net.ErrClosed) {
		errs = append(errs, e)
	}
	if e := s.pipeline.Close(); e != nil {
		errs = append(errs, e)
	}
	if len(errs) > 0 {
		s.log.Debugf("session %s: release: %v", s.id, errors.Join(errs...))
	}

	state := StateClosed
	if err != nil {
		state = StateFailed
	}
	s.observer.OnStateChange(s.id, state)
	s.observer.OnClose(s.id, err)

	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
	close(s.done)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
