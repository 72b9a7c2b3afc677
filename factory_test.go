package mediasession

import (
	"errors"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/mediasession/pkg/engine"
	"github.com/pion/transport/v3/vnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offerSDP(media ...string) string {
	lines := []string{
		"v=0",
		"o=- 4215775240449105457 2 IN IP4 127.0.0.1",
		"s=-",
		"t=0 0",
	}
	lines = append(lines, media...)
	return strings.Join(lines, "\r\n") + "\r\n"
}

var (
	vp8Section = []string{
		"m=video 9 UDP/TLS/RTP/SAVPF 97 96",
		"c=IN IP4 0.0.0.0",
		"a=mid:0",
		"a=sendrecv",
		"a=rtpmap:97 H264/90000",
		"a=rtpmap:96 VP8/90000",
	}
	h264Section = []string{
		"m=video 9 UDP/TLS/RTP/SAVPF 102",
		"c=IN IP4 0.0.0.0",
		"a=mid:0",
		"a=rtpmap:102 H264/90000",
	}
	opusSection = []string{
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"c=IN IP4 0.0.0.0",
		"a=mid:1",
		"a=rtpmap:111 opus/48000/2",
	}
)

type engineRecorder struct {
	configs    []engine.Config
	engines    []*fakeEngine
	candidates []netip.AddrPort
	acceptErr  error
}

type recordedEngine struct {
	*fakeEngine
	r *engineRecorder
}

func (e recordedEngine) AddLocalCandidate(addr netip.AddrPort) error {
	e.r.candidates = append(e.r.candidates, addr)
	return nil
}

func (e recordedEngine) AcceptOffer(offer string) (string, error) {
	if e.r.acceptErr != nil {
		return "", e.r.acceptErr
	}
	return "v=0 answer", nil
}

func (r *engineRecorder) build(c engine.Config) (engine.Engine, error) {
	e := newFakeEngine()
	r.configs = append(r.configs, c)
	r.engines = append(r.engines, e)
	return recordedEngine{fakeEngine: e, r: r}, nil
}

func newTestFactory(t *testing.T, r *engineRecorder, opts ...Option) *Factory {
	t.Helper()
	opts = append([]Option{
		WithFrameSize(4, 2),
		WithEngine(r.build),
		WithCompressor((&fakeCompressor{}).builder),
		WithHostAddress(netip.MustParseAddr("127.0.0.1")),
		WithListenAddress("127.0.0.1:0"),
	}, opts...)
	f, err := NewFactory(opts...)
	require.NoError(t, err)
	return f
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session didn't terminate")
	}
}

func TestFactoryAccept(t *testing.T) {
	r := &engineRecorder{}
	f := newTestFactory(t, r, WithTickInterval(20*time.Millisecond))

	answer, s, err := f.Accept(offerSDP(append(opusSection, vp8Section...)...))
	require.NoError(t, err)
	assert.Equal(t, "v=0 answer", answer)
	require.NotNil(t, s)
	waitDone(t, s)
	assert.NoError(t, s.Err())

	require.Len(t, r.configs, 1)
	assert.Equal(t, []engine.PayloadParams{DefaultCodec}, r.configs[0].Codecs)
	assert.Equal(t, 20*time.Millisecond, r.configs[0].TickInterval)

	require.Len(t, r.candidates, 1)
	assert.Equal(t, netip.MustParseAddr("127.0.0.1"), r.candidates[0].Addr())
	assert.NotZero(t, r.candidates[0].Port())
	assert.Equal(t, 1, r.engines[0].closed)
}

func TestFactoryAcceptIndependentSessions(t *testing.T) {
	r := &engineRecorder{}
	f := newTestFactory(t, r)

	_, s1, err := f.Accept(offerSDP(vp8Section...))
	require.NoError(t, err)
	_, s2, err := f.Accept(offerSDP(vp8Section...))
	require.NoError(t, err)
	waitDone(t, s1)
	waitDone(t, s2)

	assert.NotEqual(t, s1.ID(), s2.ID())
	require.Len(t, r.candidates, 2)
	assert.NotEqual(t, r.candidates[0].Port(), r.candidates[1].Port(), "each session owns its socket")
}

func TestFactoryAcceptRejectsOffer(t *testing.T) {
	testCases := map[string]string{
		"Malformed":  "not an offer",
		"Empty":      "",
		"NoVP8":      offerSDP(h264Section...),
		"AudioOnly":  offerSDP(opusSection...),
		"NoSections": offerSDP(),
	}

	for name, offer := range testCases {
		offer := offer
		t.Run(name, func(t *testing.T) {
			r := &engineRecorder{}
			f := newTestFactory(t, r)

			answer, s, err := f.Accept(offer)
			assert.ErrorIs(t, err, ErrNegotiation)
			assert.Empty(t, answer)
			assert.Nil(t, s)
			assert.Empty(t, r.configs, "no engine is built for a rejected offer")
		})
	}
}

func TestFactoryAcceptEngineRejects(t *testing.T) {
	r := &engineRecorder{acceptErr: engine.ErrNegotiation}
	f := newTestFactory(t, r)

	_, s, err := f.Accept(offerSDP(vp8Section...))
	assert.ErrorIs(t, err, ErrNegotiation)
	assert.ErrorIs(t, err, engine.ErrNegotiation)
	assert.Nil(t, s)
	require.Len(t, r.engines, 1)
	assert.Equal(t, 1, r.engines[0].closed, "engine is released on failure")
}

func TestFactoryAcceptEngineBuildFailure(t *testing.T) {
	f := newTestFactory(t, &engineRecorder{}, WithEngine(func(engine.Config) (engine.Engine, error) {
		return nil, errors.New("no dtls certificate")
	}))

	_, _, err := f.Accept(offerSDP(vp8Section...))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestFactoryAcceptListenFailure(t *testing.T) {
	f := newTestFactory(t, &engineRecorder{}, WithListenAddress("127.0.0.1:99999"))

	_, _, err := f.Accept(offerSDP(vp8Section...))
	assert.ErrorIs(t, err, ErrTransport)
}

func TestFactoryAcceptVNet(t *testing.T) {
	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	require.NoError(t, err)
	n, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.5"}})
	require.NoError(t, err)
	require.NoError(t, router.AddNet(n))

	r := &engineRecorder{}
	f := newTestFactory(t, r,
		WithHostAddress(netip.Addr{}),
		WithListenAddress(DefaultListenAddress),
		WithNet(n),
	)

	_, s, err := f.Accept(offerSDP(vp8Section...))
	require.NoError(t, err)
	waitDone(t, s)

	require.Len(t, r.candidates, 1)
	assert.Equal(t, netip.MustParseAddr("10.0.0.5"), r.candidates[0].Addr())
}

func TestFactoryAcceptNoHostAddress(t *testing.T) {
	n, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.5"}})
	require.NoError(t, err)

	r := &engineRecorder{}
	f := newTestFactory(t, r, WithHostAddress(netip.Addr{}), WithNet(n))

	_, _, err = f.Accept(offerSDP(vp8Section...))
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Empty(t, r.configs)
}

func TestNewFactoryValidation(t *testing.T) {
	testCases := map[string][]Option{
		"NoCompressor":  {},
		"OddWidth":      {WithCompressor((&fakeCompressor{}).builder), WithFrameSize(301, 300)},
		"ZeroHeight":    {WithCompressor((&fakeCompressor{}).builder), WithFrameSize(300, 0)},
		"ShortDuration": {WithCompressor((&fakeCompressor{}).builder), WithFrameDuration(time.Microsecond)},
		"NoCodec":       {WithCompressor((&fakeCompressor{}).builder), WithCodec(engine.PayloadParams{})},
		"NoEngine":      {WithCompressor((&fakeCompressor{}).builder), WithEngine(nil)},
		"NoPolicy":      {WithCompressor((&fakeCompressor{}).builder), WithTrackPolicy(nil)},
	}

	for name, opts := range testCases {
		opts := opts
		t.Run(name, func(t *testing.T) {
			_, err := NewFactory(opts...)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestCheckOffer(t *testing.T) {
	assert.NoError(t, checkOffer(offerSDP(vp8Section...), DefaultCodec))
	assert.ErrorIs(t, checkOffer(offerSDP(h264Section...), DefaultCodec), errNoMatchingCodec)

	h264 := engine.PayloadParams{PayloadType: 102, MimeType: "video/H264", ClockRate: 90000}
	assert.NoError(t, checkOffer(offerSDP(h264Section...), h264))

	opus := engine.PayloadParams{PayloadType: 111, MimeType: "audio/opus", ClockRate: 48000}
	assert.NoError(t, checkOffer(offerSDP(opusSection...), opus))
}
