package webrtc

import (
	"errors"
	"net"
	"net/netip"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/ice/v4"
	"github.com/pion/mediasession/pkg/engine"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vp8 = engine.PayloadParams{PayloadType: 96, MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}

// newOfferer creates a peer that wants to receive video and opens a data
// channel, gathering only loopback candidates.
func newOfferer(t *testing.T) (*webrtc.PeerConnection, *webrtc.DataChannel, string) {
	t.Helper()

	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(true)
	se.SetIPFilter(func(ip net.IP) bool { return ip.IsLoopback() })
	se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	se.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)

	m := &webrtc.MediaEngine{}
	require.NoError(t, m.RegisterDefaultCodecs())

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(se))
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)

	_, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	require.NoError(t, err)
	dc, err := pc.CreateDataChannel("control", nil)
	require.NoError(t, err)

	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	require.NoError(t, pc.SetLocalDescription(offer))
	<-gatherComplete

	return pc, dc, pc.LocalDescription().SDP
}

func TestNew(t *testing.T) {
	_, err := New(engine.Config{})
	assert.ErrorIs(t, err, errNoCodecs)

	e, err := New(engine.Config{Codecs: []engine.PayloadParams{vp8}})
	require.NoError(t, err)
	assert.Equal(t, defaultTickInterval, e.config.TickInterval)

	now := time.Now()
	out, err := e.Poll(now)
	require.NoError(t, err)
	assert.Equal(t, engine.Timeout{At: now.Add(defaultTickInterval)}, out)

	require.NoError(t, e.HandleInput(engine.TimeoutFired{At: now}))
	assert.ErrorIs(t, e.HandleInput(engine.Receive{At: now}), errNoCandidate)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	_, err = e.Poll(now)
	assert.ErrorIs(t, err, engine.ErrClosed)
}

func TestAddLocalCandidate(t *testing.T) {
	e, err := New(engine.Config{Codecs: []engine.PayloadParams{vp8}})
	require.NoError(t, err)
	defer e.Close()

	assert.ErrorIs(t, e.AddLocalCandidate(netip.MustParseAddrPort("[::1]:5000")), errNotIPv4)
	require.NoError(t, e.AddLocalCandidate(netip.MustParseAddrPort("[::ffff:127.0.0.1]:5000")))
	assert.Equal(t, "127.0.0.1:5000", e.candidate.String())
}

func TestAcceptOfferWithoutCandidate(t *testing.T) {
	e, err := New(engine.Config{Codecs: []engine.PayloadParams{vp8}})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.AcceptOffer("v=0")
	assert.ErrorIs(t, err, errNoCandidate)
}

func TestAcceptOfferMalformed(t *testing.T) {
	e, err := New(engine.Config{Codecs: []engine.PayloadParams{vp8}})
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.AddLocalCandidate(netip.MustParseAddrPort("127.0.0.1:5000")))
	_, err = e.AcceptOffer("garbage")
	assert.ErrorIs(t, err, engine.ErrNegotiation)
}

func TestAcceptOffer(t *testing.T) {
	offerer, _, offer := newOfferer(t)
	defer offerer.Close()

	e, err := New(engine.Config{Codecs: []engine.PayloadParams{vp8}})
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.AddLocalCandidate(netip.MustParseAddrPort("127.0.0.1:40000")))
	answer, err := e.AcceptOffer(offer)
	require.NoError(t, err)
	assert.Contains(t, answer, "127.0.0.1 40000 typ host")
	assert.Contains(t, answer, "VP8/90000")

	_, err = e.AcceptOffer(offer)
	assert.ErrorIs(t, err, errOfferAccepted)
	assert.ErrorIs(t, e.AddLocalCandidate(netip.MustParseAddrPort("127.0.0.1:40001")), errOfferAccepted)

	var added *engine.MediaAdded
	for i := 0; i < 100 && added == nil; i++ {
		out, err := e.Poll(time.Now())
		require.NoError(t, err)
		if m, ok := out.(engine.MediaAdded); ok {
			added = &m
		}
	}
	require.NotNil(t, added, "expected a MediaAdded event")
	assert.Equal(t, engine.MediaKindVideo, added.Kind)
	assert.Equal(t, engine.DirectionSendOnly, added.Direction)

	media, ok := e.Media(added.Mid)
	require.True(t, ok)
	assert.Equal(t, added.Mid, media.Mid())
	params := media.PayloadParams()
	require.NotEmpty(t, params)
	pt, ok := media.MatchParams(vp8)
	require.True(t, ok)
	assert.Equal(t, params[0].PayloadType, pt)

	_, ok = media.MatchParams(engine.PayloadParams{MimeType: webrtc.MimeTypeH264, ClockRate: 90000})
	assert.False(t, ok)

	_, ok = e.Media("nope")
	assert.False(t, ok)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func TestLoopback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping loopback session in short mode")
	}

	offerer, dc, offer := newOfferer(t)
	defer offerer.Close()

	var gotTrack atomic.Bool
	offerer.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		gotTrack.Store(true)
	})
	pong := make(chan string, 1)
	dc.OnOpen(func() {
		_ = dc.SendText("ping")
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case pong <- string(msg.Data):
		default:
		}
	})

	sock, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer sock.Close()

	e, err := New(engine.Config{Codecs: []engine.PayloadParams{vp8}})
	require.NoError(t, err)
	defer e.Close()

	local := sock.LocalAddr().(*net.UDPAddr).AddrPort()
	require.NoError(t, e.AddLocalCandidate(local))
	answer, err := e.AcceptOffer(offer)
	require.NoError(t, err)
	require.NoError(t, offerer.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}))

	var (
		media     engine.Media
		connected bool
		reply     string
		ts        uint32
	)
	buf := make([]byte, 2000)
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) && !(gotTrack.Load() && reply != "") {
		out, err := e.Poll(time.Now())
		require.NoError(t, err)

		switch v := out.(type) {
		case engine.Transmit:
			_, err := sock.WriteTo(v.Contents, v.Destination)
			require.NoError(t, err)
		case engine.MediaAdded:
			if v.Kind == engine.MediaKindVideo {
				media, _ = e.Media(v.Mid)
			}
		case engine.ConnectionStateChange:
			connected = connected || v.State == engine.ConnectionStateConnected
		case engine.ChannelData:
			assert.Equal(t, "ping", string(v.Data))
			ch, ok := e.Channel(v.ID)
			require.True(t, ok)
			require.NoError(t, ch.Write(false, []byte("pong")))
		case engine.Disconnected:
			t.Fatal("unexpected disconnect")
		case engine.Timeout:
			if connected && media != nil {
				pt, ok := media.MatchParams(vp8)
				require.True(t, ok)
				// A VP8 key frame header is enough for the remote to surface the track.
				require.NoError(t, media.Write(pt, ts, []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x04, 0x00, 0x04, 0x00}))
				ts += 900
			}
			require.NoError(t, sock.SetReadDeadline(v.At))
			n, addr, err := sock.ReadFrom(buf)
			switch {
			case isTimeout(err):
				require.NoError(t, e.HandleInput(engine.TimeoutFired{At: time.Now()}))
			case err != nil:
				t.Fatal(err)
			default:
				contents := make([]byte, n)
				copy(contents, buf[:n])
				require.NoError(t, e.HandleInput(engine.Receive{
					At:          time.Now(),
					Source:      addr,
					Destination: sock.LocalAddr(),
					Contents:    contents,
				}))
			}
		}

		select {
		case reply = <-pong:
		default:
		}
	}

	assert.True(t, connected, "never connected")
	assert.Equal(t, "pong", reply)
	assert.True(t, gotTrack.Load(), "remote never saw the track")
	assert.False(t, strings.Contains(answer, "a=recvonly"), "answer must not be recvonly for the video section")
}
