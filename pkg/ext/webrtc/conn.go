package webrtc

import (
	"errors"
	"io"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/deadline"
)

const inboundQueueSize = 256

var errNotUDPAddr = errors.New("webrtc: address is not a UDP address")

type datagram struct {
	source   *net.UDPAddr
	contents []byte
}

// packetConn is the net.PacketConn pion's ICE mux runs on. It never touches
// a socket: writes are queued for the pump to transmit and reads are served
// from datagrams the pump received.
type packetConn struct {
	local *net.UDPAddr
	log   logging.LeveledLogger

	inbound      chan datagram
	readDeadline *deadline.Deadline

	onWrite func(dst net.Addr, contents []byte)

	closeOnce sync.Once
	closed    chan struct{}
}

func newPacketConn(local *net.UDPAddr, log logging.LeveledLogger, onWrite func(net.Addr, []byte)) *packetConn {
	return &packetConn{
		local:        local,
		log:          log,
		inbound:      make(chan datagram, inboundQueueSize),
		readDeadline: deadline.New(),
		onWrite:      onWrite,
		closed:       make(chan struct{}),
	}
}

// deliver hands a received datagram to the reader. Datagrams are dropped
// when the reader falls behind.
func (c *packetConn) deliver(source net.Addr, contents []byte) error {
	src, err := toUDPAddr(source)
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}

	select {
	case c.inbound <- datagram{source: src, contents: contents}:
	default:
		c.log.Warnf("inbound queue full, dropping %d bytes from %s", len(contents), src)
	}
	return nil
}

func (c *packetConn) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case d := <-c.inbound:
		n := copy(p, d.contents)
		if n < len(d.contents) {
			return n, d.source, io.ErrShortBuffer
		}
		return n, d.source, nil
	case <-c.readDeadline.Done():
		return 0, nil, &timeoutError{}
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *packetConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}

	buf := make([]byte, len(p))
	copy(buf, p)
	c.onWrite(addr, buf)
	return len(p), nil
}

func (c *packetConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

func (c *packetConn) LocalAddr() net.Addr {
	return c.local
}

func (c *packetConn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

func (c *packetConn) SetReadDeadline(t time.Time) error {
	c.readDeadline.Set(t)
	return nil
}

func (c *packetConn) SetWriteDeadline(time.Time) error {
	return nil
}

type timeoutError struct{}

func (*timeoutError) Error() string   { return "i/o timeout" }
func (*timeoutError) Timeout() bool   { return true }
func (*timeoutError) Temporary() bool { return true }

func toUDPAddr(addr net.Addr) (*net.UDPAddr, error) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a, nil
	case nil:
		return nil, errNotUDPAddr
	default:
		ap, err := netip.ParseAddrPort(a.String())
		if err != nil {
			return nil, errNotUDPAddr
		}
		return net.UDPAddrFromAddrPort(ap), nil
	}
}
