package mediasession

import (
	"errors"
	"net"
	"net/netip"

	"github.com/pion/transport/v3"
)

var errNoHostAddress = errors.New("no usable IPv4 host address")

// InterfaceLister enumerates network interfaces. transport.Net satisfies it,
// so stdnet and vnet both work.
type InterfaceLister interface {
	Interfaces() ([]*transport.Interface, error)
}

// SelectHostAddress returns the first IPv4 address that can be advertised
// as a host candidate: loopback, link-local, broadcast, multicast and
// unspecified addresses are skipped, as are interfaces that report no
// addresses.
func SelectHostAddress(l InterfaceLister) (netip.Addr, error) {
	ifaces, err := l.Interfaces()
	if err != nil {
		return netip.Addr{}, err
	}

	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ip, ok := addrIP(a)
			if ok && usableHostAddress(ip) {
				return ip, nil
			}
		}
	}
	return netip.Addr{}, errNoHostAddress
}

func addrIP(a net.Addr) (netip.Addr, bool) {
	var ip net.IP
	switch v := a.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	case *net.UDPAddr:
		ip = v.IP
	default:
		return netip.Addr{}, false
	}
	addr, ok := netip.AddrFromSlice(ip)
	return addr.Unmap(), ok
}

func usableHostAddress(ip netip.Addr) bool {
	return ip.Is4() &&
		!ip.IsLoopback() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsUnspecified() &&
		!ip.IsMulticast() &&
		ip != netip.AddrFrom4([4]byte{255, 255, 255, 255})
}
