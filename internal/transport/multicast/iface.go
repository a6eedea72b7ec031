package multicast

import (
	"fmt"
	"net"
	"net/netip"
)

// ParseGroup validates a multicast group literal of the form ip:port.
func ParseGroup(s string) (netip.AddrPort, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return netip.AddrPort{}, wrapErr(ErrInvalidAddress, err)
	}
	addr := ap.Addr().Unmap()
	if !addr.IsMulticast() {
		return netip.AddrPort{}, wrapErr(ErrInvalidAddress, fmt.Errorf("%s is not a multicast address", addr))
	}
	if !addr.Is4() {
		return netip.AddrPort{}, wrapErr(ErrUnsupported, fmt.Errorf("%s: only IPv4 multicast is supported", addr))
	}
	if ap.Port() == 0 {
		return netip.AddrPort{}, wrapErr(ErrInvalidAddress, fmt.Errorf("%s: port must be non-zero", s))
	}
	return netip.AddrPortFrom(addr, ap.Port()), nil
}

// resolveInterface maps an IPv4 literal to the interface owning it, or
// looks an interface up by name. Empty or 0.0.0.0 selects the system
// default, reported as nil.
func resolveInterface(spec string) (*net.Interface, error) {
	if spec == "" {
		return nil, nil
	}

	addr, err := netip.ParseAddr(spec)
	if err != nil {
		ifi, err := net.InterfaceByName(spec)
		if err != nil {
			return nil, fmt.Errorf("lookup interface %q: %w", spec, err)
		}
		return ifi, nil
	}

	addr = addr.Unmap()
	if !addr.Is4() {
		return nil, fmt.Errorf("interface address %s is not IPv4", addr)
	}
	if addr.IsUnspecified() {
		return nil, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip, ok := netip.AddrFromSlice(ipnet.IP); ok && ip.Unmap() == addr {
				return &ifaces[i], nil
			}
		}
	}
	return nil, fmt.Errorf("no interface has address %s", addr)
}
