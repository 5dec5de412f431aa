package security

import (
	"context"
	"net"
	"net/netip"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

var defaultHeaderPriority = []string{"x-real-ip", "x-forwarded-for"}

// peerAddrFromContext returns the IP of the gRPC peer stored in ctx.
func peerAddrFromContext(ctx context.Context) (netip.Addr, bool) {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return netip.Addr{}, false
	}
	return parseNetAddr(p.Addr)
}

// parseNetAddr parses a net.Addr, dropping any port. IPv4-mapped IPv6
// addresses come back as plain IPv4.
func parseNetAddr(addr net.Addr) (netip.Addr, bool) {
	s := addr.String()
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

// addrFromHeaders walks the header keys in priority order and returns the
// first valid address. For X-Forwarded-For style lists the left-most entry
// is the client.
func addrFromHeaders(md metadata.MD, priority []string) (netip.Addr, bool) {
	for _, key := range priority {
		for _, v := range md.Get(key) {
			for part := range strings.SplitSeq(v, ",") {
				if ip, err := netip.ParseAddr(strings.TrimSpace(part)); err == nil {
					return ip.Unmap(), true
				}
			}
		}
	}
	return netip.Addr{}, false
}
