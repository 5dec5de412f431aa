// Package security decides whether a caller may reach a service based on its
// client IP address.
package security

import (
	"context"
	"fmt"
	"net/netip"
	"slices"

	"google.golang.org/grpc/metadata"
)

// Mode controls how the CIDR list is interpreted.
type Mode int

const (
	// AllowList only permits IPs that match at least one CIDR.
	AllowList Mode = iota
	// DenyList blocks IPs that match any CIDR and allows all others.
	DenyList
)

func (m Mode) String() string {
	switch m {
	case AllowList:
		return "allow-list"
	case DenyList:
		return "deny-list"
	default:
		return "unknown"
	}
}

// Config holds the configuration for an IPBlocker.
type Config struct {
	Mode Mode

	// CIDRs are the ranges the Mode applies to. A bare address is a single
	// host.
	CIDRs []string

	// TrustedProxies are peers whose forwarding headers are believed.
	TrustedProxies []string

	// HeaderPriority lists the metadata keys consulted, in order, for the
	// client address behind a trusted proxy. Defaults to x-real-ip, then
	// x-forwarded-for.
	HeaderPriority []string
}

// IPBlocker evaluates client addresses against a parsed Config. It is safe
// for concurrent use.
type IPBlocker struct {
	mode    Mode
	cidrs   []netip.Prefix
	proxies []netip.Prefix
	headers []string
}

// NewIPBlocker parses cfg up front and fails on the first invalid entry.
func NewIPBlocker(cfg Config) (*IPBlocker, error) {
	if cfg.Mode != AllowList && cfg.Mode != DenyList {
		return nil, fmt.Errorf("ipblock: unknown mode %d", cfg.Mode)
	}
	cidrs, err := parsePrefixes(cfg.CIDRs)
	if err != nil {
		return nil, fmt.Errorf("ipblock: invalid CIDR: %w", err)
	}
	proxies, err := parsePrefixes(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("ipblock: invalid trusted proxy: %w", err)
	}

	headers := cfg.HeaderPriority
	if len(headers) == 0 {
		headers = defaultHeaderPriority
	}
	return &IPBlocker{mode: cfg.Mode, cidrs: cidrs, proxies: proxies, headers: headers}, nil
}

// Allow reports whether the caller described by ctx and md may proceed. A
// caller whose address cannot be determined is denied.
func (b *IPBlocker) Allow(ctx context.Context, md metadata.MD) bool {
	addr, ok := b.ClientIP(ctx, md)
	if !ok {
		return false
	}
	matched := contains(b.cidrs, addr)
	if b.mode == DenyList {
		return !matched
	}
	return matched
}

// ClientIP returns the effective client address: the gRPC peer, or the
// first valid forwarding header when the peer is a trusted proxy.
func (b *IPBlocker) ClientIP(ctx context.Context, md metadata.MD) (netip.Addr, bool) {
	peerAddr, ok := peerAddrFromContext(ctx)
	if !ok {
		return netip.Addr{}, false
	}
	if contains(b.proxies, peerAddr) {
		if addr, found := addrFromHeaders(md, b.headers); found {
			return addr, true
		}
	}
	return peerAddr, true
}

func contains(prefixes []netip.Prefix, addr netip.Addr) bool {
	return slices.ContainsFunc(prefixes, func(p netip.Prefix) bool {
		return p.Contains(addr)
	})
}

// parsePrefixes parses CIDR strings. A plain address becomes a single-host
// prefix (/32 or /128).
func parsePrefixes(raw []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(raw))
	for _, s := range raw {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			addr, addrErr := netip.ParseAddr(s)
			if addrErr != nil {
				return nil, fmt.Errorf("%q: %w", s, err)
			}
			p = netip.PrefixFrom(addr, addr.BitLen())
		}
		out = append(out, p.Masked())
	}
	return out, nil
}
