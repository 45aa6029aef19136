package intelligence

import (
	"context"
	"errors"
	"net/netip"
	"strings"
)

// ErrUnavailable marks a lookup that could not be answered (timeout, outage, open breaker).
// Callers treat it the same as an unknown address.
var ErrUnavailable = errors.New("ip intelligence unavailable")

// Result is what a provider knows about an address.
type Result struct {
	// Latitude and Longitude are only meaningful when HasLocation is true
	HasLocation  bool    `json:"has_location"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	IsVPN        bool    `json:"is_vpn"`
	IsDataCenter bool    `json:"is_data_center"`

	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
	ASN     uint   `json:"asn,omitempty"`
	ASNOrg  string `json:"asn_org,omitempty"`
	Source  string `json:"source"`
}

// Provider resolves an IP address. A nil result with a nil error means the address is unknown.
type Provider interface {
	Analyze(ctx context.Context, ip string) (*Result, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, ip string) (*Result, error)

func (f ProviderFunc) Analyze(ctx context.Context, ip string) (*Result, error) {
	return f(ctx, ip)
}

// Noop knows nothing about any address.
type Noop struct{}

func (Noop) Analyze(context.Context, string) (*Result, error) {
	return nil, nil
}

// IsPublic reports whether ip parses and is routable on the public internet.
// Private, loopback, link-local, multicast and unspecified addresses are never looked up.
func IsPublic(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return !(addr.IsPrivate() ||
		addr.IsLoopback() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified() ||
		sharedAddressSpace.Contains(addr))
}

// RFC 6598 carrier-grade NAT range
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")
