package intelligence

import (
	"context"

	"github.com/pterm/pterm"
)

const SourceVPNList = "vpn_list"

// ListedProvider flags addresses on the operator's VPN list on top of whatever
// next reports. It sits outside any cache so list reloads apply immediately.
type ListedProvider struct {
	next   Provider
	list   *VPNList
	logger *pterm.Logger
}

func NewListedProvider(next Provider, list *VPNList, logger *pterm.Logger) *ListedProvider {
	if next == nil {
		next = Noop{}
	}
	return &ListedProvider{next: next, list: list, logger: logger}
}

func (p *ListedProvider) Analyze(ctx context.Context, ip string) (*Result, error) {
	result, err := p.next.Analyze(ctx, ip)
	if !IsPublic(ip) || !p.list.Contains(ip) {
		return result, err
	}

	// The list is local knowledge, so it survives an upstream outage
	if err != nil {
		p.logger.Debug("Lookup failed for listed VPN address, using list only",
			p.logger.Args("ip", ip, "error", err))
		result = nil
	}
	if result == nil {
		return &Result{IsVPN: true, Source: SourceVPNList}, nil
	}

	marked := *result
	marked.IsVPN = true
	return &marked, nil
}
