// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"syscall"

	"golang.org/x/net/idna"
)

// ErrSourceNotAllowed indicates the fragment source did not match the allowlist.
var ErrSourceNotAllowed = errors.New("fragment source not allowed")

// SourcePolicy restricts the hosts fragments may be fetched from. A policy
// without hosts and prefixes allows every http(s) URL.
type SourcePolicy struct {
	hosts    map[string]struct{}
	prefixes []netip.Prefix
}

// NewSourcePolicy compiles an allowlist of host names and CIDR prefixes.
// Plain IP addresses are accepted as single-address prefixes.
func NewSourcePolicy(hosts, cidrs []string) (*SourcePolicy, error) {
	p := &SourcePolicy{hosts: make(map[string]struct{})}
	for _, h := range hosts {
		normalized, err := NormalizeHost(h)
		if err != nil {
			return nil, err
		}
		p.hosts[normalized] = struct{}{}
	}
	for _, entry := range cidrs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		prefix, err := parsePrefix(entry)
		if err != nil {
			return nil, err
		}
		p.prefixes = append(p.prefixes, prefix)
	}
	return p, nil
}

// Open reports whether the policy allows every source.
func (p *SourcePolicy) Open() bool {
	return p == nil || (len(p.hosts) == 0 && len(p.prefixes) == 0)
}

// Allow verifies raw against the policy before a fetch. Listed hosts and IP
// literals are decided here; any other host name is only admitted when the
// client dials through DialContext, which checks the address it connects to.
func (p *SourcePolicy) Allow(_ context.Context, raw string) error {
	u, ok := ParseDirectHTTPURL(raw)
	if !ok {
		return fmt.Errorf("%w: %s is not a direct http(s) URL", ErrSourceNotAllowed, SanitizeURL(raw))
	}
	if p.Open() {
		return nil
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceNotAllowed, err)
	}
	if p.listed(host) {
		return nil
	}
	if len(p.prefixes) == 0 {
		return fmt.Errorf("%w: host %s", ErrSourceNotAllowed, host)
	}
	if addr, err := netip.ParseAddr(host); err == nil && !p.inPrefixes(addr) {
		return fmt.Errorf("%w: address %s", ErrSourceNotAllowed, addr)
	}
	return nil
}

// DialContext wraps d so that connections to hosts outside the host list
// only reach addresses within the allowed prefixes. The check runs in the
// dialer's Control hook on the resolved address being connected.
func (p *SourcePolicy) DialContext(d *net.Dialer) func(ctx context.Context, network, address string) (net.Conn, error) {
	if p.Open() {
		return d.DialContext
	}
	guarded := *d
	guarded.Control = func(_, address string, _ syscall.RawConn) error {
		ap, err := netip.ParseAddrPort(address)
		if err != nil {
			return fmt.Errorf("%w: dial %s: %v", ErrSourceNotAllowed, address, err)
		}
		if !p.inPrefixes(ap.Addr()) {
			return fmt.Errorf("%w: dial %s", ErrSourceNotAllowed, ap.Addr())
		}
		return nil
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		if host, _, err := net.SplitHostPort(address); err == nil {
			if normalized, err := NormalizeHost(host); err == nil && p.listed(normalized) {
				return d.DialContext(ctx, network, address)
			}
		}
		return guarded.DialContext(ctx, network, address)
	}
}

func (p *SourcePolicy) listed(host string) bool {
	_, ok := p.hosts[host]
	return ok
}

func (p *SourcePolicy) inPrefixes(addr netip.Addr) bool {
	addr = addr.Unmap().WithZone("")
	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// NormalizeHost validates and normalizes a host for comparison.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.Contains(host, "://") {
		return "", fmt.Errorf("host must not include scheme: %s", raw)
	}
	if strings.Contains(host, "/") {
		return "", fmt.Errorf("host must not include path: %s", raw)
	}
	if strings.Contains(host, "@") {
		return "", fmt.Errorf("host must not include userinfo: %s", raw)
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, "%") {
		return "", fmt.Errorf("host must not include zone: %s", raw)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().String(), nil
	}
	if strings.Contains(host, ":") {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

func parsePrefix(entry string) (netip.Prefix, error) {
	if prefix, err := netip.ParsePrefix(entry); err == nil {
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR or IP: %s", entry)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
