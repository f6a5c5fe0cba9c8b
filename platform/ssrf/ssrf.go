// Package ssrf rejects outbound URLs and hosts that point at loopback,
// private, link-local or cloud metadata addresses.
package ssrf

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// ErrBlocked is returned for any URL or host that may not be fetched.
var ErrBlocked = errors.New("blocked outbound address")

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

var blockedHosts = map[string]struct{}{
	"localhost":                {},
	"metadata.google.internal": {},
	"metadata":                 {},
}

// IsAllowedURL reports whether raw is an http(s) URL whose host passes IsAllowedHost.
func IsAllowedURL(raw string) bool {
	return ValidateURL(raw) == nil
}

// ValidateURL is IsAllowedURL with a reason attached. The error wraps ErrBlocked.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: malformed url", ErrBlocked)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: scheme %q not allowed", ErrBlocked, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrBlocked)
	}
	return ValidateHost(host)
}

// IsAllowedHost reports whether a bare hostname or IP literal may be contacted.
func IsAllowedHost(host string) bool {
	return ValidateHost(host) == nil
}

// ValidateHost checks a hostname or IP literal. Hostnames are not resolved here;
// NewTransport enforces the same rules on the resolved address at dial time.
func ValidateHost(host string) error {
	h := strings.ToLower(strings.TrimSuffix(strings.Trim(strings.TrimSpace(host), "[]"), "."))
	if h == "" {
		return fmt.Errorf("%w: missing host", ErrBlocked)
	}
	if _, ok := blockedHosts[h]; ok {
		return fmt.Errorf("%w: host %q", ErrBlocked, h)
	}
	if strings.HasSuffix(h, ".localhost") || strings.HasSuffix(h, ".local") || strings.HasSuffix(h, ".internal") {
		return fmt.Errorf("%w: internal domain %q", ErrBlocked, h)
	}
	addr, err := netip.ParseAddr(h)
	if err != nil {
		if looksNumeric(h) {
			return fmt.Errorf("%w: non-canonical address %q", ErrBlocked, h)
		}
		return nil
	}
	if isBlockedAddr(addr) {
		return fmt.Errorf("%w: address %s", ErrBlocked, addr)
	}
	return nil
}

// looksNumeric reports whether every label of h is a decimal or 0x-hex number,
// as in the inet_aton forms 2130706433, 0x7f000001, 127.1 and 0177.0.0.1.
func looksNumeric(h string) bool {
	for _, label := range strings.Split(h, ".") {
		digits := label
		if strings.HasPrefix(digits, "0x") {
			digits = digits[2:]
			if digits == "" {
				return true
			}
			if strings.Trim(digits, "0123456789abcdef") != "" {
				return false
			}
			continue
		}
		if digits == "" || strings.Trim(digits, "0123456789") != "" {
			return false
		}
	}
	return true
}

func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsUnspecified() || addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
		return true
	}
	for _, prefix := range blockedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Dialer returns a net.Dialer that refuses blocked addresses after DNS resolution.
func Dialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrBlocked, address)
			}
			addr, err := netip.ParseAddr(host)
			if err != nil || isBlockedAddr(addr) {
				return fmt.Errorf("%w: resolved address %s", ErrBlocked, host)
			}
			return nil
		},
	}
}

// NewTransport returns an http.Transport built on Dialer.
func NewTransport() *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = Dialer().DialContext
	transport.Proxy = nil
	return transport
}

// NewClient returns an http.Client built on NewTransport.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: NewTransport()}
}
