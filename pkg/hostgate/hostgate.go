// Package hostgate decides whether the widget may load on a given host.
//
// The gate is informational: it keeps honest embedders from mounting the widget
// on the wrong site and is not a security boundary.
package hostgate

import (
	"net"
	"net/url"
	"strings"
)

// Allowed reports whether host matches allowList. An empty list allows every
// host. Entries match exactly or, when written as *.domain, match any subdomain
// of domain. Matching ignores case and ports.
func Allowed(host string, allowList []string) bool {
	if len(allowList) == 0 {
		return true
	}

	host = Hostname(host)
	if host == "" {
		return false
	}

	for _, entry := range allowList {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}

		if suffix, ok := strings.CutPrefix(entry, "*."); ok {
			if strings.HasSuffix(host, "."+Hostname(suffix)) {
				return true
			}
			continue
		}

		if host == Hostname(entry) {
			return true
		}
	}

	return false
}

// Hostname reduces a host, host:port or origin URL to a lower-case hostname.
func Hostname(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}

	if strings.Contains(value, "://") {
		if u, err := url.Parse(value); err == nil {
			return strings.TrimSuffix(u.Hostname(), ".")
		}
	}

	if h, _, err := net.SplitHostPort(value); err == nil {
		value = h
	}

	return strings.TrimSuffix(strings.Trim(value, "[]"), ".")
}
