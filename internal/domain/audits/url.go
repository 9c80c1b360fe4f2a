package audits

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateURL accepts absolute public http(s) URLs only. Every rejection wraps ErrInvalidURL.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: url cannot be empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q (allowed: http, https)", ErrInvalidURL, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if u.User != nil {
		return fmt.Errorf("%w: credentials in url", ErrInvalidURL)
	}

	// SSRF guard
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".internal") {
		return fmt.Errorf("%w: localhost/internal hosts are not allowed", ErrInvalidURL)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return fmt.Errorf("%w: private or loopback address", ErrInvalidURL)
		}
	} else if !strings.Contains(host, ".") {
		return fmt.Errorf("%w: host %q is not a public domain", ErrInvalidURL, host)
	}
	return nil
}
