package validate

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// IdentRe matches valid component identifiers (model names such as
// "whisper_medium"). Must start with alphanumeric, followed by alphanumeric,
// dots, hyphens, or underscores.
var IdentRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// MaxIdentLen is the maximum length for component identifiers.
const MaxIdentLen = 128

// Ident validates a string as a component identifier.
func Ident(s string) bool {
	return len(s) > 0 && len(s) <= MaxIdentLen && IdentRe.MatchString(s)
}

// HTTPURL ensures the URL uses http or https scheme and has a non-empty host
// so download sources cannot point at file://, ftp://, or other dangerous
// schemes.
func HTTPURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		// OK
	case "":
		return fmt.Errorf("URL missing scheme: %s", rawURL)
	default:
		return fmt.Errorf("URL scheme %q not allowed (only http/https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL missing host: %s", rawURL)
	}
	return nil
}

// RejectPrivateURL checks whether the URL's host is a private or internal
// IP address (loopback, link-local, RFC-1918, or "localhost"). Registry
// files and release assets come from user-editable JSON, so this blocks the
// common SSRF vectors such as cloud metadata endpoints.
//
// Only literal IPs and the "localhost" hostname are inspected; DNS-resolved
// addresses require transport-level protection.
func RejectPrivateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return nil // Let HTTPURL handle empty host
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("URL host %q is a private/internal address", host)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil // Not an IP literal
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return fmt.Errorf("URL host %q is a private/internal address", host)
	}
	return nil
}
