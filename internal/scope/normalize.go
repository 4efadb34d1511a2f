// Package scope canonicalizes URLs and decides which of them belong to the
// crawled site.
package scope

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	ErrEmptyURL          = errors.New("empty url")
	ErrEmptyHost         = errors.New("url has no host")
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
)

var opaqueSchemes = []string{"mailto:", "tel:", "javascript:", "data:", "ftp:", "file:"}

// Normalize returns the canonical form of raw used as the key for every
// per-URL structure: https when no scheme is given, lower-case host
// without a leading "www.", no fragment, no default port, path and query
// kept verbatim, trailing slashes removed except for the root path.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyURL
	}

	lower := strings.ToLower(s)
	for _, p := range opaqueSchemes {
		if strings.HasPrefix(lower, p) {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, strings.TrimSuffix(p, ":"))
		}
	}
	switch {
	case strings.HasPrefix(s, "//"):
		s = "https:" + s
	case !strings.Contains(s, "://"):
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}

	host := trimWWW(strings.ToLower(u.Hostname()))
	if host == "" {
		return "", ErrEmptyHost
	}
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}

	path := strings.TrimRight(u.EscapedPath(), "/")
	if path == "" {
		path = "/"
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(u.User.String())
		b.WriteByte('@')
	}
	b.WriteString(host)
	b.WriteString(path)
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	return b.String(), nil
}

// trimWWW strips every leading "www." label, so www.www.example.com and
// example.com share one key.
func trimWWW(host string) string {
	for strings.HasPrefix(host, "www.") {
		host = host[len("www."):]
	}
	return host
}

// MustNormalize is Normalize for inputs known to be valid, such as test
// fixtures.
func MustNormalize(raw string) string {
	n, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return n
}

// Host returns the host of a normalized URL without port.
func Host(canonical string) string {
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
