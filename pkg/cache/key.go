package cache

import (
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"strings"
)

// Key carries the request attributes that feed the cache key. The
// reverse proxy recomputes the same key from its own view of the
// request, so the set of inputs and their byte layout are a pinned
// cross-system contract (see the package documentation).
type Key struct {
	// Scheme is "http" or "https" as seen at the proxy.
	Scheme string

	// Host is the request host, lowercased, default port stripped.
	Host string

	// RequestURI is the path plus raw query string, verbatim.
	RequestURI string

	// Version is the page version token. Empty means unversioned and
	// contributes no bytes to the key.
	Version string
}

// KeyFromRequest builds a Key from an inbound request with the given
// page version token. The scheme follows the proxy's view: transport
// TLS, then the X-Forwarded-Proto header, then plain http.
func KeyFromRequest(r *http.Request, version string) Key {
	return Key{
		Scheme:     requestScheme(r),
		Host:       canonicalHost(r.Host),
		RequestURI: r.URL.RequestURI(),
		Version:    version,
	}
}

// Raw returns the exact byte string the proxy hashes:
//
//	<scheme>://<host><request-uri>[#<version>]
//
// The "#<version>" segment is present only when the version token is
// non-empty. A fragment never appears in a request URI, so the "#"
// separator cannot collide with bytes of the URI itself.
func (k Key) Raw() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(k.Scheme))
	b.WriteString("://")
	b.WriteString(strings.ToLower(k.Host))
	b.WriteString(k.RequestURI)
	if k.Version != "" {
		b.WriteString("#")
		b.WriteString(k.Version)
	}
	return b.String()
}

// Hash returns the lowercase hex MD5 of Raw. This matches nginx's
// set_md5 applied to the same byte string.
func (k Key) Hash() string {
	sum := md5.Sum([]byte(k.Raw()))
	return hex.EncodeToString(sum[:])
}

// requestScheme resolves the scheme the proxy saw for r.
func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return strings.ToLower(proto)
	}
	return "http"
}

// canonicalHost lowercases host and strips the default :80/:443
// suffix, mirroring nginx's $host.
func canonicalHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimSuffix(host, ":443")
	return host
}
