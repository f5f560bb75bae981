// Package admission decides whether a completed response may be
// written to the shared page cache.
package admission

import (
	"net/http"
	"strings"
)

// SignalHeader is a header name/value pair that marks a request as
// having arrived over HTTPS even when the transport itself is plain
// HTTP (TLS terminated upstream).
type SignalHeader struct {
	Name  string
	Value string
}

// DefaultSignalHeaders are the pairs checked when HTTPS pages are
// excluded from caching and the request carries no TLS state of its
// own. Matching is case-insensitive on both name and value.
func DefaultSignalHeaders() []SignalHeader {
	return []SignalHeader{
		{Name: "X-Forwarded-Proto", Value: "https"},
		{Name: "X-Forwarded-SSL", Value: "on"},
	}
}

// Policy holds the admission rules. A Policy is immutable after
// construction and safe for concurrent use; ShouldCache is a pure
// predicate over its inputs.
type Policy struct {
	// Enabled is the process-wide kill switch. When false every
	// response is rejected.
	Enabled bool

	// AnonymousOnly rejects responses produced for authenticated
	// callers.
	AnonymousOnly bool

	// IncludeHTTPS controls whether pages served over HTTPS are
	// cacheable. When false, requests with transport-level TLS or a
	// matching signal header are rejected.
	IncludeHTTPS bool

	// SignalHeaders is the ordered list of HTTPS indicators checked
	// when IncludeHTTPS is false and the request has no TLS state.
	// Nil falls back to DefaultSignalHeaders.
	SignalHeaders []SignalHeader

	// Authenticated reports whether the request was made by a
	// logged-in caller. Nil falls back to DefaultAuthenticated.
	// It must not mutate the request.
	Authenticated func(r *http.Request) bool
}

// DefaultPolicy returns a Policy that caches every anonymous 200 GET,
// HTTPS included.
func DefaultPolicy() Policy {
	return Policy{
		Enabled:       true,
		IncludeHTTPS:  true,
		SignalHeaders: DefaultSignalHeaders(),
	}
}

// SessionCookieName is the session cookie DefaultAuthenticated looks
// for.
const SessionCookieName = "sessionid"

// DefaultAuthenticated treats a request as authenticated when it
// carries an Authorization header or a session cookie.
func DefaultAuthenticated(r *http.Request) bool {
	if r.Header.Get("Authorization") != "" {
		return true
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return true
	}
	return false
}

// ShouldCache reports whether the response to r with the given status
// code may be written to the cache. Rules are checked in a fixed
// order and the first rejecting rule wins:
//
//  1. the Enabled kill switch
//  2. only GET requests with status 200 (HEAD is rejected here: its
//     body has been discarded upstream, and caching the empty body
//     under the GET key would corrupt later GET lookups)
//  3. AnonymousOnly vs. the authenticated state of the caller
//  4. HTTPS exclusion: transport TLS first, then the signal headers
//     in order
//
// ShouldCache never mutates r and performs no I/O.
func (p Policy) ShouldCache(r *http.Request, status int) bool {
	if !p.Enabled {
		return false
	}
	if r.Method != http.MethodGet || status != http.StatusOK {
		return false
	}
	if p.AnonymousOnly && p.authenticated(r) {
		return false
	}
	if !p.IncludeHTTPS {
		if r.TLS != nil {
			return false
		}
		if matchesSignalHeader(r.Header, p.signalHeaders()) {
			return false
		}
	}
	return true
}

func (p Policy) authenticated(r *http.Request) bool {
	if p.Authenticated != nil {
		return p.Authenticated(r)
	}
	return DefaultAuthenticated(r)
}

func (p Policy) signalHeaders() []SignalHeader {
	if p.SignalHeaders != nil {
		return p.SignalHeaders
	}
	return DefaultSignalHeaders()
}

// matchesSignalHeader checks the pairs in order and reports whether
// any inbound header value equals its expected value, ignoring case.
// A header absent from the request is a non-match, never an error.
func matchesSignalHeader(h http.Header, pairs []SignalHeader) bool {
	for _, pair := range pairs {
		// Header.Get canonicalizes the name, so lookup is already
		// case-insensitive.
		got := h.Get(pair.Name)
		if got == "" {
			continue
		}
		if strings.EqualFold(got, pair.Value) {
			return true
		}
	}
	return false
}
