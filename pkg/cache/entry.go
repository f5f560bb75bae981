package cache

// Entry is a cached page as written to the shared store.
//
// The stored value is the body bytes verbatim: the reverse proxy
// serves the value as-is, so there is no envelope around it. The
// status code is carried for the read side of this package only; the
// admission rules pin every stored entry to status 200.
type Entry struct {
	// Body is the response body, served byte-for-byte by the proxy.
	Body []byte

	// StatusCode is the HTTP status of the cached response.
	StatusCode int
}
