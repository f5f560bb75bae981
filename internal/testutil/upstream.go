// Package testutil provides testing utilities for the page cache.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// UpstreamResponse defines the behavior of a mock upstream page.
type UpstreamResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// Upstream is a configurable mock origin application for testing the
// caching layer in front of it.
type Upstream struct {
	server *httptest.Server

	mu       sync.RWMutex
	pages    map[string]UpstreamResponse
	requests int
}

// NewUpstream creates a mock upstream server. Unconfigured paths
// return 404.
func NewUpstream() *Upstream {
	u := &Upstream{
		pages: make(map[string]UpstreamResponse),
	}

	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.requests++
		page, ok := u.pages[r.URL.Path]
		u.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		for k, v := range page.Headers {
			w.Header().Set(k, v)
		}
		if page.StatusCode != 0 {
			w.WriteHeader(page.StatusCode)
		}
		fmt.Fprint(w, page.Body)
	}))

	return u
}

// SetPage configures the response served at path.
func (u *Upstream) SetPage(path string, resp UpstreamResponse) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pages[path] = resp
}

// Requests returns how many requests reached the upstream.
func (u *Upstream) Requests() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.requests
}

// URL returns the base URL of the mock upstream.
func (u *Upstream) URL() string {
	return u.server.URL
}

// Close shuts the mock upstream down.
func (u *Upstream) Close() {
	u.server.Close()
}
