// Package middleware wires the admission policy and the cache writer
// into a net/http handler chain. It captures completed responses,
// runs the admission test, and hands admitted pages to the writer off
// the response path. Caching is a side effect: the response seen by
// the original requester is never altered or delayed by it.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/edgecache-io/pagecache/pkg/admission"
	"github.com/edgecache-io/pagecache/pkg/cache"
)

var admissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pagecache_admission_total",
	Help: "Admission decisions for completed responses",
}, []string{"decision"}) // "admitted", "rejected"

// DefaultVersionCookie is the cookie carrying the page version token.
// The reverse proxy reads this cookie and folds its value into its own
// key derivation, which is how the token stays transparent to the
// proxy's algorithm.
const DefaultVersionCookie = "pv"

// Config configures the middleware.
type Config struct {
	// Policy is the admission policy.
	Policy admission.Policy

	// Writer performs the cache writes. Required.
	Writer *cache.Writer

	// VersionCookie is the name of the cookie the version token is
	// echoed in. Empty means DefaultVersionCookie.
	VersionCookie string

	// Logger defaults to a nop logger when unset.
	Logger zerolog.Logger
}

// Middleware caches admitted responses as they stream out.
type Middleware struct {
	policy admission.Policy
	writer *cache.Writer
	cookie string
	logger zerolog.Logger

	writes sync.WaitGroup
}

// New creates a Middleware from cfg.
func New(cfg Config) (*Middleware, error) {
	if cfg.Writer == nil {
		return nil, fmt.Errorf("cache writer is required")
	}
	cookie := cfg.VersionCookie
	if cookie == "" {
		cookie = DefaultVersionCookie
	}
	return &Middleware{
		policy: cfg.Policy,
		writer: cfg.Writer,
		cookie: cookie,
		logger: cfg.Logger,
	}, nil
}

// Wrap returns a handler that serves next and caches admitted
// responses. Requests that can never be admitted (non-GET, or the
// kill switch is off) are passed through without buffering.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.policy.Enabled || r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		// Echo the version token before any headers go out, so the
		// proxy sees it on this response and on every lookup after.
		if token := m.writer.VersionToken(r); token != "" {
			http.SetCookie(w, &http.Cookie{
				Name:  m.cookie,
				Value: token,
				Path:  "/",
			})
		}

		rec := newResponseRecorder(w)
		next.ServeHTTP(rec, r)

		if !m.policy.ShouldCache(r, rec.StatusCode()) {
			admissionDecisions.WithLabelValues("rejected").Inc()
			return
		}
		admissionDecisions.WithLabelValues("admitted").Inc()

		entry := cache.Entry{Body: rec.Body(), StatusCode: rec.StatusCode()}

		// Fire and forget: the request context ends with this
		// response, so the write runs on a fresh context bounded by
		// the writer's own timeout. Errors are already logged and
		// counted by the writer.
		m.writes.Add(1)
		go func() {
			defer m.writes.Done()
			_ = m.writer.CacheResponse(context.Background(), r, entry)
		}()
	})
}

// Drain blocks until all in-flight cache writes have finished. Call
// it during shutdown so writes are not abandoned mid-flight.
func (m *Middleware) Drain() {
	m.writes.Wait()
}
