package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/edgecache-io/pagecache/pkg/admission"
	"github.com/edgecache-io/pagecache/pkg/cache"
)

type memStore struct {
	mu   sync.Mutex
	sets map[string][]byte
	err  error
}

func newMemStore() *memStore {
	return &memStore{sets: make(map[string][]byte)}
}

func (s *memStore) Set(_ context.Context, key string, body []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sets[key] = body
	return nil
}

func (s *memStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets)
}

func (s *memStore) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.sets[key]
	return b, ok
}

func newTestMiddleware(t *testing.T, store cache.Store, policy admission.Policy, version string) *Middleware {
	t.Helper()

	writer, err := cache.NewWriter(store, nil, cache.WriterConfig{
		TTL:     time.Minute,
		Version: func(*http.Request) string { return version },
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	m, err := New(Config{Policy: policy, Writer: writer})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m
}

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, body)
	})
}

func TestMiddleware_ResponseUnchanged(t *testing.T) {
	store := newMemStore()
	m := newTestMiddleware(t, store, admission.DefaultPolicy(), "en")

	handler := m.Wrap(okHandler("<html>page</html>"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/page", nil))
	m.Drain()

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "<html>page</html>" {
		t.Errorf("body = %q, want original body", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
}

func TestMiddleware_AdmittedPageIsCached(t *testing.T) {
	store := newMemStore()
	m := newTestMiddleware(t, store, admission.DefaultPolicy(), "en")

	handler := m.Wrap(okHandler("<html>42</html>"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/products/42?lang=en", nil))
	m.Drain()

	wantKey := cache.Key{
		Scheme:     "http",
		Host:       "example.com",
		RequestURI: "/products/42?lang=en",
		Version:    "en",
	}.Hash()

	body, ok := store.get(wantKey)
	if !ok {
		t.Fatalf("no cache write at key %s", wantKey)
	}
	if string(body) != "<html>42</html>" {
		t.Errorf("cached body = %q, want handler output", body)
	}
}

func TestMiddleware_AuthenticatedCallerNotCached(t *testing.T) {
	store := newMemStore()
	policy := admission.DefaultPolicy()
	policy.AnonymousOnly = true
	m := newTestMiddleware(t, store, policy, "")

	handler := m.Wrap(okHandler("secret"))

	r := httptest.NewRequest(http.MethodGet, "http://example.com/account", nil)
	r.Header.Set("Authorization", "Bearer token")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	m.Drain()

	if w.Body.String() != "secret" {
		t.Errorf("body = %q, response must be served regardless", w.Body.String())
	}
	if store.writes() != 0 {
		t.Errorf("store writes = %d, want 0 for authenticated caller", store.writes())
	}
}

func TestMiddleware_NonGETPassesThroughUnbuffered(t *testing.T) {
	store := newMemStore()
	m := newTestMiddleware(t, store, admission.DefaultPolicy(), "")

	handler := m.Wrap(okHandler("created"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "http://example.com/submit", nil))
	m.Drain()

	if w.Body.String() != "created" {
		t.Errorf("body = %q, want pass-through body", w.Body.String())
	}
	if store.writes() != 0 {
		t.Errorf("store writes = %d, want 0 for POST", store.writes())
	}
}

func TestMiddleware_ErrorStatusNotCached(t *testing.T) {
	store := newMemStore()
	m := newTestMiddleware(t, store, admission.DefaultPolicy(), "")

	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/missing", nil))
	m.Drain()

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if store.writes() != 0 {
		t.Errorf("store writes = %d, want 0 for 404", store.writes())
	}
}

func TestMiddleware_KillSwitchSkipsEverything(t *testing.T) {
	store := newMemStore()
	policy := admission.DefaultPolicy()
	policy.Enabled = false
	m := newTestMiddleware(t, store, policy, "en")

	handler := m.Wrap(okHandler("page"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/", nil))
	m.Drain()

	if store.writes() != 0 {
		t.Errorf("store writes = %d, want 0 when disabled", store.writes())
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("version cookie set while caching disabled")
	}
}

func TestMiddleware_VersionCookie(t *testing.T) {
	store := newMemStore()
	m := newTestMiddleware(t, store, admission.DefaultPolicy(), "flag-b")

	handler := m.Wrap(okHandler("page"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/", nil))
	m.Drain()

	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == DefaultVersionCookie {
			found = c
		}
	}
	if found == nil {
		t.Fatal("version cookie not set")
	}
	if found.Value != "flag-b" {
		t.Errorf("cookie value = %q, want %q", found.Value, "flag-b")
	}
	if found.Path != "/" {
		t.Errorf("cookie path = %q, want /", found.Path)
	}
}

func TestMiddleware_NoCookieForEmptyVersion(t *testing.T) {
	store := newMemStore()
	m := newTestMiddleware(t, store, admission.DefaultPolicy(), "")

	handler := m.Wrap(okHandler("page"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/", nil))
	m.Drain()

	if len(w.Result().Cookies()) != 0 {
		t.Error("cookie set for empty version token")
	}
}

// A failing store must be invisible to the client.
func TestMiddleware_StoreFailureInvisible(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	m := newTestMiddleware(t, store, admission.DefaultPolicy(), "")

	handler := m.Wrap(okHandler("page"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/", nil))
	m.Drain()

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 despite store failure", w.Code)
	}
	if w.Body.String() != "page" {
		t.Errorf("body = %q, want original body despite store failure", w.Body.String())
	}
}

func TestNew_RequiresWriter(t *testing.T) {
	if _, err := New(Config{Policy: admission.DefaultPolicy()}); err == nil {
		t.Error("New accepted a nil writer")
	}
}
