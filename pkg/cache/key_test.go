package cache

import (
	"crypto/md5"
	"crypto/tls"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestKey_Raw(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "path only",
			key:  Key{Scheme: "http", Host: "example.com", RequestURI: "/products/42"},
			want: "http://example.com/products/42",
		},
		{
			name: "path with query",
			key:  Key{Scheme: "http", Host: "example.com", RequestURI: "/products/42?lang=en"},
			want: "http://example.com/products/42?lang=en",
		},
		{
			name: "version token appended after separator",
			key: Key{
				Scheme:     "http",
				Host:       "example.com",
				RequestURI: "/products/42?lang=en",
				Version:    "v7",
			},
			want: "http://example.com/products/42?lang=en#v7",
		},
		{
			name: "empty version contributes no bytes",
			key:  Key{Scheme: "http", Host: "example.com", RequestURI: "/", Version: ""},
			want: "http://example.com/",
		},
		{
			name: "scheme and host folded to lowercase",
			key:  Key{Scheme: "HTTPS", Host: "Example.COM", RequestURI: "/a"},
			want: "https://example.com/a",
		},
		{
			name: "query order preserved verbatim",
			key:  Key{Scheme: "http", Host: "example.com", RequestURI: "/p?b=2&a=1"},
			want: "http://example.com/p?b=2&a=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.Raw(); got != tt.want {
				t.Errorf("Raw() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_Hash(t *testing.T) {
	key := Key{
		Scheme:     "http",
		Host:       "example.com",
		RequestURI: "/products/42?lang=en",
		Version:    "v7",
	}

	sum := md5.Sum([]byte("http://example.com/products/42?lang=en#v7"))
	want := hex.EncodeToString(sum[:])

	if got := key.Hash(); got != want {
		t.Errorf("Hash() = %q, want %q", got, want)
	}
}

// Distinct version tokens for the same URL must not collide.
func TestKey_VersionSeparatesKeys(t *testing.T) {
	base := Key{Scheme: "http", Host: "example.com", RequestURI: "/products/42"}

	v1, v2 := base, base
	v1.Version = "en"
	v2.Version = "fi"

	if v1.Hash() == v2.Hash() {
		t.Error("keys for distinct version tokens collide")
	}
	if base.Hash() == v1.Hash() {
		t.Error("versioned key collides with unversioned key")
	}
}

// Same inputs always give the same key. The derivation has no process
// state, so equality here also means stability across restarts.
func TestKey_Determinism(t *testing.T) {
	key := Key{
		Scheme:     "https",
		Host:       "shop.example.com",
		RequestURI: "/products/42?lang=en&page=2",
		Version:    "flag-b",
	}

	first := key.Hash()
	for i := 0; i < 10; i++ {
		if got := key.Hash(); got != first {
			t.Fatalf("Hash() = %q on iteration %d, want %q", got, i, first)
		}
	}
}

func TestKeyFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		request func() *http.Request
		version string
		want    Key
	}{
		{
			name: "plain http request",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "http://example.com/products/42?lang=en", nil)
			},
			version: "v1",
			want: Key{
				Scheme:     "http",
				Host:       "example.com",
				RequestURI: "/products/42?lang=en",
				Version:    "v1",
			},
		},
		{
			name: "TLS request",
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "https://example.com/a", nil)
				r.TLS = &tls.ConnectionState{}
				return r
			},
			want: Key{Scheme: "https", Host: "example.com", RequestURI: "/a"},
		},
		{
			name: "forwarded proto wins over plain transport",
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "http://example.com/a", nil)
				r.Header.Set("X-Forwarded-Proto", "HTTPS")
				return r
			},
			want: Key{Scheme: "https", Host: "example.com", RequestURI: "/a"},
		},
		{
			name: "default port stripped from host",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "http://example.com:80/a", nil)
			},
			want: Key{Scheme: "http", Host: "example.com", RequestURI: "/a"},
		},
		{
			name: "non-default port kept",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "http://example.com:8080/a", nil)
			},
			want: Key{Scheme: "http", Host: "example.com:8080", RequestURI: "/a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeyFromRequest(tt.request(), tt.version)
			if got != tt.want {
				t.Errorf("KeyFromRequest() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
