package cache

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/edgecache-io/pagecache/pkg/lookup"
)

// DefaultWriteTimeout bounds a single cache write. Caching is a side
// channel; a slow store degrades to a skipped write, never to a slow
// page.
const DefaultWriteTimeout = 2 * time.Second

// WriterConfig configures the store writer. It is validated once in
// NewWriter and immutable afterwards.
type WriterConfig struct {
	// TTL is the expiry applied to every write. Required, > 0.
	TTL time.Duration

	// Version derives the page version token from the request. It
	// must be pure. Required; return "" for unversioned pages.
	Version func(r *http.Request) string

	// KeyPrefix is prepended to the hashed key. It must match the
	// prefix configured on the proxy side, usually empty.
	KeyPrefix string

	// LookupIdentifier scopes lookup records for administrative
	// invalidation. Empty defaults to the request host.
	LookupIdentifier string

	// SupplementaryIdentifier is a free-form extra scope for lookup
	// records. It never feeds the cache key.
	SupplementaryIdentifier string

	// WriteTimeout bounds each write. Zero means
	// DefaultWriteTimeout.
	WriteTimeout time.Duration
}

func (c WriterConfig) validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive (got %v)", c.TTL)
	}
	if c.Version == nil {
		return fmt.Errorf("version function is required")
	}
	return nil
}

// Writer derives cache keys and writes admitted responses to the
// shared store, plus a lookup record for scoped invalidation.
type Writer struct {
	store   Store
	records lookup.Recorder
	config  WriterConfig
	logger  zerolog.Logger
}

// NewWriter creates a Writer. records may be nil when no
// administrative lookup table is deployed. Configuration errors are
// reported here, never at request time.
func NewWriter(store Store, records lookup.Recorder, cfg WriterConfig, logger zerolog.Logger) (*Writer, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("writer config: %w", err)
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	return &Writer{
		store:   store,
		records: records,
		config:  cfg,
		logger:  logger,
	}, nil
}

// StoreKey returns the final store key for r: the configured prefix
// plus the hashed request key with the page version token folded in.
func (w *Writer) StoreKey(r *http.Request) string {
	return w.config.KeyPrefix + KeyFromRequest(r, w.config.Version(r)).Hash()
}

// VersionToken returns the page version token for r.
func (w *Writer) VersionToken(r *http.Request) string {
	return w.config.Version(r)
}

// CacheResponse writes entry to the shared store under the key
// derived from r, then upserts the lookup record. It is called only
// for admitted responses and does not re-run admission.
//
// Failures are logged and counted and the error is returned for the
// caller to discard; a failed write must never fail the page render.
func (w *Writer) CacheResponse(ctx context.Context, r *http.Request, entry Entry) error {
	version := w.config.Version(r)
	key := w.config.KeyPrefix + KeyFromRequest(r, version).Hash()

	ctx, cancel := context.WithTimeout(ctx, w.config.WriteTimeout)
	defer cancel()

	if err := w.store.Set(ctx, key, entry.Body, w.config.TTL); err != nil {
		pageWriteFailures.WithLabelValues("store").Inc()
		w.logger.Warn().
			Err(err).
			Str("key", key).
			Str("uri", r.URL.RequestURI()).
			Msg("Page-cache write skipped")
		return fmt.Errorf("cache write: %w", err)
	}
	pageWrites.Inc()

	w.logger.Debug().
		Str("key", key).
		Str("uri", r.URL.RequestURI()).
		Dur("ttl", w.config.TTL).
		Int("bytes", len(entry.Body)).
		Msg("Page cached")

	if w.records == nil {
		return nil
	}

	record := lookup.Record{
		CacheKey:                key,
		LookupIdentifier:        w.lookupIdentifier(r),
		SupplementaryIdentifier: w.config.SupplementaryIdentifier,
		Version:                 version,
	}
	if err := w.records.Upsert(ctx, record); err != nil {
		pageWriteFailures.WithLabelValues("lookup").Inc()
		w.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("Lookup record write failed")
		return fmt.Errorf("lookup record: %w", err)
	}
	return nil
}

func (w *Writer) lookupIdentifier(r *http.Request) string {
	if w.config.LookupIdentifier != "" {
		return w.config.LookupIdentifier
	}
	return canonicalHost(r.Host)
}
