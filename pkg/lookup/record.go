// Package lookup persists administrative records that map cache keys
// back to the logical site and page variant they were written for.
// The invalidation subsystem uses these records to find and purge
// whole scopes without knowing individual URLs; the write path of the
// page cache only ever upserts them.
package lookup

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no record exists for the requested scope.
var ErrNotFound = errors.New("lookup record not found")

// Record associates a derived cache key with its invalidation scope.
type Record struct {
	// ID is assigned by the store on first insert.
	ID string

	// CacheKey is the final store key of the cached page. Unique.
	CacheKey string

	// LookupIdentifier is the logical host/site scope, by default the
	// request host.
	LookupIdentifier string

	// SupplementaryIdentifier is an optional free-form sub-scope.
	SupplementaryIdentifier string

	// Version is the page version token the key was derived with.
	Version string

	// CreatedAt is when the record was first written.
	CreatedAt time.Time
}

// Recorder is the write surface the cache writer depends on.
type Recorder interface {
	// Upsert inserts the record or refreshes the existing row for
	// its cache key.
	Upsert(ctx context.Context, rec Record) error
}
