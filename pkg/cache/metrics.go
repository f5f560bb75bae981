package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pageWrites tracks successful page-cache writes.
	pageWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagecache_writes_total",
			Help: "Total number of pages written to the shared cache",
		},
	)

	// pageWriteFailures tracks writes dropped because the store or
	// the lookup record write failed.
	pageWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagecache_write_failures_total",
			Help: "Total number of dropped page-cache writes by stage",
		},
		[]string{"stage"}, // "store", "lookup"
	)

	// storeErrors tracks shared-store operation errors.
	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagecache_store_errors_total",
			Help: "Total number of shared-store operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)

	// storeBytesWritten tracks the volume of cached body bytes.
	storeBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagecache_store_bytes_written_total",
			Help: "Total body bytes written to the shared cache",
		},
	)
)
