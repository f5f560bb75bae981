// Package metrics provides the centralized Prometheus registry for
// the page cache. Metrics are defined in their owning packages
// (cache, middleware) to keep them next to the code that drives them;
// this package documents them in one place.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registry used by the page cache. All
// metrics register via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Admission Metrics (pkg/middleware):
//   - pagecache_admission_total{decision} (Counter): Admission decisions
//     for completed responses ("admitted", "rejected")
//
// Write Metrics (pkg/cache):
//   - pagecache_writes_total (Counter): Pages written to the shared cache
//   - pagecache_write_failures_total{stage} (Counter): Dropped writes by
//     stage ("store", "lookup")
//   - pagecache_store_errors_total{operation} (Counter): Shared-store
//     operation errors ("get", "set", "delete")
//   - pagecache_store_bytes_written_total (Counter): Cached body bytes
//
// Example Prometheus Queries:
//
//   # Admission rate
//   sum(rate(pagecache_admission_total{decision="admitted"}[5m])) /
//   sum(rate(pagecache_admission_total[5m]))
//
//   # Dropped write rate (store trouble shows up here first)
//   rate(pagecache_write_failures_total[5m])
//
//   # Cache write volume
//   rate(pagecache_store_bytes_written_total[5m])
