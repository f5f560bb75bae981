// Package cache derives page-cache keys and writes admitted
// responses to the key-value store shared with the reverse proxy.
//
// The proxy serves cached pages directly from the store, bypassing
// the application, by recomputing the same key from its own view of
// the request. The key derivation is therefore a pinned cross-system
// contract: both sides must produce identical bytes, and any change
// to it is a breaking change requiring synchronized redeployment of
// the proxy configuration and this package.
//
// # Key contract
//
// The store key is
//
//	<prefix> + md5_hex("<scheme>://<host><request-uri>[#<version>]")
//
// where
//
//   - scheme is "http" or "https" as seen at the proxy
//   - host is lowercase with the default port stripped (nginx $host;
//     deployments on a non-default port keep it and must configure
//     the proxy to hash "$host:$server_port")
//   - request-uri is the verbatim path plus raw query string
//     (nginx $request_uri); the query string is NOT re-sorted or
//     re-encoded
//   - version is the page version token, appended after a "#"
//     separator only when non-empty
//   - prefix is an optional literal, usually empty
//
// The matching nginx configuration reads the version token from the
// "pv" cookie the middleware sets on every response:
//
//	set $page_version "";
//	if ($cookie_pv) { set $page_version "#$cookie_pv"; }
//	set_md5 $page_key "$scheme://$host$request_uri$page_version";
//	redis_pass ...;  # or memcached_pass, keyed by $page_key
//
// Folding the version into the hashed string through a cookie the
// proxy already reads keeps the token transparent to the proxy's own
// key computation: both sides hash the same bytes.
//
// # Store contract
//
// The shared store is Redis. Writes are single atomic SETs with TTL;
// concurrent writers for the same page resolve by last-write-wins.
// The stored value is the response body verbatim, with no envelope,
// because the proxy serves the value bytes as-is. Only 200 GET
// responses are ever admitted, so the status line the proxy
// synthesizes is always correct.
//
// # Failure semantics
//
// Cache writes are best-effort. Store failures and timeouts are
// logged, counted, and dropped; they never fail or delay the page
// render that produced the response.
package cache
