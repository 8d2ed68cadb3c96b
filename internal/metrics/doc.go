// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Upstream fetch attempts by endpoint and status, rate-limit retries
//   - Poll cycle outcomes and durations per dashboard poller
//   - Feed reads, subscriber counts, last price and state per feed
//   - History buffer length and persistence failures per key
//   - HTTP API request counts and latencies
package metrics
