// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection state and reconnection attempts
//   - Inbound frame rates by type and parse errors
//   - Price records applied and symbols held
//   - Heartbeat timeouts and keepalive failures
package metrics
