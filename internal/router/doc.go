// Package router dispatches inbound stream frames by their "type" field.
//
// Handled types:
//   - price_update, initial_data: batch of price records
//   - heartbeat: liveness only
//   - alert_triggered: one alert event
//   - error: server-reported error message
//
// Unknown types are ignored. Malformed frames are dropped and counted.
package router
