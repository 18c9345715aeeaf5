// Package connection implements the transport layer of the price stream.
//
// It provides:
//   - A single WebSocket client with message and error channels
//   - A heartbeat monitor that flags silent connections as stale
//   - A keepalive emitter that sends application-level pings
//   - The reconnection backoff policy
//   - The connection state transition table
//
// None of these types retry on their own. The stream package drives them
// from one event loop.
package connection
