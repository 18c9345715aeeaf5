// Package server exposes the stream client's state over HTTP.
//
// Routes:
//   - GET  /health           connection health (503 while disconnected)
//   - GET  /status           status, reconnect progress, last error, frame stats
//   - GET  /prices           latest price per symbol, sorted by symbol
//   - GET  /prices/:symbol   one symbol
//   - POST /reconnect        manual reconnect
//   - GET  <metrics path>    Prometheus exposition
package server
