// Package mockfeed is a local stand-in for the Sentinel backend.
//
// It serves the price stream WebSocket at /price/stream and the REST API
// under /api/v1. Prices follow a bounded random walk; alerts created over
// REST fire once when a tick crosses their target.
package mockfeed
