// Package api provides the Sentinel backend REST client.
//
// Endpoints (relative to the base URL, e.g. http://localhost:8000/api/v1):
//   - GET    /symbols
//   - GET    /symbols/{symbol}/price
//   - GET    /market/summary
//   - GET    /alerts
//   - POST   /alerts
//   - DELETE /alerts/{id}
//
// Live prices are not polled here; they arrive over the WebSocket stream.
package api
