// Package poller implements the Market Poller component.
//
// The Market Poller:
//   - Polls the REST API every minute for the market summary
//   - Fetches a reference quote for every listed symbol
//   - Uses concurrent requests with a fixed concurrency limit
//   - Keeps the latest complete snapshot for the status server
package poller
