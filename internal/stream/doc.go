// Package stream implements the resilient price stream client.
//
// A Client keeps one WebSocket connection to the price feed alive:
//   - Any inbound frame resets a 35s heartbeat; silence closes the connection
//   - A ping goes out every 25s while connected
//   - Lost connections are retried after min(1s*2^n, 30s), up to 10 times
//   - After the last attempt the client stays disconnected until Connect or Reconnect
//
// Prices survive reconnects and are cleared only by Stop.
package stream
