// Package model defines shared data types used across the price stream client.
//
// Conventions:
//   - Prices: shopspring decimal values, never float64
//   - Timestamps on price records: the server's string form, passed through untouched
//   - Alert IDs: string form of the server-issued UUID
package model
