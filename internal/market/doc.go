// Package market aggregates streamed prices into a last-known-value store.
//
// The Store keeps one PriceRecord per symbol. A newer record replaces the
// previous one whole; fields are never merged. Contents survive disconnects
// and are only cleared when the owning client is disposed.
package market
