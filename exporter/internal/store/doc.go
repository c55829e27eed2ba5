// Package store keeps the latest measurement of every directory for the
// status API and the websocket stream. It is a thread-safe in-memory map keyed
// by the series labels, with TTL eviction so directories that disappear from
// the tree also disappear from the API. It implements scraper.Recorder.
package store
