// Package api implements the JSON status API of the exporter.
//
// New(store) returns an http.Handler that serves:
//
//	GET /api/v1/health      : state of the last scrape cycle
//	GET /api/v1/directories : latest measurement of every live directory;
//	                          ?base_dir=/data limits it to one target's children
//	GET /api/v1/snapshot    : health and directories in one document
//
// All endpoints respond with Content-Type: application/json and return 405 for
// non-GET methods. The Prometheus exposition itself is served by the metrics
// package; this API is for humans and the websocket stream.
package api
