// Package ws implements the websocket snapshot stream of the exporter.
//
// A Hub subscribes to the measurement store and pushes the current snapshot
// to every client when it connects and after each finished scrape cycle.
// Between cycles nothing is sent except ping frames, since the directory data
// only changes when a cycle completes.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// Each client holds at most one unsent snapshot; a slow reader skips to the
// newest one. The upgrader accepts all origins; restrict them at the reverse
// proxy. The endpoint is mounted at /ws/stream.
package ws
