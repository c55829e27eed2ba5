// Package types defines the shared Go types passed between the scraper, the
// metrics registry, the status store and the HTTP surfaces.
//
// ScrapeMode is the closed set of ways a configured directory is measured.
// Labels is the (full path, base dir, short name) key of one gauge series.
// Usage is the raw result of one directory walk, Measurement adds the labels
// and timing of one measured unit, Cycle summarises one pass over all targets.
package types
