// Package scraper turns the configured directory targets into gauge values.
//
// DeriveLabels (labels.go) computes the (path, base_dir, name) key of a
// measured unit. Scheduler (scheduler.go) runs one scrape cycle immediately
// and then one per interval; each cycle dispatches every target on its
// ScrapeMode, measures the resulting units through a Measurer and publishes
// them to an injected metrics.Metrics.
//
// Cycles never overlap: a tick that fires while the previous cycle is still
// walking is dropped, logged and counted in dirsize_scrape_skipped_total.
package scraper
