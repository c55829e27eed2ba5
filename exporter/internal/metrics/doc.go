// Package metrics owns the Prometheus series published by the exporter.
//
// New(reg) registers every collector on the given registry rather than the
// global default, so each Scheduler and each test gets its own isolated
// registry. Handler serves the registry in the pull exposition format and
// WriteText dumps it once, for the -once command line mode.
//
// Series:
//
//	dirsize_path_bytes{path,base_dir,name}     gauge
//	dirsize_path_files{path,base_dir,name}     gauge
//	dirsize_scrape_duration_seconds            histogram
//	dirsize_scrape_errors_total{kind}          counter (entry|target|config)
//	dirsize_scrape_skipped_total               counter
package metrics
