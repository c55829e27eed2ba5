// Package config loads and watches the exporter configuration file (config.yaml).
//
// Top-level types:
//   - Config{Exporter, Server, Log}: full config tree parsed from YAML
//   - ExporterConfig: interval_seconds, max_depth, directories []
//   - Target: path and mode (single_directory | immediate_children)
//   - ServerConfig: address, port, metrics_path, snapshot_ttl,
//     auth
//   - AuthConfig: mode (apikey | none), header, key_env; Key() resolves the
//     key from the environment
//   - LogConfig: level and format of the process logger
//
// Load(path) reads the YAML file, applies defaults (60s interval, port 8080,
// /metrics), overlays DIRSIZE_* environment variables, then validates required
// fields and enums. A recursive mode parses but is rejected as unimplemented.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. Targets are fixed for the lifetime of
// the process, so callers only report that a restart is needed.
package config
