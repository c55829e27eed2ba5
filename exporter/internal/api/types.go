package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is "pending" before the first cycle, "degraded" when the last
	// cycle skipped a target, and "ok" otherwise.
	State          string  `json:"state"`
	Cycles         int     `json:"cycles"`
	LastCycleAt    string  `json:"last_cycle_at,omitempty"` // RFC3339
	LastDurationS  float64 `json:"last_duration_seconds"`
	Targets        int     `json:"targets"`
	FailedTargets  int     `json:"failed_targets"`
	DirectoryCount int     `json:"directory_count"`
}

// DirectoryResponse is one entry of GET /api/v1/directories.
type DirectoryResponse struct {
	Path       string  `json:"path"`
	BaseDir    string  `json:"base_dir"`
	Name       string  `json:"name"`
	Target     string  `json:"target"`
	Mode       string  `json:"mode"`
	Bytes      int64   `json:"bytes"`
	Files      int64   `json:"files"`
	Errors     int64   `json:"errors"`
	DurationS  float64 `json:"duration_seconds"`
	MeasuredAt string  `json:"measured_at"` // RFC3339
}

// SnapshotResponse is the payload for GET /api/v1/snapshot.
type SnapshotResponse struct {
	Health      HealthResponse      `json:"health"`
	Directories []DirectoryResponse `json:"directories"`
	GeneratedAt string              `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
