package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dirsize/dirsize-exporter/exporter/internal/store"
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store *store.Store
	mux   *http.ServeMux
}

// New creates a Handler wired to the given store and registers all routes.
func New(st *store.Store) http.Handler {
	h := &Handler{store: st, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/directories", h.directories)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, buildHealth(h.store))
}

func (h *Handler) directories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	baseDir := r.URL.Query().Get("base_dir")

	out := make([]DirectoryResponse, 0)
	for _, d := range buildDirectories(h.store) {
		if baseDir != "" && d.BaseDir != baseDir {
			continue
		}
		out = append(out, d)
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// --- helpers ----------------------------------------------------------------

// BuildSnapshot assembles the /api/v1/snapshot document. The websocket hub
// sends the same document.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	return SnapshotResponse{
		Health:      buildHealth(st),
		Directories: buildDirectories(st),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func buildHealth(st *store.Store) HealthResponse {
	c, n := st.LastCycle()
	resp := HealthResponse{
		State:          "pending",
		Cycles:         n,
		DirectoryCount: len(st.List()),
	}
	if n == 0 {
		return resp
	}
	resp.LastCycleAt = c.StartedAt.UTC().Format(time.RFC3339)
	resp.LastDurationS = c.Duration.Seconds()
	resp.Targets = c.Targets
	resp.FailedTargets = c.FailedTargets
	resp.State = "ok"
	if c.FailedTargets > 0 {
		resp.State = "degraded"
	}
	return resp
}

func buildDirectories(st *store.Store) []DirectoryResponse {
	entries := st.List()
	out := make([]DirectoryResponse, 0, len(entries))
	for _, e := range entries {
		m := e.Measurement
		out = append(out, DirectoryResponse{
			Path:       m.FullPath,
			BaseDir:    m.BaseDir,
			Name:       m.ShortName,
			Target:     m.Target,
			Mode:       m.Mode.String(),
			Bytes:      m.Bytes,
			Files:      m.Files,
			Errors:     m.Errors,
			DurationS:  m.Duration.Seconds(),
			MeasuredAt: m.MeasuredAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
