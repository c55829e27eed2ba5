package types

import (
	"fmt"
	"strings"
	"time"
)

// ScrapeMode selects how a configured directory is turned into measured units.
type ScrapeMode int

const (
	modeInvalid ScrapeMode = iota

	// ModeSingleDirectory measures the configured path as one unit.
	ModeSingleDirectory

	// ModeImmediateChildren measures every direct subdirectory of the
	// configured path as its own unit.
	ModeImmediateChildren

	// ModeRecursive is reserved for discovery below the first level. It is
	// recognised so configs fail loudly instead of falling back silently.
	ModeRecursive
)

var modeNames = map[ScrapeMode]string{
	ModeSingleDirectory:   "single_directory",
	ModeImmediateChildren: "immediate_children",
	ModeRecursive:         "recursive",
}

// ParseScrapeMode maps a config value to a ScrapeMode. Besides the canonical
// snake_case names it accepts the legacy TopDirectory / SubDirectories names.
func ParseScrapeMode(s string) (ScrapeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single_directory", "topdirectory", "top_directory":
		return ModeSingleDirectory, nil
	case "immediate_children", "subdirectories", "sub_directories":
		return ModeImmediateChildren, nil
	case "recursive":
		return ModeRecursive, nil
	default:
		return modeInvalid, fmt.Errorf("unknown scrape mode %q", s)
	}
}

func (m ScrapeMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ScrapeMode(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m ScrapeMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. yaml.v3 and encoding/json
// both use it for scalar values.
func (m *ScrapeMode) UnmarshalText(text []byte) error {
	parsed, err := ParseScrapeMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Labels identifies one gauge series.
type Labels struct {
	FullPath  string `json:"path"`
	BaseDir   string `json:"base_dir"`
	ShortName string `json:"name"`
}

// Values returns the label values in registry order: path, base_dir, name.
func (l Labels) Values() []string {
	return []string{l.FullPath, l.BaseDir, l.ShortName}
}

// Usage is the aggregate of one directory walk. Errors counts the files and
// subdirectories that were skipped because they could not be read.
type Usage struct {
	Bytes  int64 `json:"bytes"`
	Files  int64 `json:"files"`
	Errors int64 `json:"errors"`
}

// Measurement is one measured unit of a scrape cycle.
type Measurement struct {
	Labels
	Usage

	Target     string        `json:"target"`
	Mode       ScrapeMode    `json:"mode"`
	MeasuredAt time.Time     `json:"measured_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// Cycle summarises one pass over all configured targets.
type Cycle struct {
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	Targets     int           `json:"targets"`
	Directories int           `json:"directories"`
	// FailedTargets counts targets skipped for the cycle, whether because they
	// could not be listed or because their mode is not supported.
	FailedTargets int `json:"failed_targets"`
}
