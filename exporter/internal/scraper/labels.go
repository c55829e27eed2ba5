package scraper

import (
	"fmt"
	"path/filepath"

	"github.com/dirsize/dirsize-exporter/pkg/types"
)

// InvalidModeError is returned for a scrape mode that has no label or
// dispatch rule.
type InvalidModeError struct {
	Mode types.ScrapeMode
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("scraper: unsupported scrape mode %s", e.Mode)
}

// DeriveLabels returns the series key of the unit at path.
//
// FullPath is the absolute, cleaned form of path. In ModeSingleDirectory the
// unit is its own base dir; in ModeImmediateChildren the base dir is the
// parent, or the unit itself when it is a filesystem root.
func DeriveLabels(path string, mode types.ScrapeMode) (types.Labels, error) {
	switch mode {
	case types.ModeSingleDirectory, types.ModeImmediateChildren:
	default:
		return types.Labels{}, &InvalidModeError{Mode: mode}
	}

	full, err := filepath.Abs(path)
	if err != nil {
		return types.Labels{}, fmt.Errorf("scraper: resolve %s: %w", path, err)
	}

	l := types.Labels{
		FullPath:  full,
		BaseDir:   full,
		ShortName: filepath.Base(full),
	}
	if mode == types.ModeImmediateChildren {
		if parent := filepath.Dir(full); parent != full {
			l.BaseDir = parent
		}
	}
	return l, nil
}
