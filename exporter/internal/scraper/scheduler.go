package scraper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dirsize/dirsize-exporter/exporter/internal/config"
	"github.com/dirsize/dirsize-exporter/exporter/internal/metrics"
	"github.com/dirsize/dirsize-exporter/pkg/types"
)

var (
	// ErrCycleInProgress is returned by ScrapeOnce when another cycle of the
	// same Scheduler has not finished yet.
	ErrCycleInProgress = errors.New("scraper: previous cycle still running")

	// ErrModeUnimplemented is returned for targets configured with
	// types.ModeRecursive.
	ErrModeUnimplemented = errors.New("scraper: scrape mode not implemented")
)

// Measurer totals the regular files below a directory.
type Measurer interface {
	Measure(ctx context.Context, path string) (types.Usage, error)
}

// Recorder receives every published measurement and a summary of every
// finished cycle.
type Recorder interface {
	Record(m types.Measurement)
	CycleDone(c types.Cycle)
}

// Scheduler runs scrape cycles over a fixed list of targets.
type Scheduler struct {
	targets  []config.Target
	metrics  *metrics.Metrics
	measurer Measurer
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	// cycle is held for the whole of a scrape cycle.
	cycle sync.Mutex
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithRecorder forwards measurements and cycle summaries to r.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithClock replaces time.Now for timestamps and per-unit durations.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler. targets is copied.
func New(targets []config.Target, m *metrics.Metrics, w Measurer, opts ...Option) *Scheduler {
	s := &Scheduler{
		targets:  append([]config.Target(nil), targets...),
		metrics:  m,
		measurer: w,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scrapes once immediately and then every interval until ctx is
// cancelled. Each cycle runs in its own goroutine so a slow cycle never blocks
// the ticker; ticks that arrive while a cycle is running are skipped.
// Run returns once ctx is done and the in-flight cycle, if any, has finished.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scraper: interval must be positive, got %v", interval)
	}

	var wg sync.WaitGroup
	launch := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.tick(ctx)
		}()
	}

	s.logger.Info("scraper: started", "targets", len(s.targets), "interval", interval)
	launch()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.logger.Info("scraper: stopped")
			return nil
		case <-t.C:
			launch()
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.ScrapeOnce(ctx)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		s.logger.Warn("scraper: previous cycle still running, skipping tick")
	case err != nil:
		s.logger.Error("scraper: cycle finished with configuration errors", "err", err)
	}
}

// ScrapeOnce runs one full cycle over all targets.
//
// Filesystem failures are logged and skipped. The returned error joins the
// configuration errors of the cycle (unsupported modes); those targets publish
// nothing. Cancelling ctx does not interrupt a cycle that has started.
func (s *Scheduler) ScrapeOnce(ctx context.Context) (types.Cycle, error) {
	if !s.cycle.TryLock() {
		s.metrics.ScrapeSkipped.Inc()
		return types.Cycle{}, ErrCycleInProgress
	}
	defer s.cycle.Unlock()

	ctx = context.WithoutCancel(ctx)
	timer := s.metrics.CycleTimer()
	c := types.Cycle{StartedAt: s.now(), Targets: len(s.targets)}

	s.logger.Info("scraper: scraping directories", "targets", len(s.targets))

	var errs []error
	for _, t := range s.targets {
		units, skipped, err := s.scrapeTarget(ctx, t)
		c.Directories += units
		if skipped {
			c.FailedTargets++
		}
		if err != nil {
			s.metrics.ScrapeErrors.WithLabelValues(metrics.KindConfig).Inc()
			s.logger.Error("scraper: invalid target configuration", "path", t.Path, "mode", t.Mode, "err", err)
			errs = append(errs, err)
		}
	}

	c.Duration = timer.ObserveDuration()
	s.logger.Info("scraper: scrape done",
		"directories", c.Directories,
		"failed_targets", c.FailedTargets,
		"duration", c.Duration,
	)
	if s.recorder != nil {
		s.recorder.CycleDone(c)
	}
	return c, errors.Join(errs...)
}

// scrapeTarget measures the units of one target. skipped reports a target that
// produced nothing this cycle; err is set only for configuration errors.
func (s *Scheduler) scrapeTarget(ctx context.Context, t config.Target) (units int, skipped bool, err error) {
	s.logger.Info("scraper: scraping directory", "path", t.Path, "mode", t.Mode)

	switch t.Mode {
	case types.ModeSingleDirectory:
		if !s.scrapeUnit(ctx, t, t.Path) {
			return 0, true, nil
		}
		return 1, false, nil

	case types.ModeImmediateChildren:
		entries, err := os.ReadDir(t.Path)
		if err != nil {
			s.metrics.ScrapeErrors.WithLabelValues(metrics.KindTarget).Inc()
			s.logger.Warn("scraper: cannot list target, skipping", "path", t.Path, "err", err)
			return 0, true, nil
		}
		for _, e := range entries {
			if e.Type()&fs.ModeSymlink != 0 {
				s.logger.Debug("scraper: symlinked child not followed", "path", filepath.Join(t.Path, e.Name()))
				continue
			}
			if !e.IsDir() {
				continue
			}
			if s.scrapeUnit(ctx, t, filepath.Join(t.Path, e.Name())) {
				units++
			}
		}
		return units, false, nil

	case types.ModeRecursive:
		return 0, true, fmt.Errorf("%w: %s (%s)", ErrModeUnimplemented, t.Mode, t.Path)

	default:
		return 0, true, &InvalidModeError{Mode: t.Mode}
	}
}

// scrapeUnit measures path and publishes it under the target's mode. It
// reports whether anything was published.
func (s *Scheduler) scrapeUnit(ctx context.Context, t config.Target, path string) bool {
	labels, err := DeriveLabels(path, t.Mode)
	if err != nil {
		s.metrics.ScrapeErrors.WithLabelValues(metrics.KindTarget).Inc()
		s.logger.Warn("scraper: cannot derive labels, skipping", "path", path, "err", err)
		return false
	}

	start := s.now()
	usage, err := s.measurer.Measure(ctx, path)
	if err != nil {
		s.metrics.ScrapeErrors.WithLabelValues(metrics.KindTarget).Inc()
		s.logger.Warn("scraper: cannot measure directory, skipping", "path", path, "err", err)
		return false
	}

	s.metrics.Publish(labels, usage)
	if s.recorder != nil {
		s.recorder.Record(types.Measurement{
			Labels:     labels,
			Usage:      usage,
			Target:     t.Path,
			Mode:       t.Mode,
			MeasuredAt: start,
			Duration:   s.now().Sub(start),
		})
	}
	s.logger.Debug("scraper: measured directory",
		"path", labels.FullPath,
		"bytes", usage.Bytes,
		"files", usage.Files,
		"errors", usage.Errors,
	)
	return true
}
