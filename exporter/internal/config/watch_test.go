package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// startWatch runs Watch on path in the background and returns a channel of
// reloaded configs plus a stop func that waits for Watch to return.
func startWatch(t *testing.T, path string) (<-chan *Config, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	reloaded := make(chan *Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) { reloaded <- cfg })
	}()
	stop := func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch returned %v", err)
		}
	}
	return reloaded, stop
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "exporter:\n  interval_seconds: 10\n")

	reloaded, stop := startWatch(t, path)
	defer stop()

	// The watch is registered asynchronously; rewrite (slower than the settle
	// delay) until a reload arrives.
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(2 * settleDelay)
	defer ticker.Stop()
	for {
		select {
		case cfg := <-reloaded:
			if cfg.Exporter.IntervalSeconds != 20 {
				t.Errorf("reloaded interval_seconds: got %d, want 20", cfg.Exporter.IntervalSeconds)
			}
			return
		case <-ticker.C:
			writeConfig(t, path, "exporter:\n  interval_seconds: 20\n")
		case <-deadline:
			t.Fatal("onChange was not called within 5s")
		}
	}
}

func TestWatch_ReloadsAfterRenameOver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "exporter:\n  interval_seconds: 10\n")

	reloaded, stop := startWatch(t, path)
	defer stop()

	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(2 * settleDelay)
	defer ticker.Stop()
	for {
		select {
		case cfg := <-reloaded:
			if cfg.Exporter.IntervalSeconds != 30 {
				t.Errorf("reloaded interval_seconds: got %d, want 30", cfg.Exporter.IntervalSeconds)
			}
			return
		case <-ticker.C:
			tmp := filepath.Join(dir, ".config.yaml.tmp")
			writeConfig(t, tmp, "exporter:\n  interval_seconds: 30\n")
			if err := os.Rename(tmp, path); err != nil {
				t.Fatalf("rename: %v", err)
			}
		case <-deadline:
			t.Fatal("onChange was not called after rename within 5s")
		}
	}
}

func TestWatch_BurstReloadsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "exporter:\n  interval_seconds: 10\n")

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(*Config) { calls.Add(1) })
	}()
	time.Sleep(100 * time.Millisecond) // let the watch register

	for i := 0; i < 5; i++ {
		writeConfig(t, path, "exporter:\n  interval_seconds: 40\n")
		time.Sleep(settleDelay / 10)
	}
	time.Sleep(4 * settleDelay)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("onChange calls: got %d, want 1 for a burst of writes", got)
	}
}

func TestWatch_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "exporter:\n  interval_seconds: 10\n")

	reloaded, stop := startWatch(t, path)
	defer stop()
	time.Sleep(100 * time.Millisecond)

	writeConfig(t, filepath.Join(dir, "other.yaml"), "not: watched\n")
	select {
	case cfg := <-reloaded:
		t.Errorf("unexpected reload from a sibling file: %+v", cfg.Exporter)
	case <-time.After(4 * settleDelay):
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), func(*Config) {})
	if err == nil {
		t.Fatal("expected error watching a missing file, got nil")
	}
}
