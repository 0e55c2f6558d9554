package daemonctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"spool/internal/api"
	"spool/internal/testsupport"
)

func TestBuildDependencySummary(t *testing.T) {
	tests := []struct {
		name     string
		deps     []api.DependencyStatus
		severity string
	}{
		{"empty", nil, "info"},
		{"all ready", []api.DependencyStatus{{Name: "FFmpeg", Available: true}}, "ok"},
		{"optional missing", []api.DependencyStatus{
			{Name: "FFmpeg", Available: true},
			{Name: "FFprobe", Optional: true},
		}, "warn"},
		{"required missing", []api.DependencyStatus{
			{Name: "FFmpeg"},
			{Name: "FFprobe", Optional: true},
		}, "error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := BuildDependencySummary(tc.deps); got.Severity != tc.severity {
				t.Fatalf("severity = %q, want %q (%s)", got.Severity, tc.severity, got.Detail)
			}
		})
	}
}

func TestForceKillRefusesCurrentProcess(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "spoold.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := ForceKillProcess(pidPath, 0); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
	if _, err := ForceKillProcess(filepath.Join(t.TempDir(), "missing.pid"), 0); err == nil {
		t.Fatal("expected error without a pid")
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	_, err := StopAndTerminate(cfg.SocketPath(), cfg, filepath.Join(cfg.Paths.StateDir, "spoold.pid"), 0)
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestOfflineStatusSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithHistory(true))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	testsupport.MustOpenHistory(t, cfg)

	snap, err := BuildStatusSnapshot(context.Background(), cfg.SocketPath(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Online {
		t.Fatal("expected offline snapshot")
	}
	if len(snap.Status.Dependencies) != 2 {
		t.Fatalf("expected local dependency checks, got %+v", snap.Status.Dependencies)
	}
	if snap.HistoryCounts == nil {
		t.Fatal("expected history counts from the archive")
	}
	if snap.Status.LockFilePath != cfg.LockPath() {
		t.Fatalf("lock path = %q, want %q", snap.Status.LockFilePath, cfg.LockPath())
	}
}
