package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"spool/internal/ipc"
	"spool/internal/job"
	"spool/internal/preset"
)

func submitJSON(t *testing.T, env *cliTestEnv, args ...string) ipc.SubmitResponse {
	t.Helper()
	out, err := env.run(t, append([]string{"--json", "submit"}, args...)...)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	var resp ipc.SubmitResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode submit output %q: %v", out, err)
	}
	return resp
}

func TestCLISubmitListShowCancel(t *testing.T) {
	env := setupCLITestEnv(t)
	inA, outA := env.input(t, "alpha")
	inB, outB := env.input(t, "beta")

	out, err := env.run(t, "submit", "--priority", "high", inA, outA)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Queued ")
	requireContains(t, out, preset.DefaultPreset)
	requireContains(t, out, "high priority, position 1")

	resp := submitJSON(t, env, "--priority", "low", inB, outB)
	if len(resp.Jobs) != 1 || resp.Jobs[0].QueuePosition != 2 {
		t.Fatalf("unexpected submit response: %+v", resp)
	}
	lowID := resp.Jobs[0].ID

	out, err = env.run(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "alpha.mxf")
	requireContains(t, out, "beta.mxf")
	requireContains(t, out, "Pending")
	requireContains(t, out, job.ID(lowID).Short())

	out, err = env.run(t, "show", lowID[:8])
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Output:")
	requireContains(t, out, outB)
	requireContains(t, out, "#2")

	out, err = env.run(t, "cancel", lowID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "cancelled before it started")

	out, err = env.run(t, "cancel", lowID)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	requireContains(t, out, "already cancelled")

	out, err = env.run(t, "--json", "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats ipc.StatsResponse
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Stats.Pending != 1 || stats.Stats.Cancelled != 1 {
		t.Fatalf("unexpected stats: %+v", stats.Stats)
	}

	out, err = env.run(t, "list", "--status", "cancelled")
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if strings.Contains(out, "alpha.mxf") || !strings.Contains(out, "beta.mxf") {
		t.Fatalf("status filter not applied:\n%s", out)
	}
}

func TestCLISubmitValidation(t *testing.T) {
	env := setupCLITestEnv(t)
	in, out := env.input(t, "gamma")

	if _, err := env.run(t, "submit", in); err == nil {
		t.Fatal("expected odd argument count to fail")
	}
	if _, err := env.run(t, "submit", "--preset", "No Such Preset", in, out); err == nil {
		t.Fatal("expected unknown preset to fail")
	}
	if _, err := env.run(t, "submit", in, filepath.Join(env.mediaDir, "gamma.mp4")); err == nil {
		t.Fatal("expected container mismatch to fail")
	}
	resp := submitJSON(t, env, in, out, in, filepath.Join(env.mediaDir, "gamma-copy.mov"))
	if len(resp.Jobs) != 2 {
		t.Fatalf("expected a batch of 2, got %d", len(resp.Jobs))
	}
	if _, err := env.run(t, "submit", in, out); err == nil || !strings.Contains(err.Error(), "already targeted") {
		t.Fatalf("expected output clash, got %v", err)
	}
}

func TestCLIWorkersAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	in, outPath := env.input(t, "delta")
	resp := submitJSON(t, env, in, outPath)
	id := resp.Jobs[0].ID

	out, err := env.run(t, "workers", "resize", "2")
	if err != nil {
		t.Fatalf("workers resize: %v", err)
	}
	requireContains(t, out, "Pool size set to 2")

	out, err = env.run(t, "workers", "start")
	if err != nil {
		t.Fatalf("workers start: %v", err)
	}
	requireContains(t, out, "Started 2 workers")

	if _, err := env.run(t, "workers", "resize", "3"); err == nil {
		t.Fatal("expected resize to fail while running")
	}

	out, err = env.run(t, "cancel", id)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !strings.Contains(out, "stopped and cancelled") && !strings.Contains(out, "cancelled before it started") {
		t.Fatalf("unexpected cancel output: %s", out)
	}

	out, err = env.run(t, "workers", "stop", "--drain", "--timeout", "5")
	if err != nil {
		t.Fatalf("workers stop: %v", err)
	}
	requireContains(t, out, "Pool: stopped")

	out, err = env.run(t, "clear")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 finished job")

	out, err = env.run(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, job.ID(id).Short())
	requireContains(t, out, "Cancelled")

	out, err = env.run(t, "show", id)
	if err != nil {
		t.Fatalf("show archived: %v", err)
	}
	requireContains(t, out, "(from job history)")
	requireContains(t, out, "Cancelled")

	out, err = env.run(t, "history", "prune", "--older-than", "1h")
	if err != nil {
		t.Fatalf("history prune: %v", err)
	}
	requireContains(t, out, "Pruned 0 history entries")

	// Without a reachable daemon the archive is read directly.
	offline, _, err := runCLI(t, []string{"history", "--status", "cancelled"}, filepath.Join(env.mediaDir, "missing.sock"), env.configPath)
	if err != nil {
		t.Fatalf("offline history: %v", err)
	}
	requireContains(t, offline, job.ID(id).Short())
}

func TestCLIWatchFinishedJob(t *testing.T) {
	env := setupCLITestEnv(t)
	in, outPath := env.input(t, "epsilon")
	id := submitJSON(t, env, in, outPath).Jobs[0].ID
	if _, err := env.run(t, "cancel", id); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	out, err := env.run(t, "watch", "--job", id[:8], "--exit")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	requireContains(t, out, "already cancelled")

	if _, err := env.run(t, "watch", "--exit"); err == nil {
		t.Fatal("expected --exit without --job to fail")
	}
}

func TestCLITestNotifyDisabled(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications are disabled")
}

func TestCLIRequiresDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(env.mediaDir, "missing.sock")
	_, _, err := runCLI(t, []string{"list"}, missing, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "spool start") {
		t.Fatalf("expected dial hint, got %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, missing, env.configPath)
	if err != nil {
		t.Fatalf("offline status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "FFmpeg")

	out, err = env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "Stopped (size 1)")
}
