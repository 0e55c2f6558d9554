package daemon_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"spool/internal/daemon"
	"spool/internal/encoding"
	"spool/internal/job"
	"spool/internal/logging"
	"spool/internal/scheduler"
	"spool/internal/testsupport"
)

type instantExecutor struct{}

func (instantExecutor) Run(context.Context, encoding.Task, func(job.Progress)) encoding.Outcome {
	return encoding.Outcome{Kind: encoding.OutcomeSuccess}
}

func TestDaemonPushesJobOutcomes(t *testing.T) {
	titles := make(chan string, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titles <- r.Header.Get("Title")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	cfg.Notifications.NtfyTopic = server.URL
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	sched := scheduler.New(cfg, instantExecutor{}, logging.NewNop())
	d, err := daemon.New(cfg, sched, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sent, err := d.TestNotification(ctx)
	if err != nil || !sent {
		t.Fatalf("TestNotification = %v, %v", sent, err)
	}
	if got := <-titles; got != "Spool - Test" {
		t.Fatalf("unexpected test title %q", got)
	}

	media := testsupport.MediaDir(t, cfg)
	input := filepath.Join(media, "clip.mxf")
	testsupport.WriteFile(t, input, 128)
	if _, err := sched.Submit(ctx, job.Request{InputPath: input, OutputPath: filepath.Join(media, "clip.mov")}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.StartWorkers(1); err != nil {
		t.Fatalf("StartWorkers: %v", err)
	}

	want := []string{"Spool - Transcode Complete", "Spool - Queue Complete"}
	for _, title := range want {
		select {
		case got := <-titles:
			if got != title {
				t.Fatalf("expected %q, got %q", title, got)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %q", title)
		}
	}
}

func TestDaemonTestNotificationDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	sent, err := d.TestNotification(context.Background())
	if err != nil || sent {
		t.Fatalf("expected disabled notifier, got sent=%v err=%v", sent, err)
	}
}
