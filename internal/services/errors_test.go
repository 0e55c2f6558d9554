package services_test

import (
	"errors"
	"strings"
	"testing"

	"spool/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "ffmpeg", "encode", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"ffmpeg", "encode", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestFailureKindMapping(t *testing.T) {
	launch := services.Wrap(services.ErrLaunch, "ffmpeg", "start", "exec failed", errors.New("no such file"))
	if kind := services.FailureKind(launch); kind != services.FailureLaunch {
		t.Fatalf("expected launch kind, got %q", kind)
	}
	exec := services.Wrap(services.ErrExternalTool, "ffmpeg", "encode", "exit status 1", nil)
	if kind := services.FailureKind(exec); kind != services.FailureExecution {
		t.Fatalf("expected execution kind, got %q", kind)
	}
	if kind := services.FailureKind(nil); kind != "" {
		t.Fatalf("expected empty kind for nil error, got %q", kind)
	}
}
