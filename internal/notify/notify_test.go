package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"
)

type recordingNotifier struct {
	calls []string
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, title, body string) error {
	r.calls = append(r.calls, title+": "+body)
	return r.err
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	if err := NewLogNotifier(logger).Notify(context.Background(), Title, "Logged in to captive portal"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Logged in to captive portal") || !strings.Contains(out, Title) {
		t.Errorf("unexpected log output %q", out)
	}
}

func TestFallback(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("no bus")}
	working := &recordingNotifier{}

	f := Fallback{failing, working}
	if err := f.Notify(context.Background(), "t", "b"); err != nil {
		t.Fatalf("Fallback.Notify failed: %v", err)
	}
	if len(failing.calls) != 1 || len(working.calls) != 1 {
		t.Errorf("expected one call each, got %d and %d", len(failing.calls), len(working.calls))
	}

	allFailing := Fallback{failing}
	if err := allFailing.Notify(context.Background(), "t", "b"); err == nil {
		t.Error("expected error when every notifier fails")
	}
}

func TestDBusNotifier_NoBus(t *testing.T) {
	n := NewDBusNotifier("acp")
	n.connect = func() (*dbus.Conn, error) { return nil, errors.New("no session bus") }

	err := n.Notify(context.Background(), Title, "body")
	if err == nil || !strings.Contains(err.Error(), "session bus") {
		t.Errorf("expected session bus error, got %v", err)
	}
}
