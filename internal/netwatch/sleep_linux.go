package netwatch

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/godbus/dbus/v5"
)

const prepareForSleep = "org.freedesktop.login1.Manager.PrepareForSleep"

// ResumeSource reports a change whenever logind signals the end of a sleep.
// Networks are commonly switched while the lid is closed.
type ResumeSource struct {
	logger *slog.Logger
}

func NewResumeSource(logger *slog.Logger) *ResumeSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResumeSource{logger: logger}
}

func (r *ResumeSource) Name() string { return "resume" }

func (r *ResumeSource) Watch(ctx context.Context, out chan<- Change) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		// D-Bus unavailable, common on headless machines that never sleep
		if os.Getenv("DBUS_SYSTEM_BUS_ADDRESS") == "" {
			r.logger.Debug("D-Bus unavailable, resume watcher disabled")
			return nil
		}
		return err
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath("/org/freedesktop/login1"),
		dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		return err
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-signals:
			if sig == nil {
				return errors.New("D-Bus signal channel closed")
			}
			if !isResume(sig) {
				continue
			}
			r.logger.Info("System resumed from sleep")
			if !send(ctx, out, Change{Interface: "*", Source: "resume"}) {
				return ctx.Err()
			}
		}
	}
}

// isResume reports whether sig is PrepareForSleep(false)
func isResume(sig *dbus.Signal) bool {
	if sig.Name != prepareForSleep || len(sig.Body) < 1 {
		return false
	}
	entering, ok := sig.Body[0].(bool)
	return ok && !entering
}
