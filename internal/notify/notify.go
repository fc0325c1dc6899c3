// Package notify delivers desktop notifications about portal logins.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
)

// Title is used for every notification acp sends
const Title = "Auto Captive Portal"

const (
	notificationsDest = "org.freedesktop.Notifications"
	notificationsPath = "/org/freedesktop/Notifications"
	notifyMethod      = "org.freedesktop.Notifications.Notify"
)

// DBusNotifier sends notifications through the freedesktop notification
// service on the session bus
type DBusNotifier struct {
	appName string
	icon    string
	expire  time.Duration
	connect func() (*dbus.Conn, error)
}

// NewDBusNotifier returns a notifier for the session bus
func NewDBusNotifier(appName string) *DBusNotifier {
	return &DBusNotifier{
		appName: appName,
		icon:    "network-wireless",
		expire:  5 * time.Second,
		connect: dbus.SessionBus,
	}
}

// Notify shows a notification. The shared session bus connection is
// reused between calls.
func (n *DBusNotifier) Notify(ctx context.Context, title, body string) error {
	conn, err := n.connect()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	obj := conn.Object(notificationsDest, dbus.ObjectPath(notificationsPath))
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		n.appName,
		uint32(0),
		n.icon,
		title,
		body,
		[]string{},
		map[string]dbus.Variant{},
		int32(n.expire/time.Millisecond),
	)
	if call.Err != nil {
		return fmt.Errorf("notification failed: %w", call.Err)
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when desktop
// notifications are disabled or no session bus is available.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, title, body string) error {
	n.logger.Info(body, "notification", title)
	return nil
}

// Notifier is implemented by every notification backend
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Fallback tries each notifier in order until one succeeds
type Fallback []Notifier

func (f Fallback) Notify(ctx context.Context, title, body string) error {
	var lastErr error
	for _, n := range f {
		if err := n.Notify(ctx, title, body); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
