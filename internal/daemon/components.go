package daemon

import (
	"log/slog"

	"go.olrik.dev/acp/internal/core"
	"go.olrik.dev/acp/internal/netwatch"
	"go.olrik.dev/acp/internal/notify"
	"go.olrik.dev/acp/internal/portal"
	"go.olrik.dev/acp/internal/schedule"
)

// NewPortal builds the detector and login client described by cfg. Both
// share one HTTP client so portal cookies survive between requests.
func NewPortal(cfg *core.Configuration, logger *slog.Logger) (*portal.Detector, *portal.Client) {
	httpClient := portal.NewHTTPClient()
	detector := portal.NewDetector(httpClient, cfg.Probe.URL, cfg.Probe.Timeout, logger)
	client := portal.NewClient(httpClient, detector, portal.ClientConfig{
		LoginURL:         cfg.Portal.LoginURL,
		LogoutURL:        cfg.Portal.LogoutURL,
		RedirectURL:      cfg.Portal.RedirectURL,
		RejectionMarkers: cfg.Portal.RejectionMarkers,
		Timeout:          cfg.Probe.Timeout,
	}, logger)
	return detector, client
}

// OptionsFromConfig extracts the loop knobs from cfg
func OptionsFromConfig(cfg *core.Configuration) Options {
	return Options{
		Limits: schedule.Limits{
			Min: cfg.Schedule.MinDelay,
			Max: cfg.Schedule.MaxDelay,
		},
		MaxRetries:        cfg.Login.MaxRetries,
		InitialRetryDelay: cfg.Login.InitialRetryDelay,
	}
}

// WatchOptions extracts the interface watch settings from cfg
func WatchOptions(cfg *core.Configuration) netwatch.Options {
	return netwatch.Options{
		Netlink:      cfg.Watch.Netlink,
		PollInterval: cfg.Watch.PollInterval,
		SleepWake:    cfg.Watch.SleepWake,
	}
}

// NewNotifier returns the desktop notifier with a log fallback, or only
// the log notifier when notifications are disabled
func NewNotifier(cfg *core.Configuration, logger *slog.Logger) Notifier {
	logNotifier := notify.NewLogNotifier(logger)
	if !cfg.Notifications.Enabled {
		return logNotifier
	}
	return notify.Fallback{notify.NewDBusNotifier(core.ServiceName), logNotifier}
}
