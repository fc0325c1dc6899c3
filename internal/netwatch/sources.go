package netwatch

import (
	"log/slog"
	"time"
)

// Options selects the change sources
type Options struct {
	Netlink      bool
	PollInterval time.Duration
	SleepWake    bool
}

// DefaultSources returns the sources for opts. Netlink is preferred;
// interface polling is used when netlink is disabled or unavailable.
func DefaultSources(opts Options, logger *slog.Logger) []Source {
	if logger == nil {
		logger = slog.Default()
	}

	var sources []Source
	if opts.Netlink {
		nl, err := OpenNetlink(logger)
		if err == nil {
			sources = append(sources, nl)
		} else {
			logger.Info("Netlink unavailable, falling back to interface polling", "error", err)
		}
	}
	if len(sources) == 0 && opts.PollInterval > 0 {
		sources = append(sources, NewPollSource(opts.PollInterval, logger))
	}
	if opts.SleepWake {
		sources = append(sources, NewResumeSource(logger))
	}
	return sources
}
