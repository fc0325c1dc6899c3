//go:build !linux

package netwatch

import (
	"context"
	"log/slog"
)

// ResumeSource relies on logind and does nothing on other platforms;
// the poll source still notices the interface changes after a wake.
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

func (r *ResumeSource) Watch(ctx context.Context, _ chan<- Change) error {
	r.logger.Debug("Resume watcher not supported on this platform")
	<-ctx.Done()
	return ctx.Err()
}
