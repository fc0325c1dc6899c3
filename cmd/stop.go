package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.olrik.dev/acp/internal/core"
	"go.olrik.dev/acp/internal/daemon"
)

func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the acp daemon",
		Long: `Stop the acp daemon.

Any check in progress is abandoned; the next start performs a fresh check.
A daemon that no longer answers on its socket is terminated through its
PID file.`,
		Aliases: []string{"shutdown", "quit"},
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			response, err := daemon.SendCommand("STOP")
			if err != nil {
				pid, termErr := daemon.TerminateStale(core.GetPIDFilePath())
				if termErr != nil {
					slog.Warn("Daemon is not running")
					return
				}
				slog.Info(fmt.Sprintf("Daemon was not answering, sent SIGTERM to PID %d", pid))
				return
			}
			response.LogMessages()

			if err := daemon.WaitForDaemonStop(5 * time.Second); err != nil {
				slog.Warn("Daemon did not shut down within timeout, but stop command was sent")
				return
			}
			slog.Debug("Daemon shutdown confirmed")
		},
	}
}
