package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.olrik.dev/acp/internal/core"
	"go.olrik.dev/acp/internal/daemon"
)

func NewStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the acp daemon",
		Long: `Start the acp daemon in the background.

The daemon checks for captive portals whenever the network changes and on a
backoff schedule, and logs in automatically. It keeps running until stopped
with 'acp stop'.

If the daemon is already running, this command reports its version.`,
		Aliases: []string{"boot"},
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if version, ok := runningVersion(); ok {
				slog.Info(fmt.Sprintf("Daemon is already running (version %s)", core.FormatVersion(version)))
				return
			}

			slog.Info("Starting acp daemon...")
			pid, err := daemon.StartDaemon()
			if err != nil {
				slog.Error(fmt.Sprintf("Failed to start daemon: %v", err))
				os.Exit(1)
			}

			if err := daemon.WaitForDaemon(5 * time.Second); err != nil {
				slog.Error(fmt.Sprintf("Daemon failed to start: %v", err))
				os.Exit(1)
			}

			slog.Info("Daemon started successfully", "pid", pid)
		},
	}
}

// runningVersion asks a running daemon for its version
func runningVersion() (string, bool) {
	response, err := daemon.SendCommandWithTimeout("VERSION", 2*time.Second)
	if err != nil {
		return "", false
	}
	var info daemon.VersionInfo
	if err := response.DecodeData(&info); err != nil {
		return "unknown", true
	}
	return info.Version, true
}
