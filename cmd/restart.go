package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.olrik.dev/acp/internal/daemon"
)

func NewRestartCommand() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the acp daemon",
		Long: `Restart the acp daemon.

Needed after changing watch, debounce or queue settings; probe, portal,
schedule and login settings are picked up without a restart.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if !daemon.IsRunning() {
				if !quiet {
					slog.Error("Daemon is not running. Use 'acp start' instead.")
				}
				os.Exit(1)
			}

			if !quiet {
				slog.Info("Restarting daemon...")
			}

			if _, err := daemon.SendCommand("STOP"); err != nil {
				if !quiet {
					slog.Error(fmt.Sprintf("Failed to stop daemon: %v", err))
				}
				os.Exit(1)
			}

			if err := daemon.WaitForDaemonStop(5 * time.Second); err != nil {
				if !quiet {
					slog.Warn(fmt.Sprintf("Daemon stop verification failed: %v", err))
				}
			}

			if _, err := daemon.StartDaemon(); err != nil {
				if !quiet {
					slog.Error(fmt.Sprintf("Failed to start daemon: %v", err))
				}
				os.Exit(1)
			}

			if err := daemon.WaitForDaemon(5 * time.Second); err != nil {
				if !quiet {
					slog.Error(fmt.Sprintf("Daemon failed to start: %v", err))
				}
				os.Exit(1)
			}

			if !quiet {
				slog.Info("Daemon restarted successfully")
			}
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress output")

	return cmd
}
