package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.olrik.dev/acp/internal/daemon"
)

func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Trigger an immediate portal check",
		Long: `Ask the daemon to check for a captive portal now instead of waiting for
the next scheduled check. The check runs in the background; follow it with
'acp logs' or 'acp status'.`,
		Aliases: []string{"now"},
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			response, err := daemon.SendCommand("CHECK")
			if err != nil {
				slog.Error("Could not connect to daemon. Is acp running?")
				os.Exit(1)
			}
			response.LogMessages()
			if response.HasErrors() {
				os.Exit(1)
			}
		},
	}
}
