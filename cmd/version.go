package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.olrik.dev/acp/internal/core"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Long:  `Show version of both client and daemon (if running)`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			clientFormatted := core.FormatVersion(core.Version)
			fmt.Fprintf(os.Stderr, "Client version: %s\n", clientFormatted)

			daemonVersion, ok := runningVersion()
			if !ok {
				fmt.Fprintln(os.Stderr, "Daemon: not running")
				return
			}

			daemonFormatted := core.FormatVersion(daemonVersion)
			fmt.Fprintf(os.Stderr, "Daemon version: %s\n", daemonFormatted)

			if daemonVersion != core.Version {
				slog.Warn(fmt.Sprintf("Version mismatch! Client %s and daemon %s versions differ. Consider 'acp restart'.", clientFormatted, daemonFormatted))
			}
		},
	}
}
