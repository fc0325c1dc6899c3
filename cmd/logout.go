package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.olrik.dev/acp/internal/core"
	"go.olrik.dev/acp/internal/daemon"
	"go.olrik.dev/acp/internal/notify"
)

func NewLogoutCommand() *cobra.Command {
	var clearCredentials bool

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Log out of the captive portal",
		Long: `End the current portal session using the configured logout URL, or the
origin of the last portal seen.

A running daemon with stored credentials logs in again on its next check;
use --clear-credentials (or 'acp stop') to stay logged out.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, client := daemon.NewPortal(core.Config, slog.Default())
			notifier := daemon.NewNotifier(core.Config, slog.Default())

			ctx, cancel := context.WithTimeout(context.Background(), 2*core.Config.Probe.Timeout)
			defer cancel()

			if err := client.Logout(ctx, lastPortalURL()); err != nil {
				slog.Error(fmt.Sprintf("Logout failed: %v", err))
				os.Exit(1)
			}
			slog.Info("Logged out of captive portal")
			if err := notifier.Notify(ctx, notify.Title, "Logged out of captive portal"); err != nil {
				slog.Debug("Failed to send notification", "error", err)
			}

			if clearCredentials {
				if err := openKeyring().Clear(); err != nil {
					slog.Error(fmt.Sprintf("Failed to clear credentials: %v", err))
					os.Exit(1)
				}
				slog.Info("Credentials removed from keyring")
			}
		},
	}
	logoutCmd.Flags().BoolVar(&clearCredentials, "clear-credentials", false, "Also remove the stored credentials")

	return logoutCmd
}
