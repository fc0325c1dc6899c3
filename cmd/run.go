package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.olrik.dev/acp/internal/daemon"
)

func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		Aliases: []string{"daemon"},
		Short:   "Run the daemon in the foreground",
		Long: `Run the acp daemon in the foreground.

This is what 'acp start' launches in the background, and what a systemd
unit (Type=notify) should execute.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			d := daemon.New()
			if err := d.Run(); err != nil {
				if errors.Is(err, daemon.ErrAlreadyRunning) {
					slog.Warn("Daemon is already running")
					return
				}
				slog.Error(fmt.Sprintf("Daemon failed: %v", err))
				os.Exit(1)
			}
		},
	}
}
