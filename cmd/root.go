package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"go.olrik.dev/acp/internal/core"
	"golang.org/x/term"
)

func NewRootCommand() *cobra.Command {
	var configPath string
	var verbose int

	homeDir, _ := os.UserHomeDir()

	rootCmd := &cobra.Command{
		Use:   "acp",
		Short: "acp - Auto Captive Portal login agent",
		Long: `acp - Auto Captive Portal login agent

Watches for network changes, detects captive portals and logs in with
credentials stored in the system keyring.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupCLILogging(verbose)

			err := core.InitializeConfig(configPath)
			if verbose > core.Config.Verbose {
				core.Config.Verbose = verbose
			}
			if err != nil {
				slog.Warn(fmt.Sprintf("Ignoring broken config file: %v", err))
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config-path", filepath.Join(homeDir, core.BaseDirName),
		"config path",
	)
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "more output, repeat for even more")

	rootCmd.AddCommand(
		NewRunCommand(),
		NewStartCommand(),
		NewStopCommand(),
		NewRestartCommand(),
		NewStatusCommand(),
		NewCheckCommand(),
		NewHealthCommand(),
		NewSetupCommand(),
		NewCredentialsCommand(),
		NewLogoutCommand(),
		NewHistoryCommand(),
		NewLogsCommand(),
		NewVersionCommand(),
	)

	return rootCmd
}

// setupCLILogging writes short colored log lines to stderr
func setupCLILogging(verbose int) {
	level := slog.LevelInfo
	if verbose > 0 {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
		NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
	})))
}
