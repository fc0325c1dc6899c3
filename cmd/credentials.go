package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.olrik.dev/acp/internal/core"
	"go.olrik.dev/acp/internal/daemon"
	"go.olrik.dev/acp/internal/keyring"
	"go.olrik.dev/acp/internal/portal"
	"go.olrik.dev/acp/internal/state"
)

// portalSession is the part of portal.Client used to validate credentials
type portalSession interface {
	Login(ctx context.Context, session portal.Session, username, password string) error
	Logout(ctx context.Context, lastPortalURL string) error
}

// logoutSettle is how long the portal gets to drop the session after logout
const logoutSettle = 3 * time.Second

func NewSetupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Store portal credentials in the system keyring",
		Long: `Prompt for the portal username and password and store them in the system
keyring (Keychain on macOS, Secret Service or KWallet on Linux).

A running daemon is asked to check right away.`,
		Aliases: []string{"init"},
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			store := openKeyring()

			creds, err := keyring.PromptCredentials(os.Stdin)
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			if err := store.Set(creds.Username, creds.Secret); err != nil {
				slog.Error(fmt.Sprintf("Failed to store credentials: %v", err))
				os.Exit(1)
			}
			slog.Info(fmt.Sprintf("Credentials stored securely for '%s'", creds.Username))

			requestCheck()
		},
	}
}

func NewCredentialsCommand() *cobra.Command {
	credentialsCmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Manage stored portal credentials",
	}

	var force bool
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Replace the stored credentials",
		Long: `Prompt for new credentials. When a captive portal is reachable the current
session is logged out and the new credentials are tried against the portal
before they are stored. Use --force to store them regardless.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			store := openKeyring()

			creds, err := keyring.PromptCredentials(os.Stdin)
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}

			detector, client := daemon.NewPortal(core.Config, slog.Default())
			lastPortal := lastPortalURL()

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			validated, err := validateCredentials(ctx, detector, client, lastPortal, creds, logoutSettle)
			switch {
			case err != nil && !force:
				slog.Error(fmt.Sprintf("New credentials were not accepted by the portal: %v", err))
				slog.Info("Credentials left unchanged, use --force to store them anyway")
				requestCheck()
				os.Exit(1)
			case err != nil:
				slog.Warn(fmt.Sprintf("Portal validation failed, storing anyway: %v", err))
			case !validated:
				slog.Warn("No captive portal reachable, storing credentials without validation")
			default:
				slog.Info("New credentials accepted by the portal")
			}

			if err := store.Set(creds.Username, creds.Secret); err != nil {
				slog.Error(fmt.Sprintf("Failed to store credentials: %v", err))
				os.Exit(1)
			}
			slog.Info(fmt.Sprintf("Credentials updated for '%s'", creds.Username))
			requestCheck()
		},
	}
	updateCmd.Flags().BoolVarP(&force, "force", "f", false, "Store credentials even if the portal rejects them")

	clearCmd := &cobra.Command{
		Use:     "clear",
		Aliases: []string{"delete", "rm"},
		Short:   "Remove the stored credentials",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := openKeyring().Clear(); err != nil {
				slog.Error(fmt.Sprintf("Failed to clear credentials: %v", err))
				os.Exit(1)
			}
			slog.Info("Credentials removed from keyring")
		},
	}

	credentialsCmd.AddCommand(updateCmd, clearCmd)
	return credentialsCmd
}

// validateCredentials logs out of the current portal session and tries
// creds against the portal. validated is false when no portal intercepts
// the probe after logout, so there is nothing to validate against.
func validateCredentials(ctx context.Context, det daemon.Detector, pc portalSession, lastPortal string, creds keyring.Credentials, settle time.Duration) (bool, error) {
	if err := pc.Logout(ctx, lastPortal); err != nil {
		slog.Debug("Logout before validation skipped", "error", err)
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(settle):
	}

	probe, err := det.Detect(ctx)
	if err != nil {
		return false, err
	}
	if probe.Kind == portal.Clear {
		return false, nil
	}

	session, err := daemon.ScrapeSession(ctx, det, probe)
	if err != nil {
		return false, err
	}
	if err := pc.Login(ctx, session, creds.Username, creds.Secret); err != nil {
		return false, err
	}
	return true, nil
}

func openKeyring() *keyring.Store {
	store, err := keyring.Open(core.ServiceName)
	if err != nil {
		slog.Error(fmt.Sprintf("Failed to open keyring: %v", err))
		os.Exit(1)
	}
	return store
}

func lastPortalURL() string {
	svc := state.NewStore(core.GetStatePath()).Load()
	if svc.LastPortalURL == nil {
		return ""
	}
	return *svc.LastPortalURL
}

// requestCheck nudges a running daemon, silently doing nothing otherwise
func requestCheck() {
	response, err := daemon.SendCommandWithTimeout("CHECK", 2*time.Second)
	if err != nil {
		return
	}
	if !response.HasErrors() {
		slog.Debug("Daemon check requested")
	}
}
