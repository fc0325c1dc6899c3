package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.olrik.dev/acp/internal/core"
	"go.olrik.dev/acp/internal/daemon"
	"go.olrik.dev/acp/internal/keyring"
	"go.olrik.dev/acp/internal/state"
	"gopkg.in/yaml.v3"
)

// statusReport is what `acp status` prints in every format
type statusReport struct {
	DaemonRunning         bool       `json:"daemon_running" yaml:"daemon_running"`
	CredentialsConfigured bool       `json:"credentials_configured" yaml:"credentials_configured"`
	Phase                 string     `json:"phase,omitempty" yaml:"phase,omitempty"`
	Regime                string     `json:"regime,omitempty" yaml:"regime,omitempty"`
	IntervalSeconds       int64      `json:"interval_seconds,omitempty" yaml:"interval_seconds,omitempty"`
	SecondsUntilNextCheck int64      `json:"seconds_until_next_check,omitempty" yaml:"seconds_until_next_check,omitempty"`
	LastOutcome           string     `json:"last_outcome,omitempty" yaml:"last_outcome,omitempty"`
	LastError             string     `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	LastCheck             *time.Time `json:"last_check,omitempty" yaml:"last_check,omitempty"`
	LastLogin             *time.Time `json:"last_login,omitempty" yaml:"last_login,omitempty"`
	LastPortalURL         string     `json:"last_portal_url,omitempty" yaml:"last_portal_url,omitempty"`
}

func NewStatusCommand() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"st"},
		Short:   "Show daemon, credential and portal status",
		Long: `Show whether credentials are configured, whether the daemon is running,
the current check regime and when the next check happens, and the last
check, login and portal seen.

When the daemon is not running the persisted state file is shown instead.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			report := collectStatus()

			format, _ := cmd.Flags().GetString("format")
			switch format {
			case "text":
				fmt.Print(formatStatusText(report, time.Now()))
			case "json":
				out, _ := json.MarshalIndent(report, "", "  ")
				fmt.Println(string(out))
			case "yaml":
				out, err := yaml.Marshal(report)
				if err != nil {
					slog.Error(fmt.Sprintf("Failed to encode status: %v", err))
					os.Exit(1)
				}
				fmt.Print(string(out))
			default:
				slog.Error(fmt.Sprintf("Unknown format %q (use text, json or yaml)", format))
				os.Exit(1)
			}
		},
	}
	statusCmd.Flags().StringP("format", "F", "text", "Format to use (text/json/yaml)")

	return statusCmd
}

func collectStatus() statusReport {
	report := statusReport{CredentialsConfigured: credentialsConfigured()}

	response, err := daemon.SendCommand("STATUS")
	if err == nil {
		var status daemon.Status
		if err := response.DecodeData(&status); err == nil {
			return buildReport(report, &status, status.ServiceState)
		}
	}

	// Daemon is down, show what it persisted last
	svc := state.NewStore(core.GetStatePath()).Load()
	return buildReport(report, nil, svc)
}

func buildReport(report statusReport, status *daemon.Status, svc state.ServiceState) statusReport {
	if status != nil {
		report.DaemonRunning = true
		report.Phase = string(status.Phase)
		report.Regime = status.Regime.String()
		report.IntervalSeconds = status.IntervalSeconds
		report.SecondsUntilNextCheck = status.SecondsUntilNextCheck
		report.LastOutcome = status.LastOutcome
		report.LastError = status.LastError
		if status.CredentialsMissing {
			report.CredentialsConfigured = false
		}
	}
	report.LastCheck = svc.LastCheck
	report.LastLogin = svc.LastLogin
	if svc.LastPortalURL != nil {
		report.LastPortalURL = *svc.LastPortalURL
	}
	return report
}

func credentialsConfigured() bool {
	store, err := keyring.Open(core.ServiceName)
	if err != nil {
		slog.Debug("Keyring unavailable", "error", err)
		return false
	}
	return store.Has()
}

func formatStatusText(r statusReport, now time.Time) string {
	var b strings.Builder

	yesNo := func(v bool) string {
		if v {
			return colorGreen + "yes" + colorReset
		}
		return colorRed + "no" + colorReset
	}

	fmt.Fprintf(&b, "Credentials configured: %s\n", yesNo(r.CredentialsConfigured))
	fmt.Fprintf(&b, "Daemon running:         %s\n", yesNo(r.DaemonRunning))

	if r.DaemonRunning {
		fmt.Fprintf(&b, "Regime:                 %s\n", r.Regime)
		if r.Phase == string(daemon.PhaseChecking) || r.Phase == string(daemon.PhaseLoggingIn) {
			fmt.Fprintf(&b, "Next check:             %sin progress%s\n", colorCyan, colorReset)
		} else if r.SecondsUntilNextCheck > 0 {
			fmt.Fprintf(&b, "Next check:             in %s\n", formatDuration(time.Duration(r.SecondsUntilNextCheck)*time.Second))
		} else {
			fmt.Fprintf(&b, "Next check:             due\n")
		}
		if r.LastError != "" {
			fmt.Fprintf(&b, "Last error:             %s%s%s\n", colorYellow, r.LastError, colorReset)
		}
	}

	fmt.Fprintf(&b, "Last check:             %s\n", agoOrNever(r.LastCheck, now))
	fmt.Fprintf(&b, "Last login:             %s\n", agoOrNever(r.LastLogin, now))
	if r.LastPortalURL != "" {
		fmt.Fprintf(&b, "Last portal:            %s\n", r.LastPortalURL)
	}

	if !r.CredentialsConfigured {
		fmt.Fprintf(&b, "\n%sRun 'acp setup' to store your portal credentials.%s\n", colorDim, colorReset)
	}
	return b.String()
}

func agoOrNever(t *time.Time, now time.Time) string {
	if t == nil {
		return colorGray + "never" + colorReset
	}
	return state.FormatAgo(*t, now)
}
