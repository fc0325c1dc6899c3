package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.olrik.dev/acp/internal/core"
	"go.olrik.dev/acp/internal/daemon"
	"go.olrik.dev/acp/internal/portal"
)

// healthReport is the result of one live detection and scrape
type healthReport struct {
	Credentials bool
	Probe       portal.ProbeKind
	ProbeErr    error
	Session     portal.Session
	ScrapeErr   error
}

func (h healthReport) Healthy() bool {
	return h.Credentials && h.ProbeErr == nil && h.ScrapeErr == nil
}

func NewHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Run a one-off detection and scrape",
		Long: `Check that credentials are stored, run a single connectivity probe and,
when a captive portal intercepts it, scrape the portal page for the login
form. Nothing is submitted to the portal.

Exits non-zero when something would prevent an automatic login.`,
		Aliases: []string{"doctor"},
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			detector, _ := daemon.NewPortal(core.Config, slog.Default())

			ctx, cancel := context.WithTimeout(context.Background(), 2*core.Config.Probe.Timeout)
			defer cancel()

			report := runHealth(ctx, detector, credentialsConfigured())
			fmt.Print(formatHealth(report, detector.ProbeURL()))
			if !report.Healthy() {
				os.Exit(1)
			}
		},
	}
}

func runHealth(ctx context.Context, det daemon.Detector, credentials bool) healthReport {
	report := healthReport{Credentials: credentials}

	probe, err := det.Detect(ctx)
	if err != nil {
		report.ProbeErr = err
		return report
	}
	report.Probe = probe.Kind
	if probe.Kind == portal.Clear {
		return report
	}

	report.Session, report.ScrapeErr = daemon.ScrapeSession(ctx, det, probe)
	if report.ScrapeErr != nil {
		report.Session.PortalURL = probe.Location
	}
	return report
}

func formatHealth(h healthReport, probeURL string) string {
	var b strings.Builder

	ok := colorGreen + "ok" + colorReset
	fail := func(msg string) string { return colorRed + msg + colorReset }

	if h.Credentials {
		fmt.Fprintf(&b, "Credentials: %s\n", ok)
	} else {
		fmt.Fprintf(&b, "Credentials: %s\n", fail("missing, run 'acp setup'"))
	}

	switch {
	case h.ProbeErr != nil:
		fmt.Fprintf(&b, "Probe:       %s\n", fail(fmt.Sprintf("%s (%v)", portal.KindOf(h.ProbeErr), h.ProbeErr)))
		return b.String()
	case h.Probe == portal.Clear:
		fmt.Fprintf(&b, "Probe:       %s, no captive portal %s(%s)%s\n", ok, colorDim, probeURL, colorReset)
		return b.String()
	default:
		fmt.Fprintf(&b, "Probe:       %sintercepted%s\n", colorYellow, colorReset)
	}

	if h.Session.PortalURL != "" {
		fmt.Fprintf(&b, "Portal:      %s\n", h.Session.PortalURL)
	}
	if h.ScrapeErr != nil {
		fmt.Fprintf(&b, "Login form:  %s\n", fail(h.ScrapeErr.Error()))
	} else {
		fmt.Fprintf(&b, "Login form:  %s (magic %s)\n", ok, h.Session.Magic)
	}
	return b.String()
}
