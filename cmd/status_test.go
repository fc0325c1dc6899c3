package cmd

import (
	"strings"
	"testing"
	"time"

	"go.olrik.dev/acp/internal/daemon"
	"go.olrik.dev/acp/internal/schedule"
	"go.olrik.dev/acp/internal/state"
	"gopkg.in/yaml.v3"
)

func TestBuildReport(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	portalURL := "http://10.0.0.1:1000/fgtauth?abcd"
	svc := state.ServiceState{LastCheck: &now, LastPortalURL: &portalURL}

	t.Run("daemon running", func(t *testing.T) {
		status := &daemon.Status{
			Phase:                 daemon.PhaseSleeping,
			Regime:                schedule.RegimeLoggedIn,
			IntervalSeconds:       1800,
			SecondsUntilNextCheck: 1200,
			LastOutcome:           "login_succeeded",
		}
		r := buildReport(statusReport{CredentialsConfigured: true}, status, svc)

		if !r.DaemonRunning || r.Regime != "logged_in" || r.SecondsUntilNextCheck != 1200 {
			t.Errorf("unexpected report %+v", r)
		}
		if r.LastPortalURL != portalURL || r.LastCheck == nil || r.LastLogin != nil {
			t.Errorf("unexpected state fields %+v", r)
		}
	})

	t.Run("daemon reports missing credentials", func(t *testing.T) {
		status := &daemon.Status{Regime: schedule.RegimePortalDetected, CredentialsMissing: true}
		r := buildReport(statusReport{CredentialsConfigured: true}, status, svc)
		if r.CredentialsConfigured {
			t.Error("expected daemon's view of credentials to win")
		}
	})

	t.Run("daemon down", func(t *testing.T) {
		r := buildReport(statusReport{}, nil, svc)
		if r.DaemonRunning || r.Regime != "" {
			t.Errorf("unexpected report %+v", r)
		}
		if r.LastPortalURL != portalURL {
			t.Errorf("expected persisted portal url, got %q", r.LastPortalURL)
		}
	})
}

func TestFormatStatusText(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lastCheck := now.Add(-5 * time.Minute)
	lastLogin := now.Add(-2 * time.Hour)

	tests := []struct {
		name    string
		report  statusReport
		want    []string
		notWant []string
	}{
		{
			name: "running and logged in",
			report: statusReport{
				DaemonRunning:         true,
				CredentialsConfigured: true,
				Phase:                 "sleeping",
				Regime:                "logged_in",
				SecondsUntilNextCheck: 90,
				LastCheck:             &lastCheck,
				LastLogin:             &lastLogin,
				LastPortalURL:         "http://10.0.0.1:1000/fgtauth?abcd",
			},
			want: []string{
				"Regime:                 logged_in",
				"in 1m30s",
				"5 minutes ago",
				"2 hours ago",
				"Last portal:            http://10.0.0.1:1000/fgtauth?abcd",
			},
			notWant: []string{"acp setup"},
		},
		{
			name: "check in progress",
			report: statusReport{
				DaemonRunning:         true,
				CredentialsConfigured: true,
				Phase:                 "logging_in",
				Regime:                "portal_detected",
			},
			want: []string{"in progress"},
		},
		{
			name:    "daemon down without credentials",
			report:  statusReport{},
			want:    []string{"never", "acp setup"},
			notWant: []string{"Regime:", "Next check:"},
		},
		{
			name: "last error shown",
			report: statusReport{
				DaemonRunning: true,
				Regime:        "portal_detected",
				LastError:     "login: portal response contains \"authentication failed\"",
			},
			want: []string{"Last error:", "authentication failed", "Next check:             due"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatStatusText(tt.report, now)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("expected %q in output:\n%s", w, got)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("did not expect %q in output:\n%s", w, got)
				}
			}
		})
	}
}

func TestStatusReportYAML(t *testing.T) {
	r := statusReport{DaemonRunning: true, Regime: "no_portal", IntervalSeconds: 450}

	out, err := yaml.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range []string{"daemon_running: true", "regime: no_portal", "interval_seconds: 450"} {
		if !strings.Contains(string(out), w) {
			t.Errorf("expected %q in yaml:\n%s", w, out)
		}
	}
	if strings.Contains(string(out), "last_check") {
		t.Errorf("expected empty fields to be omitted:\n%s", out)
	}
}
