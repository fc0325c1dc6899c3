package cmd

import (
	"testing"
	"time"

	"go.olrik.dev/acp/internal/db"
)

func TestParseDateRange(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		since     string
		days      int
		specified bool
		wantStart time.Time
		wantEnd   time.Time
		wantLabel string
	}{
		{"today", "today", 1, false, today, now, "today"},
		{"yesterday", "yesterday", 1, true, today.AddDate(0, 0, -1), today, "yesterday"},
		{"last 7 days", "today", 7, false, today.AddDate(0, 0, -6), now, "last 7 days"},
		{"explicit date", "2026-03-01", 1, true, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), "Sun Mar 1"},
		{"explicit range", "2026-03-01", 3, true, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), "Mar 1 to Mar 3 (3 days)"},
		{"zero days", "today", 0, false, today, now, "today"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, label := parseDateRange(tt.since, tt.days, tt.specified, now)
			if !start.Equal(tt.wantStart) || !end.Equal(tt.wantEnd) || label != tt.wantLabel {
				t.Errorf("parseDateRange() = %s, %s, %q; want %s, %s, %q",
					start, end, label, tt.wantStart, tt.wantEnd, tt.wantLabel)
			}
		})
	}
}

func TestFilterAndSummarizeChecks(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Newest first, as returned by GetRecentChecks
	events := []db.CheckEvent{
		{Outcome: "no_portal", Duration: 100 * time.Millisecond, Timestamp: base.Add(2 * time.Hour)},
		{Outcome: "login_succeeded", LoginAttempts: 2, Duration: 3 * time.Second, Timestamp: base.Add(time.Hour)},
		{Outcome: "portal_detected", LoginAttempts: 3, Error: "rejected", Duration: 15 * time.Second, Timestamp: base},
		{Outcome: "check_failed", Error: "timeout", Timestamp: base.Add(-48 * time.Hour)},
	}

	filtered := filterChecks(events, base.Add(-time.Minute), base.Add(3*time.Hour))
	if len(filtered) != 3 {
		t.Fatalf("expected 3 events in range, got %d", len(filtered))
	}
	if !filtered[0].Timestamp.Equal(base) {
		t.Errorf("expected chronological order, first is %s", filtered[0].Timestamp)
	}

	s := summarizeChecks(filtered)
	if s.Total != 3 || s.LoginAttempts != 5 || s.Failures != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.ByOutcome["login_succeeded"] != 1 || s.ByOutcome["check_failed"] != 0 {
		t.Errorf("unexpected outcome counts %v", s.ByOutcome)
	}
	if s.AvgDuration != 6*time.Second+(100*time.Millisecond)/3 {
		t.Errorf("unexpected average %s", s.AvgDuration)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{45 * time.Second, "45s"},
		{10 * time.Minute, "10m"},
		{90 * time.Second, "1m30s"},
		{30 * time.Minute, "30m"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
		{3 * time.Hour, "3h"},
		{50 * time.Hour, "2d2h"},
		{48 * time.Hour, "2d"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
