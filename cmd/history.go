package cmd

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.olrik.dev/acp/internal/core"
	"go.olrik.dev/acp/internal/db"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
	colorGray   = "\033[90m"
)

func NewHistoryCommand() *cobra.Command {
	var sinceStr string
	var days int
	var limit int
	var showDaemon bool

	historyCmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist", "stats"},
		Short:   "Show recent check cycles",
		Long: `Display the check cycles recorded by the daemon: what triggered each
check, what it found, how many login attempts were made and the regime the
schedule moved to.

Examples:
  acp history                     # Today only
  acp history -S yesterday        # Just yesterday
  acp history -S yesterday -D 2   # Yesterday and today
  acp history -D 7                # Last 7 days
  acp history --daemon            # Daemon start/stop/reload events`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			database, err := db.Open(core.GetDatabasePath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "%sError:%s Failed to open database: %v\n", colorRed, colorReset, err)
				os.Exit(1)
			}
			defer database.Close()

			if showDaemon {
				printDaemonEvents(database, limit)
				return
			}

			start, end, label := parseDateRange(sinceStr, days, cmd.Flags().Changed("since"), time.Now())
			events, err := database.GetRecentChecks(limit)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%sError:%s Failed to query database: %v\n", colorRed, colorReset, err)
				os.Exit(1)
			}

			events = filterChecks(events, start, end)
			if len(events) == 0 {
				fmt.Printf("%sNo checks recorded (%s)%s\n", colorGray, label, colorReset)
				return
			}

			fmt.Printf("%s%sCheck History%s (%s)\n\n", colorBold, colorCyan, colorReset, label)
			printSummary(summarizeChecks(events))
			fmt.Println()
			printChecks(events)
		},
	}

	historyCmd.Flags().StringVarP(&sinceStr, "since", "S", "today", "Start date: today, yesterday, or YYYY-MM-DD")
	historyCmd.Flags().IntVarP(&days, "days", "D", 1, "Number of days to include")
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 1000, "Maximum number of rows to read")
	historyCmd.Flags().BoolVar(&showDaemon, "daemon", false, "Show daemon lifecycle events instead of checks")

	return historyCmd
}

// parseDateRange converts since flag and days into a date range
func parseDateRange(sinceStr string, days int, sinceSpecified bool, now time.Time) (start, end time.Time, label string) {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if days < 1 {
		days = 1
	}

	// If days > 1 but since wasn't specified, go backwards from today
	if days > 1 && !sinceSpecified {
		return startOfToday.AddDate(0, 0, -(days - 1)), now, fmt.Sprintf("last %d days", days)
	}

	switch sinceStr {
	case "today", "":
		start = startOfToday
	case "yesterday":
		start = startOfToday.AddDate(0, 0, -1)
	default:
		if t, err := time.ParseInLocation("2006-01-02", sinceStr, now.Location()); err == nil {
			start = t
		} else {
			fmt.Fprintf(os.Stderr, "%sWarning:%s Invalid date '%s', using today\n", colorYellow, colorReset, sinceStr)
			start = startOfToday
		}
	}

	end = start.AddDate(0, 0, days)
	if end.After(now) {
		end = now
	}

	if days == 1 {
		switch {
		case start.Equal(startOfToday):
			label = "today"
		case start.Equal(startOfToday.AddDate(0, 0, -1)):
			label = "yesterday"
		default:
			label = start.Format("Mon Jan 2")
		}
	} else {
		endDay := start.AddDate(0, 0, days-1)
		if endDay.After(startOfToday) {
			endDay = startOfToday
		}
		label = fmt.Sprintf("%s to %s (%d days)", start.Format("Jan 2"), endDay.Format("Jan 2"), days)
	}

	return start, end, label
}

// filterChecks keeps events in [start, end) in chronological order
func filterChecks(events []db.CheckEvent, start, end time.Time) []db.CheckEvent {
	var out []db.CheckEvent
	for _, e := range events {
		if !e.Timestamp.Before(start) && e.Timestamp.Before(end) {
			out = append(out, e)
		}
	}
	slices.Reverse(out)
	return out
}

type checkSummary struct {
	Total         int
	ByOutcome     map[string]int
	LoginAttempts int
	Failures      int
	AvgDuration   time.Duration
}

func summarizeChecks(events []db.CheckEvent) checkSummary {
	s := checkSummary{ByOutcome: map[string]int{}}
	var total time.Duration
	for _, e := range events {
		s.Total++
		s.ByOutcome[e.Outcome]++
		s.LoginAttempts += e.LoginAttempts
		if e.Error != "" {
			s.Failures++
		}
		total += e.Duration
	}
	if s.Total > 0 {
		s.AvgDuration = total / time.Duration(s.Total)
	}
	return s
}

func printSummary(s checkSummary) {
	fmt.Printf("  Checks:          %d (avg %s)\n", s.Total, formatDuration(s.AvgDuration))
	fmt.Printf("  Open network:    %d\n", s.ByOutcome["no_portal"])
	fmt.Printf("  Logged in:       %s%d%s\n", colorGreen, s.ByOutcome["login_succeeded"], colorReset)
	fmt.Printf("  Portal, no login:%s %d%s\n", colorYellow, s.ByOutcome["portal_detected"], colorReset)
	fmt.Printf("  Check failures:  %s%d%s\n", colorRed, s.ByOutcome["check_failed"], colorReset)
	fmt.Printf("  Login attempts:  %d\n", s.LoginAttempts)
}

func printChecks(events []db.CheckEvent) {
	var lastDay string
	for _, e := range events {
		day := e.Timestamp.Local().Format("Mon Jan 2")
		if day != lastDay {
			fmt.Printf("%s%s%s%s\n", colorBold, colorWhite, day, colorReset)
			lastDay = day
		}

		fmt.Printf("  %s  %s%-16s%s %-8s next %-6s %s",
			e.Timestamp.Local().Format("15:04:05"),
			outcomeColor(e.Outcome), e.Outcome, colorReset,
			e.Trigger,
			formatDuration(e.Interval),
			colorDim+formatDuration(e.Duration)+colorReset,
		)
		if e.LoginAttempts > 0 {
			fmt.Printf(" attempts=%d", e.LoginAttempts)
		}
		if e.Error != "" {
			fmt.Printf(" %s%s%s", colorGray, e.Error, colorReset)
		}
		fmt.Println()
	}
}

func printDaemonEvents(database *db.DB, limit int) {
	events, err := database.GetRecentDaemonEvents(limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sError:%s Failed to query database: %v\n", colorRed, colorReset, err)
		os.Exit(1)
	}
	if len(events) == 0 {
		fmt.Printf("%sNo daemon events recorded%s\n", colorGray, colorReset)
		return
	}
	slices.Reverse(events)
	for _, e := range events {
		fmt.Printf("  %s  %-14s %s\n", e.Timestamp.Local().Format(time.DateTime), e.EventType, e.Details)
	}
}

func outcomeColor(outcome string) string {
	switch outcome {
	case "login_succeeded":
		return colorGreen
	case "portal_detected":
		return colorYellow
	case "check_failed":
		return colorRed
	}
	return colorWhite
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs > 0 {
			return fmt.Sprintf("%dm%ds", mins, secs)
		}
		return fmt.Sprintf("%dm", mins)
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}
