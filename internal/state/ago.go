package state

import (
	"fmt"
	"time"
)

// FormatAgo renders t relative to now, e.g. "5 minutes ago"
func FormatAgo(t, now time.Time) string {
	if now.Before(t) {
		return "just now"
	}

	diff := int64(now.Sub(t) / time.Second)
	switch {
	case diff < 60:
		return fmt.Sprintf("%d seconds ago", diff)
	case diff < 3600:
		return plural(diff/60, "minute")
	case diff < 86400:
		return plural(diff/3600, "hour")
	default:
		return plural(diff/86400, "day")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
