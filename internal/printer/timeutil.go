package printer

import (
	"fmt"
	"time"
)

// TimeUntil returns a human-readable relative time string for a future
// instant in UTC. Past instants are reported as overdue.
// Examples: "in 30 seconds (UTC)", "in 2 hours (UTC)", "overdue by 1 day (UTC)".
func TimeUntil(t time.Time) string {
	now := time.Now().UTC()
	t = t.UTC()

	diff := t.Sub(now)

	if diff < 0 {
		return fmt.Sprintf("overdue by %s (UTC)", humanDuration(-diff))
	}

	return fmt.Sprintf("in %s (UTC)", humanDuration(diff))
}

func humanDuration(d time.Duration) string {
	// Seconds
	if d < time.Minute {
		seconds := int(d.Seconds())
		if seconds == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", seconds)
	}

	// Minutes
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}

	// Hours
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}

	// Days
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// FormatTimestamp returns a formatted timestamp string in UTC.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
