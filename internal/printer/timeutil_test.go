package printer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/deadliner/internal/printer"
)

func TestTimeUntil(t *testing.T) {
	now := time.Now().UTC()

	tests := map[string]struct {
		time     time.Time
		expected string
	}{
		"in 30 seconds": {
			time:     now.Add(30*time.Second + 500*time.Millisecond),
			expected: "in 30 seconds (UTC)",
		},
		"in 1 minute": {
			time:     now.Add(time.Minute + time.Second),
			expected: "in 1 minute (UTC)",
		},
		"in 45 minutes": {
			time:     now.Add(45*time.Minute + time.Second),
			expected: "in 45 minutes (UTC)",
		},
		"in 1 hour": {
			time:     now.Add(time.Hour + time.Minute),
			expected: "in 1 hour (UTC)",
		},
		"in 5 hours": {
			time:     now.Add(5*time.Hour + time.Minute),
			expected: "in 5 hours (UTC)",
		},
		"in 3 days": {
			time:     now.Add(72*time.Hour + time.Hour),
			expected: "in 3 days (UTC)",
		},
		"overdue by 2 minutes": {
			time:     now.Add(-2 * time.Minute),
			expected: "overdue by 2 minutes (UTC)",
		},
		"overdue by 1 day": {
			time:     now.Add(-25 * time.Hour),
			expected: "overdue by 1 day (UTC)",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, printer.TimeUntil(test.time))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 30, 10, 30, 45, 0, time.UTC)
	assert.Equal(t, "2026-01-30 10:30:45 UTC", printer.FormatTimestamp(ts))
}
