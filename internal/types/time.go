package types

import (
	"fmt"
	"strings"
	"time"
)

// twitterTimeLayout matches "Wed Feb 04 19:00:43 +0000 2026".
const twitterTimeLayout = "Mon Jan 02 15:04:05 -0700 2006"

// ParseCreatedAt parses a post timestamp in any of the formats the upstream
// emits: the legacy Twitter layout, RFC 3339 with Z, or RFC 3339 with a
// numeric offset. Returns the zero time and an error if nothing matches;
// callers that sort decide how to degrade.
func ParseCreatedAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if t, err := time.Parse(twitterTimeLayout, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	// Date-time without zone, assume UTC
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatRelativeTime renders a post timestamp relative to now
// ("5m ago", "2h ago", "3d ago"). Unparseable or future timestamps
// degrade to "recently".
func FormatRelativeTime(createdAt string, now time.Time) string {
	t, err := ParseCreatedAt(createdAt)
	if err != nil {
		return "recently"
	}

	d := now.Sub(t)
	switch {
	case d < 0:
		return "recently"
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// TruncateText truncates text to max length, appending "..." when cut.
func TruncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	const suffix = "..."
	if maxLen <= len(suffix) {
		return suffix[:maxLen]
	}
	return s[:maxLen-len(suffix)] + suffix
}
