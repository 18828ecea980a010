package digest

import (
	"fmt"
	"strings"

	"github.com/ibeckermayer/xdigest/internal/config"
)

// MaxMessageLength is a safe default limit when a provider limit is unknown.
const MaxMessageLength = 4000

// indicatorReserve is the initial room held back from every cut for the
// appended "(i/total)" indicator. It covers totals of up to two digits;
// Split widens it when the final part count needs more.
const indicatorReserve = 12

// Split breaks a digest into parts no longer than maxLength, preferring
// semantic boundaries. Markers are tried in priority order: configured
// section markers, generic markdown headers, bold-item starts, then blank
// lines; within a window the right-most match wins. If no marker falls in
// the window the text is hard-cut. When more than one part results, each
// part carries an "(i/total)" indicator counted inside its length budget.
// If the rendered indicator for the final total outgrows the reserve, the
// text is re-cut with a reserve sized to that total.
func Split(text string, maxLength int, sections []config.Section) []string {
	if len(text) <= maxLength {
		return []string{text}
	}

	markers := splitMarkers(sections)

	reserve := indicatorReserve
	parts := cutParts(text, maxLength-reserve, markers)
	for len(indicator(len(parts), len(parts))) > reserve {
		reserve = len(indicator(len(parts), len(parts)))
		parts = cutParts(text, maxLength-reserve, markers)
	}

	if len(parts) > 1 {
		total := len(parts)
		for i, part := range parts {
			parts[i] = part + indicator(i+1, total)
		}
	}

	return parts
}

// indicator renders the part counter appended to each part of a multi-part
// digest.
func indicator(i, total int) string {
	return fmt.Sprintf("\n\n_(%d/%d)_", i, total)
}

// cutParts cuts text into chunks of at most window bytes at the best marker
// inside each window.
func cutParts(text string, window int, markers []string) []string {
	if window < 1 {
		window = 1
	}

	var parts []string
	remaining := text
	for len(remaining) > window {
		splitAt := -1
		for _, marker := range markers {
			if idx := strings.LastIndex(remaining[:window], marker); idx > 0 {
				splitAt = idx
				break
			}
		}
		if splitAt <= 0 {
			splitAt = window
		}

		parts = append(parts, strings.TrimRight(remaining[:splitAt], " \t\r\n"))
		remaining = strings.TrimLeft(remaining[splitAt:], " \t\r\n")
	}
	if remaining != "" {
		parts = append(parts, remaining)
	}
	return parts
}

// splitMarkers builds the boundary marker list, configured section markers
// first.
func splitMarkers(sections []config.Section) []string {
	var markers []string
	for _, s := range sections {
		if s.Emoji == "" {
			continue
		}
		markers = append(markers, "\n\n"+s.Emoji, "\n\n## "+s.Emoji)
	}
	markers = append(markers,
		"\n\n## ", // any markdown section header
		"\n\n*",   // any bold item start
		"\n\n",    // paragraph break
	)
	return markers
}
