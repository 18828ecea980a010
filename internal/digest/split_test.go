package digest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xdigest/internal/config"
)

func TestSplitShortTextSinglePart(t *testing.T) {
	parts := Split("short digest", 4000, nil)
	require.Len(t, parts, 1)
	assert.Equal(t, "short digest", parts[0])
	assert.NotContains(t, parts[0], "(1/1)")
}

func TestSplitRespectsMaxLengthWithIndicator(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "Paragraph %d with some filler text to occupy space.\n\n", i)
	}
	text := strings.TrimRight(sb.String(), "\n")

	for _, maxLen := range []int{200, 500, 1000} {
		parts := Split(text, maxLen, nil)
		require.Greater(t, len(parts), 1, "maxLen %d", maxLen)
		for i, part := range parts {
			assert.LessOrEqual(t, len(part), maxLen, "part %d at maxLen %d", i, maxLen)
			assert.Contains(t, part, fmt.Sprintf("(%d/%d)", i+1, len(parts)))
		}
	}
}

func TestSplitWidensReserveBeyondNinetyNineParts(t *testing.T) {
	text := strings.Repeat("x", 12000)
	parts := Split(text, 100, nil)
	require.Greater(t, len(parts), 99)

	total := len(parts)
	for i, part := range parts {
		assert.LessOrEqual(t, len(part), 100, "part %d of %d", i+1, total)
		assert.True(t, strings.HasSuffix(part, fmt.Sprintf("_(%d/%d)_", i+1, total)), "part %d of %d", i+1, total)
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	text := strings.Repeat("a", 150) + "\n\n" + strings.Repeat("b", 150)
	parts := Split(text, 200, nil)
	require.Len(t, parts, 2)
	// The cut lands on the blank line, not mid-word.
	assert.True(t, strings.HasPrefix(parts[0], strings.Repeat("a", 150)))
	assert.True(t, strings.HasPrefix(parts[1], strings.Repeat("b", 150)))
}

func TestSplitSectionMarkersWinOverParagraphs(t *testing.T) {
	sections := []config.Section{{Emoji: "🔥", Name: "Top"}}
	text := strings.Repeat("a", 100) + "\n\nplain paragraph\n\n🔥 Top Stories\n" + strings.Repeat("b", 100)
	parts := Split(text, 160, sections)
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[1], "🔥 Top Stories"))
}

func TestSplitHardCutWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("x", 500)
	parts := Split(text, 200, nil)
	require.Greater(t, len(parts), 1)
	for _, part := range parts {
		assert.LessOrEqual(t, len(part), 200)
	}
}

func TestSplitPreservesContent(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "Line %d content.\n\n", i)
	}
	text := strings.TrimSpace(sb.String())

	parts := Split(text, 150, nil)
	var joined strings.Builder
	for i, part := range parts {
		// Strip the indicator before comparing content.
		part = strings.TrimSuffix(part, fmt.Sprintf("\n\n_(%d/%d)_", i+1, len(parts)))
		joined.WriteString(part)
		joined.WriteString(" ")
	}
	for i := 0; i < 30; i++ {
		assert.Contains(t, joined.String(), fmt.Sprintf("Line %d content.", i))
	}
}
