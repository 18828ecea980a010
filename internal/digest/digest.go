// Package digest assembles the final LLM payload, generates the digest, and
// splits the result into channel-safe message parts.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ibeckermayer/xdigest/internal/config"
	"github.com/ibeckermayer/xdigest/internal/images"
	"github.com/ibeckermayer/xdigest/internal/llm"
	"github.com/ibeckermayer/xdigest/internal/types"
)

// MinPostsForLLM is the threshold below which the deterministic sparse
// template is used instead of an LLM call.
const MinPostsForLLM = 5

// Options carries the digest-level settings resolved for one run.
type Options struct {
	List         config.ListSettings
	GlobalPrompt string // defaults-level system prompt override
}

// Generate produces the digest text for a batch. The policy ladder is
// exclusive: zero posts yields the quiet-period template, fewer than
// MinPostsForLLM yields the deterministic bullet list, and otherwise the LLM
// is called with the structured payload plus any fetchable images. An LLM
// failure at the last rung degrades to the sparse template rather than
// failing the run.
func Generate(
	ctx context.Context,
	posts []types.Post,
	summaries map[string]string,
	selected []images.Selected,
	opts Options,
	provider llm.Provider,
	fetcher *images.Fetcher,
) string {
	now := time.Now().UTC()

	if len(posts) == 0 {
		return FormatEmpty(opts.List, now)
	}
	if len(posts) < MinPostsForLLM {
		return FormatSparse(posts, opts.List, now)
	}

	payload := BuildPayload(posts, summaries, selected, opts.List, now)
	system := BuildSystemPrompt(opts)

	var imgData []llm.Image
	if fetcher != nil {
		imgData = fetcher.FetchAll(ctx, selected)
	}

	text, err := provider.Generate(ctx, payload, system, imgData)
	if err != nil {
		return FormatSparse(posts, opts.List, now)
	}
	return strings.TrimSpace(text)
}

// BuildPayload renders the structured markdown payload sent to the LLM:
// a header with counts, then one block per post.
func BuildPayload(
	posts []types.Post,
	summaries map[string]string,
	selected []images.Selected,
	list config.ListSettings,
	now time.Time,
) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Digest Request: %s %s\n", list.Emoji, list.DisplayName)
	fmt.Fprintf(&sb, "**Period:** %s\n", now.Format("Jan 02, 2006"))
	fmt.Fprintf(&sb, "**Tweets:** %d total (%d pre-summarized, %d with images)\n",
		len(posts), len(summaries), len(selected))
	sb.WriteString("\n---\n\n")

	hasImage := make(map[string]bool, len(selected))
	for _, sel := range selected {
		hasImage[sel.PostID] = true
	}

	for i, p := range posts {
		fmt.Fprintf(&sb, "## Tweet %d\n", i+1)
		fmt.Fprintf(&sb, "- **Author:** @%s (%s)\n", p.Author.Username, p.Author.Name)
		fmt.Fprintf(&sb, "- **Time:** %s\n", types.FormatRelativeTime(p.CreatedAt, now))
		fmt.Fprintf(&sb, "- **Engagement:** %d likes · %d retweets · %d replies\n",
			p.LikeCount, p.RetweetCount, p.ReplyCount)

		if summary, ok := summaries[p.ID]; ok && summary != "" {
			fmt.Fprintf(&sb, "- **Summary:** %s\n", summary)
			fmt.Fprintf(&sb, "- **Original:** %d chars\n", len(p.Text))
		} else {
			fmt.Fprintf(&sb, "- **Text:** %s\n", p.Text)
		}

		if p.QuotedPost != nil {
			fmt.Fprintf(&sb, "- **Quote:** @%s: %q\n", p.QuotedPost.Author.Username, p.QuotedPost.Text)
		}

		fmt.Fprintf(&sb, "- **Link:** %s\n", types.PermalinkURL(&p))

		if hasImage[p.ID] {
			sb.WriteString("- **[Image attached]**\n")
		}

		sb.WriteString("\n---\n\n")
	}

	return sb.String()
}

// BuildSystemPrompt resolves the system prompt: list-specific override, then
// global override, then the built-in prompt (section-driven when sections are
// configured).
func BuildSystemPrompt(opts Options) string {
	if opts.List.Prompt != "" {
		return opts.List.Prompt
	}
	if opts.GlobalPrompt != "" {
		return opts.GlobalPrompt
	}
	if len(opts.List.Sections) > 0 {
		return builtinPromptWithSections(opts.List.Sections)
	}
	return builtinPrompt
}

// FormatEmpty renders the quiet-period template used when no posts were
// found in the window. No LLM call is involved.
func FormatEmpty(list config.ListSettings, now time.Time) string {
	return fmt.Sprintf("%s *%s Digest* — %s\n\n📭 *Quiet period* — No new tweets since last digest.",
		list.Emoji, list.DisplayName, now.Format("Jan 02, 2006"))
}

// FormatSparse renders the deterministic bullet list used for small batches
// and as the LLM-failure fallback.
func FormatSparse(posts []types.Post, list config.ListSettings, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s *%s Digest* — %s\n\n", list.Emoji, list.DisplayName, now.Format("Jan 02, 2006"))
	fmt.Fprintf(&sb, "%s *%d tweets since last digest:*\n\n", list.Emoji, len(posts))

	for _, p := range posts {
		fmt.Fprintf(&sb, "• @%s: %s\n", p.Author.Username, types.TruncateText(p.Text, 103))
		fmt.Fprintf(&sb, "  %d ❤️ · %s\n\n", p.LikeCount, types.PermalinkURL(&p))
	}

	return sb.String()
}
