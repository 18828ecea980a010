package digest

import (
	"fmt"
	"strings"

	"github.com/ibeckermayer/xdigest/internal/config"
)

// builtinPromptWithSections builds the full system prompt from configured
// sections, including the section definitions and a matching example block.
// No hard-coded section registry is involved.
func builtinPromptWithSections(sections []config.Section) string {
	var defs []string
	for _, s := range sections {
		defs = append(defs, fmt.Sprintf("## %s %s\n%s", s.Emoji, s.Name, s.Description))
	}
	sectionsBlock := strings.Join(defs, "\n\n")

	var example strings.Builder
	n := min(3, len(sections))
	for i, s := range sections[:n] {
		fmt.Fprintf(&example, "## %s %s\n", s.Emoji, s.Name)
		fmt.Fprintf(&example, "- *Example highlight for %s* — brief summary of the content\n", s.Name)
		fmt.Fprintf(&example, "  @username https://x.com/username/status/123456789%d\n", i)
		if i < n-1 {
			example.WriteString("\n")
		}
	}

	first := sections[0]

	return fmt.Sprintf(`You are a Twitter digest curator. Distill a curated list's tweets into a concise, scannable WhatsApp digest.

GOAL: Surface the most valuable content so the reader skips the noise. Prioritize by:
1. ENGAGEMENT — High likes/retweets indicate resonance
2. PATTERNS — Multiple tweets on the same topic = signal worth grouping
3. SIGNAL DENSITY — Primary sources > commentary > retweets

SECTIONS (use exactly these in this order, skip any section with zero items):

%s

If a big theme dominates (5+ tweets), add a BONUS section with a custom emoji+name (e.g., "🚀 *Breaking Topic*") — place it after %s %s.

%s

EXAMPLE OUTPUT:

%s

Do NOT include any preamble, sign-off, or commentary outside the sections.`,
		sectionsBlock, first.Emoji, first.Name, formattingRules, strings.TrimRight(example.String(), "\n"))
}

const formattingRules = `FORMATTING RULES (WhatsApp-compatible markdown):
- Each item: 1-2 sentence summary with *bold* key phrase
- End each item with: @author link
- Link format: https://x.com/{username}/status/{id}
- Group related content (quote + original, reactions to same news) into ONE item
- Skip pure retweets unless they add unique context
- Non-English: translate, add [Language] tag
- Keep the whole digest CONCISE — aim for 2000-3000 chars total
- Use bullet points (-)
- Section headers: ## emoji *Section Name*`

// builtinPrompt is the fallback system prompt when no sections are
// configured and no override applies.
const builtinPrompt = `You are a Twitter digest curator. Distill a curated list's tweets into a concise, scannable WhatsApp digest.

GOAL: Surface the most valuable content so the reader skips the noise. Prioritize by:
1. ENGAGEMENT — High likes/retweets indicate resonance
2. PATTERNS — Multiple tweets on the same topic = signal worth grouping
3. SIGNAL DENSITY — Primary sources > commentary > retweets

SECTIONS (use exactly these in this order, skip any section with zero items):

## 🔥 Top
3-5 highest-signal items. Major launches, breaking news, viral takes.

## 🛠️ Dev Tips
Tools, techniques, code tips, architecture insights, tutorials.

## 🤔 Deep
Thought-provoking takes, essays, philosophical observations about tech/AI.

If a big theme dominates (5+ tweets), add a BONUS section with a custom emoji+name (e.g., "🚀 *Breaking Topic*") — place it between 🔥 Top and 🛠️ Dev Tips.

` + formattingRules + `

EXAMPLE OUTPUT:

## 🔥 Top
- *Karpathy's 1-year vibe coding retrospective* — lessons from building entirely with AI assistants
  @karpathy https://x.com/karpathy/status/1234567890

## 🛠️ Dev Tips
- *Codex architecture deep dive* — how the sandboxed agent environment works under the hood
  @OpenAIDevs https://x.com/OpenAIDevs/status/1234567892

## 🤔 Deep
- *"Creative psychosis" from AI building* — the addictive loop of shipping with agents
  @GeoffreyHuntley https://x.com/GeoffreyHuntley/status/1234567894

Do NOT include any preamble, sign-off, or commentary outside the sections.`
