// Package presummary decides which posts or threads exceed size thresholds
// and compresses them through the LLM before digest assembly.
package presummary

import (
	"context"
	"fmt"
	"strings"

	"github.com/ibeckermayer/xdigest/internal/classify"
	"github.com/ibeckermayer/xdigest/internal/config"
	"github.com/ibeckermayer/xdigest/internal/llm"
	"github.com/ibeckermayer/xdigest/internal/types"
)

// Content type tags embedded in the compression prompt.
const (
	TypeLongPost   = "long_tweet"
	TypeThread     = "thread"
	TypeQuoteChain = "quote_chain"
)

// threadSeparator joins numbered posts when summarizing a whole thread.
const threadSeparator = "\n---\n"

// ShouldSummarizePost reports whether a single post needs compression.
// All threshold comparisons are strict greater-than.
func ShouldSummarizePost(p *types.Post, cfg config.PresummaryConfig) bool {
	if len(p.Text) > cfg.LongTweetChars {
		return true
	}
	if p.QuotedPost != nil && len(p.QuotedPost.Text) > cfg.LongQuoteChars {
		return true
	}
	return types.ContentLength(p) > cfg.LongCombinedChars
}

// ShouldSummarizeThread reports whether a thread needs compression. A thread
// at or above the minimum member count always qualifies; a single-member
// thread degrades to the single-post rule; an empty thread never qualifies.
func ShouldSummarizeThread(thread []types.Post, cfg config.PresummaryConfig) bool {
	if len(thread) >= cfg.ThreadMinTweets {
		return true
	}
	if len(thread) == 1 {
		return ShouldSummarizePost(&thread[0], cfg)
	}
	return false
}

// BuildPrompt constructs the deterministic compression prompt. Same inputs
// always produce the same prompt text, which matters for testability and
// caching.
func BuildPrompt(content, contentType, author string) string {
	lengthDesc := fmt.Sprintf("%d chars", len(content))
	if contentType == TypeThread {
		postCount := strings.Count(content, threadSeparator) + 1
		lengthDesc = fmt.Sprintf("%d chars / %d tweets", len(content), postCount)
	}

	return fmt.Sprintf(`You are summarizing Twitter content for a digest. Preserve the key insights in detail.

CONTENT TYPE: %s
AUTHOR: @%s
ORIGINAL LENGTH: %s

CONTENT:
%s

INSTRUCTIONS:
- Write 2 paragraphs (4-6 sentences total)
- First paragraph: core message, main argument, key claims
- Second paragraph: supporting details, specific numbers, recommendations, implications
- Preserve the author's perspective and tone
- Keep technical details if present
- Note what's opinion vs fact where relevant

OUTPUT: Just the summary, no preamble.`, contentType, author, lengthDesc, content)
}

// Result pairs a post with its pre-summary. Summary is empty when the post
// was not compressed.
type Result struct {
	Post    types.Post
	Summary string
}

// Summarize runs pre-summarization over a batch. Threads are reconstructed
// first; a qualifying multi-member thread gets one LLM call whose result is
// applied to every member. LLM failure for any unit records an empty summary
// for that unit and processing continues. When disabled via config, no LLM
// calls are made at all.
func Summarize(ctx context.Context, posts []types.Post, provider llm.Provider, cfg config.PresummaryConfig) []Result {
	if !cfg.IsEnabled() {
		results := make([]Result, len(posts))
		for i, p := range posts {
			results[i] = Result{Post: p}
		}
		return results
	}

	threads := classify.ReconstructThreads(posts)

	var results []Result
	seen := make(map[string]bool)
	for _, p := range posts {
		if seen[p.ConversationID] {
			continue
		}
		seen[p.ConversationID] = true
		members := threads[p.ConversationID]

		if len(members) == 1 {
			single := members[0]
			var summary string
			if ShouldSummarizePost(&single, cfg) {
				summary = summarizePost(ctx, &single, provider)
			}
			results = append(results, Result{Post: single, Summary: summary})
			continue
		}

		var summary string
		if ShouldSummarizeThread(members, cfg) {
			summary = summarizeThread(ctx, members, provider)
		}
		for _, m := range members {
			results = append(results, Result{Post: m, Summary: summary})
		}
	}

	return results
}

// summarizePost compresses one post, folding in quoted content when present.
// Returns empty string on LLM failure.
func summarizePost(ctx context.Context, p *types.Post, provider llm.Provider) string {
	content := p.Text
	contentType := TypeLongPost
	if p.QuotedPost != nil {
		content += fmt.Sprintf("\n\nQUOTED CONTENT:\n%s\n(Originally by @%s)",
			p.QuotedPost.Text, p.QuotedPost.Author.Username)
		contentType = TypeQuoteChain
	}

	prompt := BuildPrompt(content, contentType, p.Author.Username)
	summary, err := provider.Generate(ctx, prompt, "", nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(summary)
}

// summarizeThread compresses a whole thread with one call. Returns empty
// string on LLM failure.
func summarizeThread(ctx context.Context, thread []types.Post, provider llm.Provider) string {
	parts := make([]string, len(thread))
	for i, p := range thread {
		parts[i] = fmt.Sprintf("Tweet %d: %s", i+1, p.Text)
	}
	content := strings.Join(parts, threadSeparator)

	prompt := BuildPrompt(content, TypeThread, thread[0].Author.Username)
	summary, err := provider.Generate(ctx, prompt, "", nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(summary)
}
