package digest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xdigest/internal/config"
	"github.com/ibeckermayer/xdigest/internal/images"
	"github.com/ibeckermayer/xdigest/internal/llm"
	"github.com/ibeckermayer/xdigest/internal/types"
)

func testList() config.ListSettings {
	return config.ListSettings{
		Name:        "ai",
		ID:          "123",
		DisplayName: "AI News",
		Emoji:       "🤖",
		Enabled:     true,
	}
}

func makePosts(n int) []types.Post {
	posts := make([]types.Post, n)
	for i := range posts {
		posts[i] = types.Post{
			ID:             fmt.Sprintf("%d", i+1),
			ConversationID: fmt.Sprintf("%d", i+1),
			Text:           fmt.Sprintf("post number %d", i+1),
			CreatedAt:      time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC).Format(time.RFC3339),
			Author:         types.Author{Username: fmt.Sprintf("user%d", i+1), Name: "User"},
			LikeCount:      i * 10,
		}
	}
	return posts
}

func TestGenerateEmptyWindow(t *testing.T) {
	mock := llm.NewMock("should not be called")
	opts := Options{List: testList()}

	got := Generate(context.Background(), nil, nil, nil, opts, mock, nil)
	assert.Contains(t, got, "Quiet period")
	assert.Contains(t, got, "AI News")
	assert.Empty(t, mock.Calls)
}

func TestGenerateSparseBelowThreshold(t *testing.T) {
	mock := llm.NewMock("should not be called")
	opts := Options{List: testList()}
	posts := makePosts(MinPostsForLLM - 1)

	got := Generate(context.Background(), posts, nil, nil, opts, mock, nil)
	assert.Contains(t, got, "• @user1:")
	assert.Contains(t, got, "https://x.com/user1/status/1")
	assert.Empty(t, mock.Calls)
}

func TestGenerateCallsLLMAtThreshold(t *testing.T) {
	mock := llm.NewMock("🤖 the digest")
	opts := Options{List: testList()}
	posts := makePosts(MinPostsForLLM)

	got := Generate(context.Background(), posts, nil, nil, opts, mock, nil)
	assert.Equal(t, "🤖 the digest", got)
	require.Len(t, mock.Calls, 1)
	assert.Contains(t, mock.Calls[0].Prompt, "# Digest Request:")
}

func TestGenerateLLMFailureFallsBackToSparse(t *testing.T) {
	mock := llm.NewMock("")
	mock.Err = errors.New("quota exceeded")
	opts := Options{List: testList()}
	posts := makePosts(6)

	got := Generate(context.Background(), posts, nil, nil, opts, mock, nil)
	assert.Contains(t, got, "• @user1:")
	assert.Len(t, mock.Calls, 1)
}

func TestBuildPayload(t *testing.T) {
	posts := makePosts(2)
	posts[1].QuotedPost = &types.Post{
		ID:     "99",
		Text:   "quoted text",
		Author: types.Author{Username: "original"},
	}
	summaries := map[string]string{"1": "a compressed version"}
	selected := []images.Selected{{PostID: "2", URL: "https://img/x.jpg"}}
	now := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

	payload := BuildPayload(posts, summaries, selected, testList(), now)

	assert.Contains(t, payload, "# Digest Request: 🤖 AI News")
	assert.Contains(t, payload, "**Tweets:** 2 total (1 pre-summarized, 1 with images)")
	// Summarized post shows the summary, not the text.
	assert.Contains(t, payload, "**Summary:** a compressed version")
	assert.NotContains(t, payload, "**Text:** post number 1\n")
	// Unsummarized post shows its text plus quote and image flag.
	assert.Contains(t, payload, "**Text:** post number 2")
	assert.Contains(t, payload, `**Quote:** @original: "quoted text"`)
	assert.Contains(t, payload, "[Image attached]")
	assert.Contains(t, payload, "https://x.com/user1/status/1")
}

func TestBuildSystemPromptResolution(t *testing.T) {
	list := testList()

	// Built-in prompt when nothing is configured.
	got := BuildSystemPrompt(Options{List: list})
	assert.Contains(t, got, "🔥")

	// Sections drive the generated prompt.
	list.Sections = []config.Section{{Emoji: "📈", Name: "Markets", Description: "market moves"}}
	got = BuildSystemPrompt(Options{List: list})
	assert.Contains(t, got, "📈 Markets")
	assert.Contains(t, got, "market moves")

	// Global override beats the built-ins.
	got = BuildSystemPrompt(Options{List: list, GlobalPrompt: "global prompt"})
	assert.Equal(t, "global prompt", got)

	// List override beats everything.
	list.Prompt = "list prompt"
	got = BuildSystemPrompt(Options{List: list, GlobalPrompt: "global prompt"})
	assert.Equal(t, "list prompt", got)
}

func TestFormatEmpty(t *testing.T) {
	now := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	got := FormatEmpty(testList(), now)
	assert.Contains(t, got, "🤖 *AI News Digest*")
	assert.Contains(t, got, "Jan 06, 2025")
	assert.Contains(t, got, "No new tweets since last digest")
}

func TestFormatSparseTruncatesLongText(t *testing.T) {
	posts := makePosts(1)
	for i := 0; i < 30; i++ {
		posts[0].Text += " more words to pad this out"
	}
	now := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

	got := FormatSparse(posts, testList(), now)
	assert.Contains(t, got, "1 tweets since last digest")
	assert.Contains(t, got, "...")
	assert.Contains(t, got, "0 ❤️")
}
