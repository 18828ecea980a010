// Package types defines the normalized post model and batch parsing.
//
// Upstream JSON uses camelCase field names (createdAt, conversationId,
// quotedTweet); the raw* types map that boundary shape onto the internal
// model. Malformed entries are dropped during batch parsing so one bad
// post never aborts the run.
package types

import (
	"encoding/json"

	"github.com/ibeckermayer/xdigest/internal/errs"
)

// Media is a photo or video attached to a post.
type Media struct {
	Type       string `json:"type"` // "photo" or "video"
	URL        string `json:"url"`  // full-size URL
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	PreviewURL string `json:"preview_url"` // thumbnail URL
	VideoURL   string `json:"video_url,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty"`
}

// Author identifies who wrote a post.
type Author struct {
	Username string `json:"username"` // handle without @
	Name     string `json:"name"`     // display name
}

// Post is a normalized post with its media, author, and quote relationships.
// A Post owns its QuotedPost exclusively; nesting is bounded in practice but
// parsed recursively.
type Post struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	CreatedAt      string  `json:"created_at"` // original timestamp string
	ConversationID string  `json:"conversation_id"`
	Author         Author  `json:"author"`
	AuthorID       string  `json:"author_id"`
	ReplyCount     int     `json:"reply_count"`
	RetweetCount   int     `json:"retweet_count"`
	LikeCount      int     `json:"like_count"`
	Media          []Media `json:"media,omitempty"`
	QuotedPost     *Post   `json:"quoted_post,omitempty"`
	InReplyToID    string  `json:"in_reply_to_id,omitempty"`
}

// rawMedia is the upstream wire shape for media attachments.
type rawMedia struct {
	Type       string `json:"type"`
	URL        string `json:"url"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	PreviewURL string `json:"previewUrl"`
	VideoURL   string `json:"videoUrl"`
	DurationMS int    `json:"durationMs"`
}

type rawAuthor struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

// rawPost is the upstream wire shape for posts.
type rawPost struct {
	ID             string     `json:"id"`
	Text           string     `json:"text"`
	CreatedAt      string     `json:"createdAt"`
	ConversationID string     `json:"conversationId"`
	Author         *rawAuthor `json:"author"`
	AuthorID       string     `json:"authorId"`
	ReplyCount     int        `json:"replyCount"`
	RetweetCount   int        `json:"retweetCount"`
	LikeCount      int        `json:"likeCount"`
	Media          []rawMedia `json:"media"`
	QuotedPost     *rawPost   `json:"quotedTweet"`
	InReplyToID    string     `json:"inReplyToStatusId"`
}

// ParsePosts parses a JSON array of upstream post objects.
// Entries missing id, text, or author.username are dropped silently;
// a malformed entry never aborts the batch.
func ParsePosts(data []byte) ([]Post, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, errs.Wrap(errs.FetchParseError, "expected JSON array of posts", err)
	}

	posts := make([]Post, 0, len(raws))
	for _, r := range raws {
		var rp rawPost
		if err := json.Unmarshal(r, &rp); err != nil {
			continue
		}
		p, ok := normalize(&rp)
		if !ok {
			continue
		}
		posts = append(posts, *p)
	}

	return posts, nil
}

// normalize converts an upstream post to the internal model, validating
// required fields. Returns false if the post must be dropped.
func normalize(rp *rawPost) (*Post, bool) {
	if rp.ID == "" || rp.Text == "" || rp.Author == nil || rp.Author.Username == "" {
		return nil, false
	}

	p := &Post{
		ID:        rp.ID,
		Text:      rp.Text,
		CreatedAt: rp.CreatedAt,
		Author: Author{
			Username: rp.Author.Username,
			Name:     rp.Author.Name,
		},
		AuthorID:     rp.AuthorID,
		ReplyCount:   rp.ReplyCount,
		RetweetCount: rp.RetweetCount,
		LikeCount:    rp.LikeCount,
		InReplyToID:  rp.InReplyToID,
	}

	// conversation_id defaults to the post's own id
	p.ConversationID = rp.ConversationID
	if p.ConversationID == "" {
		p.ConversationID = rp.ID
	}

	for _, m := range rp.Media {
		preview := m.PreviewURL
		if preview == "" {
			preview = m.URL
		}
		p.Media = append(p.Media, Media{
			Type:       m.Type,
			URL:        m.URL,
			Width:      m.Width,
			Height:     m.Height,
			PreviewURL: preview,
			VideoURL:   m.VideoURL,
			DurationMS: m.DurationMS,
		})
	}

	if rp.QuotedPost != nil {
		if q, ok := normalize(rp.QuotedPost); ok {
			p.QuotedPost = q
		}
	}

	return p, true
}

// FormatText returns the post text, optionally with quoted content appended.
func FormatText(p *Post, includeQuote bool) string {
	text := p.Text
	if includeQuote && p.QuotedPost != nil {
		text += "\n\nQuoted @" + p.QuotedPost.Author.Username + ": " + p.QuotedPost.Text
	}
	return text
}

// ContentLength returns the combined character length of the post text and
// its quoted text, used for pre-summarization threshold checks.
func ContentLength(p *Post) int {
	n := len(p.Text)
	if p.QuotedPost != nil {
		n += len(p.QuotedPost.Text)
	}
	return n
}

// EngagementScore weights retweets double since they indicate stronger
// signal than likes.
func EngagementScore(p *Post) int {
	return p.LikeCount + 2*p.RetweetCount + p.ReplyCount
}

// PermalinkURL returns the canonical x.com URL for a post.
func PermalinkURL(p *Post) string {
	return "https://x.com/" + p.Author.Username + "/status/" + p.ID
}
