// Package classify groups posts into conversation threads, classifies post
// types, detects thread completeness, and deduplicates quoted content.
package classify

import (
	"sort"
	"strings"
	"time"

	"github.com/ibeckermayer/xdigest/internal/types"
)

// PostType classifies a single post.
type PostType string

const (
	Standalone PostType = "standalone"
	Thread     PostType = "thread"
	Quote      PostType = "quote"
	Reply      PostType = "reply"
	Retweet    PostType = "retweet"
)

// Completeness describes how much of a thread is present in the batch.
type Completeness string

const (
	Complete        Completeness = "complete"
	PartialWithRoot Completeness = "partial_with_root"
	PartialNoRoot   Completeness = "partial_no_root"
)

// Classify determines a post's type. Precedence is fixed: retweet prefix
// beats quote, quote beats reply. True thread membership requires batch
// context and is resolved by Categorize.
func Classify(p *types.Post) PostType {
	if strings.HasPrefix(p.Text, "RT @") {
		return Retweet
	}
	if p.QuotedPost != nil {
		return Quote
	}
	if p.InReplyToID != "" {
		return Reply
	}
	return Standalone
}

// ReconstructThreads groups posts by conversation ID and sorts each group
// ascending by parsed timestamp. If any member's timestamp fails to parse,
// that group keeps its original relative order; sorting failure never aborts
// processing. Single-member groups are valid degenerate threads.
func ReconstructThreads(posts []types.Post) map[string][]types.Post {
	threads := make(map[string][]types.Post)
	for _, p := range posts {
		threads[p.ConversationID] = append(threads[p.ConversationID], p)
	}

	for convID, members := range threads {
		times := make([]time.Time, len(members))
		parseable := true
		for i, p := range members {
			t, err := types.ParseCreatedAt(p.CreatedAt)
			if err != nil {
				parseable = false
				break
			}
			times[i] = t
		}
		if !parseable {
			continue
		}

		sorted := make([]types.Post, len(members))
		copy(sorted, members)
		idx := make(map[string]time.Time, len(members))
		for i, p := range members {
			idx[p.ID] = times[i]
		}
		sort.SliceStable(sorted, func(i, j int) bool {
			return idx[sorted[i].ID].Before(idx[sorted[j].ID])
		})
		threads[convID] = sorted
	}

	return threads
}

// ThreadCompleteness reports whether a thread has its root and an unbroken
// reply chain. The check is purely thread-local: a reply to a post outside
// the thread's own id set always registers as a gap, even if that post exists
// elsewhere in the batch.
func ThreadCompleteness(thread []types.Post) Completeness {
	if len(thread) <= 1 {
		return Complete
	}

	hasRoot := false
	ids := make(map[string]bool, len(thread))
	for _, p := range thread {
		ids[p.ID] = true
		if p.ID == p.ConversationID {
			hasRoot = true
		}
	}

	if !hasRoot {
		return PartialNoRoot
	}

	for _, p := range thread {
		if p.InReplyToID != "" && !ids[p.InReplyToID] {
			return PartialWithRoot
		}
	}
	return Complete
}

// DedupeQuotes removes posts whose content is already embedded in another
// post's quote within the same batch. If A quotes B and both are present,
// B is dropped and A keeps its quote. Quoting something outside the batch
// removes nothing.
func DedupeQuotes(posts []types.Post) []types.Post {
	inBatch := make(map[string]bool, len(posts))
	for _, p := range posts {
		inBatch[p.ID] = true
	}

	quoted := make(map[string]bool)
	for _, p := range posts {
		if p.QuotedPost != nil && inBatch[p.QuotedPost.ID] {
			quoted[p.QuotedPost.ID] = true
		}
	}

	kept := make([]types.Post, 0, len(posts))
	for _, p := range posts {
		if !quoted[p.ID] {
			kept = append(kept, p)
		}
	}
	return kept
}

// Categories buckets posts for downstream processing. Threads holds every
// multi-member conversation; the scalar buckets hold single-member
// conversations partitioned by Classify.
type Categories struct {
	Standalone []types.Post
	Threads    [][]types.Post
	Quotes     []types.Post
	Replies    []types.Post
	Retweets   []types.Post
}

// Categorize reconstructs threads first, then partitions. A reply whose
// conversation has two or more members in the batch surfaces as a thread
// member, not an isolated reply. Output order follows first appearance of
// each conversation in the input.
func Categorize(posts []types.Post) Categories {
	threads := ReconstructThreads(posts)

	var cats Categories
	seen := make(map[string]bool)
	for _, p := range posts {
		if seen[p.ConversationID] {
			continue
		}
		seen[p.ConversationID] = true

		members := threads[p.ConversationID]
		if len(members) > 1 {
			cats.Threads = append(cats.Threads, members)
			continue
		}

		single := members[0]
		switch Classify(&single) {
		case Quote:
			cats.Quotes = append(cats.Quotes, single)
		case Reply:
			cats.Replies = append(cats.Replies, single)
		case Retweet:
			cats.Retweets = append(cats.Retweets, single)
		default:
			cats.Standalone = append(cats.Standalone, single)
		}
	}

	return cats
}

// ThreadStats summarizes a thread reconstruction pass.
type ThreadStats struct {
	TotalThreads     int `json:"total_threads"`
	SinglePosts      int `json:"single_posts"`
	MultiPostThreads int `json:"multi_post_threads"`
	TotalPosts       int `json:"total_posts"`
	Complete         int `json:"complete_threads"`
	PartialWithRoot  int `json:"partial_with_root"`
	PartialNoRoot    int `json:"partial_no_root"`
}

// GetThreadStats computes counts over reconstructed threads.
func GetThreadStats(threads map[string][]types.Post) ThreadStats {
	var stats ThreadStats
	stats.TotalThreads = len(threads)

	for _, thread := range threads {
		stats.TotalPosts += len(thread)
		if len(thread) == 1 {
			stats.SinglePosts++
		} else {
			stats.MultiPostThreads++
		}
		switch ThreadCompleteness(thread) {
		case Complete:
			stats.Complete++
		case PartialWithRoot:
			stats.PartialWithRoot++
		case PartialNoRoot:
			stats.PartialNoRoot++
		}
	}

	return stats
}
