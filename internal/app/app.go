// Package app orchestrates a digest run: idempotency check, fetch window,
// classification, pre-summarization, image prioritization, digest generation,
// splitting, and delivery, with status and artifact bookkeeping at each
// boundary.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xdigest/internal/artifacts"
	"github.com/ibeckermayer/xdigest/internal/classify"
	"github.com/ibeckermayer/xdigest/internal/config"
	"github.com/ibeckermayer/xdigest/internal/delivery"
	"github.com/ibeckermayer/xdigest/internal/digest"
	"github.com/ibeckermayer/xdigest/internal/errs"
	"github.com/ibeckermayer/xdigest/internal/images"
	"github.com/ibeckermayer/xdigest/internal/llm"
	"github.com/ibeckermayer/xdigest/internal/presummary"
	"github.com/ibeckermayer/xdigest/internal/status"
	"github.com/ibeckermayer/xdigest/internal/store"
	"github.com/ibeckermayer/xdigest/internal/types"
)

// PostFetcher retrieves posts for a list since a timestamp.
type PostFetcher interface {
	Fetch(ctx context.Context, listID string, since time.Time) ([]types.Post, error)
}

// App wires the pipeline dependencies for digest runs.
type App struct {
	Config       *config.Config
	Log          *logrus.Logger
	Status       *status.Store
	Archive      *store.Store // optional, nil disables archiving
	Fetcher      PostFetcher
	LLM          llm.Provider
	Delivery     delivery.Provider
	Images       *images.Fetcher
	ArtifactRoot string // empty disables artifact writes
}

// RunOptions adjust a single run.
type RunOptions struct {
	Hours   int  // lookback override in hours, 0 uses the status window
	Force   bool // bypass the idempotency window
	DryRun  bool // generate but do not deliver
	Preview bool // fetch and classify only, no LLM calls
}

// Run executes the digest pipeline for one list.
func (a *App) Run(ctx context.Context, listName string, opts RunOptions) error {
	list, err := a.Config.ResolveList(listName)
	if err != nil {
		return err
	}
	if !list.Enabled {
		a.Log.WithField("list", listName).Info("list disabled, skipping")
		return nil
	}

	runID := uuid.NewString()
	log := a.Log.WithFields(logrus.Fields{"list": listName, "run_id": runID})
	startedAt := time.Now().UTC()

	st, err := a.Status.Load()
	if err != nil {
		return err
	}

	window := time.Duration(a.Config.IdempotencyWindowMinutes) * time.Minute
	if !opts.Force && !status.ShouldRun(st, listName, window) {
		log.WithField("window_minutes", a.Config.IdempotencyWindowMinutes).
			Info("within idempotency window, skipping")
		return nil
	}

	since, until := status.TimeWindow(st, listName)
	if opts.Hours > 0 {
		since = until.Add(-time.Duration(opts.Hours) * time.Hour)
	}
	log.WithFields(logrus.Fields{
		"since": since.Format(time.RFC3339),
		"until": until.Format(time.RFC3339),
	}).Info("fetching posts")

	posts, err := a.Fetcher.Fetch(ctx, list.ID, since)
	if err != nil {
		a.recordFailure(listName, err, log)
		return err
	}
	fetched := len(posts)
	log.WithField("count", fetched).Info("fetched posts")

	if a.Archive != nil {
		if err := a.Archive.SavePosts(listName, posts); err != nil {
			log.WithError(err).Warn("post archive write failed")
		}
	}

	deduped := classify.DedupeQuotes(posts)
	cats := classify.Categorize(deduped)
	threadStats := classify.GetThreadStats(classify.ReconstructThreads(deduped))

	if opts.Preview {
		fmt.Println(previewReport(list, fetched, len(deduped), cats, threadStats))
		return nil
	}

	var art *artifacts.Writer
	if a.ArtifactRoot != "" {
		art, err = artifacts.NewWriter(a.ArtifactRoot, listName, startedAt)
		if err != nil {
			log.WithError(err).Warn("artifact directory unavailable")
			art = nil
		}
	}
	if art != nil {
		if err := art.WriteRawPosts(deduped); err != nil {
			log.WithError(err).Warn("raw post artifact write failed")
		}
	}

	summaries := map[string]string{}
	if len(deduped) >= digest.MinPostsForLLM {
		results := presummary.Summarize(ctx, deduped, a.LLM, a.Config.Defaults.PreSummarization)
		for _, r := range results {
			if r.Summary != "" {
				summaries[r.Post.ID] = r.Summary
			}
		}
		log.WithField("count", len(summaries)).Info("pre-summarized posts")
	}

	selected := images.Prioritize(deduped, images.MaxImages, images.MaxImagesPerPost)
	method := digestMethod(len(deduped))

	var payload string
	if method == "llm" {
		payload = digest.BuildPayload(deduped, summaries, selected, list, startedAt)
		tokens := a.LLM.CountTokens(payload) + len(selected)*images.TokensPerImage
		tl := a.Config.Defaults.TokenLimits
		if tl.MaxInputTokens > 0 && tokens*100 >= tl.MaxInputTokens*tl.WarnAtPercent {
			log.WithFields(logrus.Fields{
				"tokens": tokens,
				"max":    tl.MaxInputTokens,
			}).Warn("prompt approaching input token limit")
		}
	}

	genOpts := digest.Options{List: list, GlobalPrompt: a.Config.Defaults.Prompt}
	text := digest.Generate(ctx, deduped, summaries, selected, genOpts, a.LLM, a.Images)

	maxLen := digest.MaxMessageLength
	if a.Delivery != nil {
		maxLen = a.Delivery.MaxMessageLength()
	}
	parts := digest.Split(text, maxLen, list.Sections)
	log.WithFields(logrus.Fields{"method": method, "parts": len(parts)}).Info("generated digest")

	if art != nil {
		if err := art.WriteSummaries(summaries); err != nil {
			log.WithError(err).Warn("summary artifact write failed")
		}
		if err := art.WriteDigest(text); err != nil {
			log.WithError(err).Warn("digest artifact write failed")
		}
		if payload != "" {
			if err := art.WritePrompt(payload); err != nil {
				log.WithError(err).Warn("prompt artifact write failed")
			}
		}
	}

	delivered := false
	var runErr error
	if opts.DryRun {
		fmt.Println(text)
		log.Info("dry run, skipping delivery")
	} else {
		recipient := list.Recipient
		if recipient == "" {
			recipient = delivery.DefaultRecipient(a.Config.Delivery)
		}
		runErr = delivery.SendDigest(ctx, parts, a.Delivery, recipient, a.Config.Retry, a.Log)
		delivered = runErr == nil
	}

	finishedAt := time.Now().UTC()
	a.recordOutcome(listName, fetched, len(deduped), delivered, runErr, log)

	if art != nil {
		meta := artifacts.Meta{
			RunID:         runID,
			List:          listName,
			StartedAt:     startedAt.Format(time.RFC3339),
			FinishedAt:    finishedAt.Format(time.RFC3339),
			WindowStart:   since.Format(time.RFC3339),
			WindowEnd:     until.Format(time.RFC3339),
			TweetsFetched: fetched,
			TweetsUnique:  len(deduped),
			Summaries:     len(summaries),
			ImagesSent:    len(selected),
			DigestMethod:  method,
			Parts:         len(parts),
			Delivered:     delivered,
			ErrorCode:     codeString(runErr),
		}
		if err := art.WriteMeta(meta); err != nil {
			log.WithError(err).Warn("meta artifact write failed")
		}
	}

	if a.Archive != nil {
		run := store.Run{
			RunID:         runID,
			ListName:      listName,
			StartedAt:     startedAt,
			FinishedAt:    finishedAt,
			TweetsFetched: fetched,
			TweetsUnique:  len(deduped),
			Method:        method,
			Parts:         len(parts),
			Delivered:     delivered,
			ErrorCode:     codeString(runErr),
		}
		if err := a.Archive.RecordRun(run); err != nil {
			log.WithError(err).Warn("run archive write failed")
		}
	}

	return runErr
}

// recordFailure updates the status store after a fetch failure.
func (a *App) recordFailure(listName string, cause error, log *logrus.Entry) {
	now := time.Now().UTC().Format(time.RFC3339)
	err := a.Status.Update(listName, func(ls *status.ListStatus) {
		ls.LastRun = now
		ls.RunCount++
		ls.DigestSent = false
		ls.ErrorCode = codeString(cause)
	})
	if err != nil {
		log.WithError(err).Warn("status update failed")
	}
}

// recordOutcome updates the status store after the pipeline completes. A
// successful delivery advances last_success so the next window starts here;
// an empty window that still delivered counts as success.
func (a *App) recordOutcome(listName string, fetched, unique int, delivered bool, cause error, log *logrus.Entry) {
	now := time.Now().UTC().Format(time.RFC3339)
	err := a.Status.Update(listName, func(ls *status.ListStatus) {
		ls.LastRun = now
		ls.RunCount++
		ls.TweetsFetched = fetched
		ls.TweetsProcessed = unique
		ls.DigestSent = delivered
		if delivered {
			ls.LastSuccess = now
			ls.ErrorCode = ""
		} else {
			ls.ErrorCode = codeString(cause)
		}
	})
	if err != nil {
		log.WithError(err).Warn("status update failed")
	}
}

func digestMethod(n int) string {
	switch {
	case n == 0:
		return "empty"
	case n < digest.MinPostsForLLM:
		return "sparse"
	default:
		return "llm"
	}
}

func codeString(err error) string {
	if err == nil {
		return ""
	}
	if code, ok := errs.CodeOf(err); ok {
		return string(code)
	}
	return "UNKNOWN"
}

// previewReport renders the classification stats shown by preview mode.
func previewReport(list config.ListSettings, fetched, unique int, cats classify.Categories, ts classify.ThreadStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s — preview\n\n", list.Emoji, list.DisplayName)
	fmt.Fprintf(&sb, "Fetched:     %d\n", fetched)
	fmt.Fprintf(&sb, "Unique:      %d (after quote dedupe)\n", unique)
	fmt.Fprintf(&sb, "Standalone:  %d\n", len(cats.Standalone))
	fmt.Fprintf(&sb, "Threads:     %d (%d multi-post)\n", ts.TotalThreads, ts.MultiPostThreads)
	fmt.Fprintf(&sb, "Quotes:      %d\n", len(cats.Quotes))
	fmt.Fprintf(&sb, "Replies:     %d\n", len(cats.Replies))
	fmt.Fprintf(&sb, "Retweets:    %d\n", len(cats.Retweets))
	fmt.Fprintf(&sb, "Complete threads: %d, partial: %d\n",
		ts.Complete, ts.PartialWithRoot+ts.PartialNoRoot)
	return sb.String()
}
