// Package images ranks post media under a token budget and prepares selected
// images for multimodal LLM calls.
package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/xdigest/internal/errs"
	"github.com/ibeckermayer/xdigest/internal/llm"
	"github.com/ibeckermayer/xdigest/internal/types"
)

// Token budget constants, measured against Gemini 2.0 Flash.
const (
	TokensPerImage   = 1900
	MaxImageTokens   = 30000
	MaxImages        = MaxImageTokens / TokensPerImage // ~15
	MaxImagesPerPost = 3                               // ensure variety across posts
)

// maxImageBytes caps downloads at 10MB.
const maxImageBytes = 10 * 1024 * 1024

// Selected is one chosen image, keyed to its post.
type Selected struct {
	PostID string
	URL    string
}

// prioritized carries ranking metadata during selection.
type prioritized struct {
	postID         string
	url            string
	mediaType      string
	engagement     int
	isVideoPreview bool
}

// Prioritize selects images by engagement. Per post, up to maxPerPost
// candidates are kept: photos by full-size URL, videos by preview URL,
// never the raw video URL. The pooled candidates are then capped at
// maxTotal, highest engagement first. Ties preserve input order.
func Prioritize(posts []types.Post, maxTotal, maxPerPost int) []Selected {
	var pool []prioritized

	for _, p := range posts {
		if len(p.Media) == 0 {
			continue
		}
		engagement := types.EngagementScore(&p)

		var candidates []prioritized
		for _, m := range p.Media {
			switch m.Type {
			case "photo":
				candidates = append(candidates, prioritized{
					postID:     p.ID,
					url:        m.URL,
					mediaType:  m.Type,
					engagement: engagement,
				})
			case "video":
				candidates = append(candidates, prioritized{
					postID:         p.ID,
					url:            m.PreviewURL,
					mediaType:      m.Type,
					engagement:     engagement,
					isVideoPreview: true,
				})
			}
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].engagement > candidates[j].engagement
		})
		if len(candidates) > maxPerPost {
			candidates = candidates[:maxPerPost]
		}
		pool = append(pool, candidates...)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].engagement > pool[j].engagement
	})
	if len(pool) > maxTotal {
		pool = pool[:maxTotal]
	}

	selected := make([]Selected, len(pool))
	for i, img := range pool {
		selected[i] = Selected{PostID: img.postID, URL: img.url}
	}
	return selected
}

// Fetcher downloads and validates images for LLM consumption.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher with the given per-request timeout.
// Zero means 30 seconds.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// FetchAndEncode downloads one image and returns it as inline data.
func (f *Fetcher) FetchAndEncode(ctx context.Context, url string) (llm.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return llm.Image{}, errs.Wrap(errs.ImageDownloadFailed, "invalid image URL", err)
	}
	req.Header.Set("User-Agent", "xdigest/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return llm.Image{}, errs.Wrap(errs.ImageDownloadFailed, fmt.Sprintf("fetching %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return llm.Image{}, errs.Newf(errs.ImageDownloadFailed, "HTTP %d for %s", resp.StatusCode, url)
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return llm.Image{}, errs.Newf(errs.ImageInvalidFormat, "not an image: %s", mimeType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return llm.Image{}, errs.Wrap(errs.ImageDownloadFailed, "reading image body", err)
	}
	if len(data) > maxImageBytes {
		return llm.Image{}, errs.Newf(errs.ImageTooLarge, "image exceeds %d bytes", maxImageBytes)
	}

	return llm.Image{MIMEType: mimeType, Data: data}, nil
}

// FetchAll downloads the selected images concurrently, preserving selection
// order. Individual failures are skipped; a bad image never fails the
// digest.
func (f *Fetcher) FetchAll(ctx context.Context, selected []Selected) []llm.Image {
	results := make([]*llm.Image, len(selected))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, sel := range selected {
		i, sel := i, sel
		g.Go(func() error {
			img, err := f.FetchAndEncode(ctx, sel.URL)
			if err != nil {
				return nil // skip failed images
			}
			results[i] = &img
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines never return errors

	images := make([]llm.Image, 0, len(selected))
	for _, r := range results {
		if r != nil {
			images = append(images, *r)
		}
	}
	return images
}

// DescribeOverflow generates one-line text descriptions for images that did
// not fit the token budget, one LLM call per image. Failures degrade to a
// fixed placeholder.
func (f *Fetcher) DescribeOverflow(ctx context.Context, urls []string, provider llm.Provider) []string {
	descriptions := make([]string, 0, len(urls))
	for _, url := range urls {
		img, err := f.FetchAndEncode(ctx, url)
		if err != nil {
			descriptions = append(descriptions, "Image unavailable")
			continue
		}

		prompt := "Describe this image in 1-2 sentences. Focus on the key visual information."
		desc, err := provider.Generate(ctx, prompt, "", []llm.Image{img})
		if err != nil {
			descriptions = append(descriptions, "Image unavailable")
			continue
		}
		descriptions = append(descriptions, strings.TrimSpace(desc))
	}
	return descriptions
}

// Stats summarizes media present in a batch.
type Stats struct {
	TotalPhotos    int `json:"total_photos"`
	TotalVideos    int `json:"total_videos"`
	PostsWithMedia int `json:"posts_with_media"`
}

// GetStats counts photos, videos, and posts carrying media.
func GetStats(posts []types.Post) Stats {
	var s Stats
	for _, p := range posts {
		if len(p.Media) == 0 {
			continue
		}
		s.PostsWithMedia++
		for _, m := range p.Media {
			switch m.Type {
			case "photo":
				s.TotalPhotos++
			case "video":
				s.TotalVideos++
			}
		}
	}
	return s
}
