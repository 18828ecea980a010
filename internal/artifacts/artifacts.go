// Package artifacts persists per-run records under a date-partitioned
// directory tree so every digest can be audited after the fact: the raw
// fetched posts, the LLM pre-summaries, the final prompt, the digest text,
// and a metadata document for the run.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ibeckermayer/xdigest/internal/errs"
	"github.com/ibeckermayer/xdigest/internal/types"
)

// Meta is the per-run metadata document written alongside the artifacts.
type Meta struct {
	RunID         string `json:"run_id"`
	List          string `json:"list"`
	StartedAt     string `json:"started_at"`
	FinishedAt    string `json:"finished_at"`
	WindowStart   string `json:"window_start"`
	WindowEnd     string `json:"window_end"`
	TweetsFetched int    `json:"tweets_fetched"`
	TweetsUnique  int    `json:"tweets_unique"`
	Summaries     int    `json:"summaries"`
	ImagesSent    int    `json:"images_sent"`
	DigestMethod  string `json:"digest_method"` // "llm", "sparse", or "empty"
	Parts         int    `json:"parts"`
	Delivered     bool   `json:"delivered"`
	ErrorCode     string `json:"error_code,omitempty"`
}

// Writer stores run artifacts for a single list run.
type Writer struct {
	dir string
}

// NewWriter creates the artifact directory for a run and returns a Writer
// bound to it. The layout is {root}/{year}/{month}/week-NN/{date}/{list}.
func NewWriter(root, listName string, day time.Time) (*Writer, error) {
	day = day.UTC()
	_, week := day.ISOWeek()
	dir := filepath.Join(root,
		fmt.Sprintf("%04d", day.Year()),
		fmt.Sprintf("%02d", int(day.Month())),
		fmt.Sprintf("week-%02d", week),
		day.Format("2006-01-02"),
		listName,
	)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Wrap(errs.PermissionDenied, "cannot create artifact directory", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the run's artifact directory.
func (w *Writer) Dir() string {
	return w.dir
}

// WriteRawPosts stores the normalized post set as JSON.
func (w *Writer) WriteRawPosts(posts []types.Post) error {
	return w.writeJSON("tweets.json", posts)
}

// WriteSummaries stores the pre-summarization output keyed by post ID.
func (w *Writer) WriteSummaries(summaries map[string]string) error {
	if len(summaries) == 0 {
		return nil
	}
	return w.writeJSON("summaries.json", summaries)
}

// WritePrompt stores the exact payload sent to the digest LLM.
func (w *Writer) WritePrompt(prompt string) error {
	return w.write("prompt.md", []byte(prompt))
}

// WriteDigest stores the final digest text before splitting.
func (w *Writer) WriteDigest(digest string) error {
	return w.write("digest.md", []byte(digest))
}

// WriteMeta stores the run metadata document.
func (w *Writer) WriteMeta(meta Meta) error {
	return w.writeJSON("meta.json", meta)
}

func (w *Writer) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return w.write(name, data)
}

func (w *Writer) write(name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(w.dir, name), data, 0644); err != nil {
		return errs.Wrap(errs.PermissionDenied, "cannot write artifact "+name, err)
	}
	return nil
}
