// Package fetch wraps the external bird CLI, which handles X authentication
// and list-timeline retrieval. The CLI prints a JSON array of posts on
// stdout; errors surface on stderr and are mapped to structured codes.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/ibeckermayer/xdigest/internal/errs"
	"github.com/ibeckermayer/xdigest/internal/types"
)

// DefaultTimeout bounds a single bird invocation.
const DefaultTimeout = 120 * time.Second

// Fetcher runs the bird CLI to fetch list timelines.
type Fetcher struct {
	// Command is the bird executable name or path.
	Command string
	// EnvPath, when set, is passed to bird as its credentials file.
	EnvPath string
	// Timeout bounds each invocation. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewFetcher returns a Fetcher using the bird binary on PATH.
func NewFetcher(envPath string) *Fetcher {
	return &Fetcher{Command: "bird", EnvPath: envPath}
}

// Fetch retrieves posts for a list created after the since timestamp.
func (f *Fetcher) Fetch(ctx context.Context, listID string, since time.Time) ([]types.Post, error) {
	timeout := f.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"list-timeline", listID, "--json", "--since", since.UTC().Format(time.RFC3339)}
	if f.EnvPath != "" {
		args = append(args, "--env", f.EnvPath)
	}

	cmd := exec.CommandContext(ctx, f.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.FetchNetworkError, "bird timed out", ctx.Err())
		}
		return nil, mapStderr(stderr.String(), err)
	}

	posts, err := types.ParsePosts(stdout.Bytes())
	if err != nil {
		return nil, errs.Wrap(errs.FetchParseError, "bird returned invalid JSON", err)
	}
	return posts, nil
}

// CheckAuth reports whether bird's stored credentials are usable.
func (f *Fetcher) CheckAuth(ctx context.Context) bool {
	args := []string{"whoami"}
	if f.EnvPath != "" {
		args = append(args, "--env", f.EnvPath)
	}
	cmd := exec.CommandContext(ctx, f.Command, args...)
	return cmd.Run() == nil
}

// mapStderr classifies a failed bird run by its stderr output.
func mapStderr(stderr string, cause error) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429"):
		return errs.Wrap(errs.FetchRateLimited, "bird rate limited", cause)
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "authentication") || strings.Contains(lower, "401"):
		return errs.Wrap(errs.FetchAuthFailed, "bird authentication failed", cause)
	case strings.Contains(lower, "not found") || strings.Contains(lower, "invalid list"):
		return errs.Wrap(errs.FetchInvalidListID, "list not found", cause)
	case strings.Contains(lower, "network") || strings.Contains(lower, "connection"):
		return errs.Wrap(errs.FetchNetworkError, "bird network error", cause)
	}
	var exitErr *exec.ExitError
	if errors.As(cause, &exitErr) {
		return errs.Newf(errs.FetchCommandFailed, "bird exited with code %d: %s",
			exitErr.ExitCode(), strings.TrimSpace(stderr))
	}
	return errs.Wrap(errs.FetchCommandFailed, "bird failed to run", cause)
}
