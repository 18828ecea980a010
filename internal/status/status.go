// Package status manages the shared status.json file tracking per-list run
// metadata. Writes take an exclusive file lock and reads a shared lock so
// overlapping scheduled invocations never corrupt the file.
package status

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/ibeckermayer/xdigest/internal/errs"
)

// ListStatus is the per-list run bookkeeping block.
type ListStatus struct {
	LastRun         string `json:"last_run"`
	LastSuccess     string `json:"last_success"`
	ErrorCode       string `json:"error_code"`
	TweetsFetched   int    `json:"tweets_fetched"`
	TweetsProcessed int    `json:"tweets_processed"`
	DigestSent      bool   `json:"digest_sent"`
	RunCount        int    `json:"run_count"`
}

// Status is the full status document.
type Status struct {
	Lists       map[string]*ListStatus `json:"lists"`
	CreatedAt   string                 `json:"created_at"`
	LastUpdated string                 `json:"last_updated"`
}

// Store reads and writes the status file with file locking.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore creates a Store for the given status file path.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Load reads the status file under a shared lock. A missing file yields an
// empty default document; a corrupt file is a structured error.
func (s *Store) Load() (*Status, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, errs.Wrap(errs.PermissionDenied, "cannot create status directory", err)
	}

	locked, err := s.lock.TryRLock()
	if err != nil {
		return nil, errs.Wrap(errs.StatusFileLocked, "cannot acquire shared lock", err)
	}
	if !locked {
		return nil, errs.New(errs.StatusFileLocked, "status file locked by another process")
	}
	defer s.lock.Unlock() //nolint:errcheck

	return s.read()
}

// Update applies fn to the named list's status under an exclusive lock,
// creating the document and list entry as needed.
func (s *Store) Update(listName string, fn func(*ListStatus)) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errs.Wrap(errs.PermissionDenied, "cannot create status directory", err)
	}

	locked, err := s.lock.TryLock()
	if err != nil {
		return errs.Wrap(errs.StatusFileLocked, "cannot acquire exclusive lock", err)
	}
	if !locked {
		return errs.New(errs.StatusFileLocked, "status file locked by another process")
	}
	defer s.lock.Unlock() //nolint:errcheck

	st, err := s.read()
	if err != nil {
		// A corrupt file is replaced rather than blocking every future run.
		if !errs.HasCode(err, errs.StatusFileCorrupt) {
			return err
		}
		st = defaultStatus()
	}

	entry, ok := st.Lists[listName]
	if !ok {
		entry = &ListStatus{}
		st.Lists[listName] = entry
	}
	fn(entry)

	st.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		if os.IsPermission(err) {
			return errs.Wrap(errs.PermissionDenied, "cannot write status file", err)
		}
		return err
	}
	return nil
}

// read loads and validates the document. Callers hold the lock.
func (s *Store) read() (*Status, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultStatus(), nil
		}
		if os.IsPermission(err) {
			return nil, errs.Wrap(errs.PermissionDenied, "cannot read status file", err)
		}
		return nil, err
	}

	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errs.Wrap(errs.StatusFileCorrupt, "status file corrupted", err)
	}
	if st.Lists == nil {
		st.Lists = map[string]*ListStatus{}
	}
	return &st, nil
}

func defaultStatus() *Status {
	now := time.Now().UTC().Format(time.RFC3339)
	return &Status{
		Lists:       map[string]*ListStatus{},
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// ShouldRun reports whether a list is outside its idempotency window. A list
// with no recorded run, or an unparseable timestamp, is always allowed.
func ShouldRun(st *Status, listName string, window time.Duration) bool {
	entry, ok := st.Lists[listName]
	if !ok || entry.LastRun == "" {
		return true
	}
	lastRun, err := time.Parse(time.RFC3339, entry.LastRun)
	if err != nil {
		return true
	}
	return time.Since(lastRun) > window
}

// TimeWindow computes the fetch window for a list: from the last success
// (or 24 hours back when none is recorded) until now.
func TimeWindow(st *Status, listName string) (start, end time.Time) {
	end = time.Now().UTC()
	start = end.Add(-24 * time.Hour)

	entry, ok := st.Lists[listName]
	if !ok || entry.LastSuccess == "" {
		return start, end
	}
	if t, err := time.Parse(time.RFC3339, entry.LastSuccess); err == nil {
		start = t.UTC()
	}
	return start, end
}
