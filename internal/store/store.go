package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/xdigest/internal/classify"
	"github.com/ibeckermayer/xdigest/internal/types"
)

// Store archives fetched posts and digest runs in SQLite so past windows
// can be inspected and re-fetched posts reuse the same row.
type Store struct {
	db *sql.DB
}

// New creates a Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		list_name TEXT NOT NULL,
		author_username TEXT NOT NULL,
		author_name TEXT,
		text TEXT NOT NULL,
		conversation_id TEXT,
		in_reply_to_id TEXT,
		post_type TEXT,
		posted_at TEXT,
		likes INTEGER,
		retweets INTEGER,
		replies INTEGER,
		fetched_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS digest_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		list_name TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		tweets_fetched INTEGER,
		tweets_unique INTEGER,
		method TEXT,
		parts INTEGER,
		delivered BOOLEAN,
		error_code TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_posts_list ON posts(list_name);
	CREATE INDEX IF NOT EXISTS idx_posts_conversation ON posts(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_runs_list ON digest_runs(list_name, started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SavePosts inserts or updates the fetched posts for a list. Engagement
// counts are refreshed on conflict; the original text is kept.
func (s *Store) SavePosts(listName string, posts []types.Post) error {
	now := time.Now().UTC()
	for i := range posts {
		p := &posts[i]
		_, err := s.db.Exec(`
			INSERT INTO posts (id, list_name, author_username, author_name, text,
				conversation_id, in_reply_to_id, post_type, posted_at,
				likes, retweets, replies, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				likes = excluded.likes,
				retweets = excluded.retweets,
				replies = excluded.replies,
				fetched_at = excluded.fetched_at
		`, p.ID, listName, p.Author.Username, p.Author.Name, p.Text,
			p.ConversationID, p.InReplyToID, string(classify.Classify(p)), p.CreatedAt,
			p.LikeCount, p.RetweetCount, p.ReplyCount, now)
		if err != nil {
			return err
		}
	}
	return nil
}

// Run is an archived digest run row.
type Run struct {
	RunID         string
	ListName      string
	StartedAt     time.Time
	FinishedAt    time.Time
	TweetsFetched int
	TweetsUnique  int
	Method        string
	Parts         int
	Delivered     bool
	ErrorCode     string
}

// RecordRun archives a completed digest run.
func (s *Store) RecordRun(r Run) error {
	_, err := s.db.Exec(`
		INSERT INTO digest_runs (run_id, list_name, started_at, finished_at,
			tweets_fetched, tweets_unique, method, parts, delivered, error_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.ListName, r.StartedAt, r.FinishedAt,
		r.TweetsFetched, r.TweetsUnique, r.Method, r.Parts, r.Delivered, r.ErrorCode)
	return err
}

// RecentRuns returns the most recent digest runs for a list, newest first.
func (s *Store) RecentRuns(listName string, limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, list_name, started_at, finished_at,
			tweets_fetched, tweets_unique, method, parts, delivered, error_code
		FROM digest_runs
		WHERE list_name = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, listName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		err := rows.Scan(
			&r.RunID, &r.ListName, &r.StartedAt, &r.FinishedAt,
			&r.TweetsFetched, &r.TweetsUnique, &r.Method, &r.Parts, &r.Delivered, &r.ErrorCode,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// PostCount returns the number of archived posts for a list.
func (s *Store) PostCount(listName string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM posts WHERE list_name = ?`, listName).Scan(&n)
	return n, err
}

// PostExists checks if a post ID is already archived
func (s *Store) PostExists(id string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM posts WHERE id = ?)`, id).Scan(&exists)
	return exists, err
}
