package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/xarchive/internal/types"
)

// Catalog indexes runs and the posts they collected in SQLite, so history
// survives archives being overwritten by later runs against the same target.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens (creating if needed) the catalog at dbPath.
func OpenCatalog(dbPath string) (*Catalog, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate catalog: %w", err)
	}

	return c, nil
}

// Close closes the database connection
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		mode TEXT NOT NULL,
		keyword TEXT,
		status TEXT NOT NULL,
		post_count INTEGER NOT NULL,
		new_posts INTEGER NOT NULL DEFAULT 0,
		archive_path TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		author TEXT NOT NULL,
		scraped_from TEXT NOT NULL,
		date TEXT NOT NULL,
		text TEXT NOT NULL,
		is_reply BOOLEAN,
		has_media BOOLEAN,
		is_retweet BOOLEAN,
		url TEXT,
		first_seen_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
	CREATE INDEX IF NOT EXISTS idx_posts_scraped_from ON posts(scraped_from);
	CREATE INDEX IF NOT EXISTS idx_posts_date ON posts(date);
	`

	_, err := c.db.Exec(schema)
	return err
}

// RecordRun inserts r and sets its ID.
func (c *Catalog) RecordRun(r *Run) error {
	res, err := c.db.Exec(`
		INSERT INTO runs (target, mode, keyword, status, post_count, new_posts,
			archive_path, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Target, r.Mode, r.Keyword, r.Status, r.PostCount, r.NewPosts,
		r.ArchivePath, r.StartedAt.UTC(), r.FinishedAt.UTC())
	if err != nil {
		return err
	}

	r.ID, err = res.LastInsertId()
	return err
}

// SavePosts indexes posts, keeping the first sighting of each id. It returns
// how many posts were not already known.
func (c *Catalog) SavePosts(posts []types.Post, seenAt time.Time) (int, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO posts (id, author, scraped_from, date, text,
			is_reply, has_media, is_retweet, url, first_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range posts {
		res, err := stmt.Exec(p.ID, p.Author, p.ScrapedFrom, p.Date, p.Text,
			p.IsReply, p.HasMedia, p.IsRetweet, p.URL, seenAt.UTC())
		if err != nil {
			return 0, fmt.Errorf("failed to index post %s: %w", p.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListRuns returns the most recent runs, newest first. An empty target lists all.
func (c *Catalog) ListRuns(target string, limit int) ([]Run, error) {
	rows, err := c.db.Query(`
		SELECT id, target, mode, keyword, status, post_count, new_posts,
			archive_path, started_at, finished_at
		FROM runs
		WHERE ? = '' OR target = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, target, target, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var keyword, archivePath sql.NullString
		err := rows.Scan(&r.ID, &r.Target, &r.Mode, &keyword, &r.Status, &r.PostCount,
			&r.NewPosts, &archivePath, &r.StartedAt, &r.FinishedAt)
		if err != nil {
			return nil, err
		}
		r.Keyword = keyword.String
		r.ArchivePath = archivePath.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountPosts returns how many distinct posts were collected under target.
func (c *Catalog) CountPosts(target string) (int, error) {
	var n int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM posts WHERE scraped_from = ?`, target).Scan(&n)
	return n, err
}
