package store

import "time"

// Run is one catalogued collection run.
type Run struct {
	ID          int64     `json:"id"`
	Target      string    `json:"target"`
	Mode        string    `json:"mode"`
	Keyword     string    `json:"keyword"`
	Status      string    `json:"status"`
	PostCount   int       `json:"post_count"`
	NewPosts    int       `json:"new_posts"`
	ArchivePath string    `json:"archive_path"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
