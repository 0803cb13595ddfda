// Package archive reads persisted post archives, repairing records written
// by older versions so every post carries the full schema.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ibeckermayer/xarchive/internal/store"
	"github.com/ibeckermayer/xarchive/internal/types"
)

// Unknown fills identity fields that cannot be recovered from a record.
const Unknown = "Unknown"

// Archive is one loaded archive file.
type Archive struct {
	Path    string
	Target  string
	ModTime time.Time
	Posts   []types.Post
}

// Record is a loosely typed archive entry as found on disk.
type Record map[string]any

// Load reads and normalizes the archive at path. The file is never modified.
func Load(path string) (*Archive, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	target := TargetFromPath(path)
	posts, err := Parse(data, target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	return &Archive{
		Path:    path,
		Target:  target,
		ModTime: info.ModTime(),
		Posts:   posts,
	}, nil
}

// Parse decodes a JSON array of records and normalizes each one. target
// fills scraped_from for records that lack it.
func Parse(data []byte, target string) ([]types.Post, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to parse archive: %w", err)
	}

	posts := make([]types.Post, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		posts = append(posts, Normalize(rec, target))
	}
	return posts, nil
}

// TargetFromPath infers the scraped account from an archive filename
// ("jack_archive.json", "autosave_jack.json").
func TargetFromPath(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "_archive"); i > 0 {
		return base[:i]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimPrefix(base, store.CheckpointPrefix)
}

// Normalize converts rec into a complete post. It never fails and is
// idempotent: normalizing ToRecord(Normalize(rec)) yields the same post.
func Normalize(rec Record, target string) types.Post {
	p := types.Post{
		URL:  rec.str("url"),
		Text: rec.str("text"),
	}

	p.Date = types.NormalizeDate(rec.str("date"))
	if p.Date == types.UnknownDate {
		p.Date = types.NormalizeDate(rec.str("timestamp"))
	}

	p.Author = firstNonEmpty(rec.str("author"), rec.str("username"), authorFromURL(p.URL), Unknown)
	p.ID = firstNonEmpty(rec.str("id"), idFromURL(p.URL), Unknown)
	p.ScrapedFrom = firstNonEmpty(rec.str("scraped_from"), target)

	p.IsReply = rec.flag("is_reply")
	p.HasMedia = rec.flag("has_media")
	if _, ok := rec["is_retweet"]; ok {
		p.IsRetweet = rec.flag("is_retweet")
	} else {
		p.IsRetweet = types.IsReshare(p.Author, p.ScrapedFrom)
	}

	return p
}

// ToRecord returns p in its on-disk shape.
func ToRecord(p types.Post) Record {
	return Record{
		"id":           p.ID,
		"author":       p.Author,
		"scraped_from": p.ScrapedFrom,
		"date":         p.Date,
		"text":         p.Text,
		"is_reply":     p.IsReply,
		"has_media":    p.HasMedia,
		"is_retweet":   p.IsRetweet,
		"url":          p.URL,
	}
}

func (r Record) str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func (r Record) flag(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case float64:
		return v != 0
	}
	return false
}

// urlSegments splits a permalink's path ("https://x.com/jack/status/1" ->
// [jack status 1]).
func urlSegments(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func authorFromURL(raw string) string {
	segs := urlSegments(raw)
	if len(segs) == 0 {
		return ""
	}
	return segs[0]
}

func idFromURL(raw string) string {
	segs := urlSegments(raw)
	for i, seg := range segs {
		if seg == "status" && i+1 < len(segs) {
			return segs[i+1]
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
