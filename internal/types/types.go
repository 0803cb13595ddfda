package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// UnknownDate marks a post whose timestamp could not be determined.
// It is never a valid date.
const UnknownDate = "Unknown"

// DateLayout is the calendar-date encoding used in archives.
const DateLayout = "2006-01-02"

// Post represents one collected X post. Every field is always serialized so
// archive consumers can rely on a fixed schema.
type Post struct {
	ID          string `json:"id" yaml:"id"`
	Author      string `json:"author" yaml:"author"`
	ScrapedFrom string `json:"scraped_from" yaml:"scraped_from"`
	Date        string `json:"date" yaml:"date"`
	Text        string `json:"text" yaml:"text"`
	IsReply     bool   `json:"is_reply" yaml:"is_reply"`
	HasMedia    bool   `json:"has_media" yaml:"has_media"`
	IsRetweet   bool   `json:"is_retweet" yaml:"is_retweet"`
	URL         string `json:"url" yaml:"url"`
}

// Day returns the post's calendar date. ok is false for UnknownDate.
func (p Post) Day() (time.Time, bool) {
	return ParseDate(p.Date)
}

// IsReshare reports whether author and scraped_from name different accounts.
func IsReshare(author, scrapedFrom string) bool {
	return !strings.EqualFold(author, scrapedFrom)
}

// NormalizeDate reduces an ISO-8601-like datetime to its date portion.
// Anything that does not parse becomes UnknownDate.
func NormalizeDate(s string) string {
	d, ok := ParseDate(s)
	if !ok {
		return UnknownDate
	}
	return d.Format(DateLayout)
}

// ParseDate parses the date portion of s ("2024-05-01", "2024-05-01T12:00:00.000Z",
// "2024-05-01 12:00:00").
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	if s == "" || s == UnknownDate {
		return time.Time{}, false
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Mode selects how the target's posts are traversed.
type Mode string

const (
	// ModeProfile scrolls the target's timeline, newest first.
	ModeProfile Mode = "profile"
	// ModeSearch scrolls a live search restricted to the target.
	ModeSearch Mode = "search"
)

// StopKind selects which stop condition bounds a run.
type StopKind string

const (
	StopMaxCount   StopKind = "max_count"
	StopDateCutoff StopKind = "date_cutoff"
)

// StopCondition bounds a collection run.
type StopCondition struct {
	Kind     StopKind  `json:"kind" validate:"oneof=max_count date_cutoff"`
	MaxCount int       `json:"max_count,omitempty" validate:"gte=0"`
	Cutoff   time.Time `json:"cutoff,omitempty"`
}

// MaxCount returns a count-based stop condition.
func MaxCount(n int) StopCondition {
	return StopCondition{Kind: StopMaxCount, MaxCount: n}
}

// DateCutoff returns a date-based stop condition.
func DateCutoff(d time.Time) StopCondition {
	return StopCondition{Kind: StopDateCutoff, Cutoff: d}
}

// RunConfig is immutable for the duration of one collection run.
type RunConfig struct {
	Target  string        `json:"target" validate:"required,excludesall=/?#&"`
	Mode    Mode          `json:"mode" validate:"oneof=profile search"`
	Keyword string        `json:"keyword,omitempty"`
	Stop    StopCondition `json:"stop"`
}

// ErrInvalidRun is returned by Validate for unusable run configurations.
var ErrInvalidRun = errors.New("invalid run configuration")

var validate = validator.New()

// Validate checks the run configuration and normalizes the target in place.
func (r *RunConfig) Validate() error {
	r.Target = NormalizeTarget(r.Target)
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	switch r.Stop.Kind {
	case StopMaxCount:
		if r.Stop.MaxCount <= 0 {
			return fmt.Errorf("%w: max count must be positive", ErrInvalidRun)
		}
	case StopDateCutoff:
		if r.Stop.Cutoff.IsZero() {
			return fmt.Errorf("%w: cutoff date is required", ErrInvalidRun)
		}
	}
	return nil
}

// NormalizeTarget strips the leading @ and surrounding whitespace from a handle.
func NormalizeTarget(target string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(target), "@"))
}
