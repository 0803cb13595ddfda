package archive

import (
	"strings"
	"time"

	"github.com/ibeckermayer/xarchive/internal/types"
)

// PageSizes are the supported results-per-page values.
var PageSizes = []int{10, 50, 100}

// Filter selects posts by keyword and inclusive date window. Zero bounds are open.
type Filter struct {
	Keyword string
	From    time.Time
	To      time.Time
}

// HasWindow reports whether either date bound is set.
func (f Filter) HasWindow() bool {
	return !f.From.IsZero() || !f.To.IsZero()
}

// Match reports whether p passes the filter. Posts with an unknown date never
// fall inside a date window.
func (f Filter) Match(p types.Post) bool {
	if f.Keyword != "" && !strings.Contains(strings.ToLower(p.Text), strings.ToLower(f.Keyword)) {
		return false
	}
	if !f.HasWindow() {
		return true
	}

	day, ok := p.Day()
	if !ok {
		return false
	}
	if !f.From.IsZero() && day.Before(truncateDay(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(truncateDay(f.To)) {
		return false
	}
	return true
}

// Apply returns the posts matching f, preserving order.
func Apply(posts []types.Post, f Filter) []types.Post {
	out := make([]types.Post, 0, len(posts))
	for _, p := range posts {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// DateRange returns the earliest and latest known dates in posts.
func DateRange(posts []types.Post) (first, last time.Time, ok bool) {
	for _, p := range posts {
		day, known := p.Day()
		if !known {
			continue
		}
		if !ok || day.Before(first) {
			first = day
		}
		if !ok || day.After(last) {
			last = day
		}
		ok = true
	}
	return first, last, ok
}

// Page is one page of results.
type Page struct {
	Posts   []types.Post
	Number  int // 1-based, clamped to [1, Pages]
	Pages   int // at least 1
	Total   int
	PerPage int
}

// Paginate returns page number of posts. perPage falls back to the smallest
// supported size when it is not one of PageSizes.
func Paginate(posts []types.Post, number, perPage int) Page {
	if !validPageSize(perPage) {
		perPage = PageSizes[0]
	}

	total := len(posts)
	pages := max(1, (total+perPage-1)/perPage)
	number = min(max(number, 1), pages)

	start := (number - 1) * perPage
	end := min(start+perPage, total)

	return Page{
		Posts:   posts[start:end],
		Number:  number,
		Pages:   pages,
		Total:   total,
		PerPage: perPage,
	}
}

func validPageSize(n int) bool {
	for _, size := range PageSizes {
		if n == size {
			return true
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
