package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ibeckermayer/xarchive/internal/types"
)

// fakeElement serves canned field values; an empty field is reported as missing.
type fakeElement struct {
	href     string
	text     string
	datetime string
	own      string
	media    bool
	broken   bool // every query fails
}

func post(author, id string) *fakeElement {
	return &fakeElement{
		href:     fmt.Sprintf("/%s/status/%s", author, id),
		text:     "post " + id,
		datetime: "2025-06-01T10:00:00.000Z",
	}
}

func (e *fakeElement) dated(day string) *fakeElement {
	e.datetime = day + "T10:00:00.000Z"
	return e
}

var errBroken = errors.New("node detached")

func (e *fakeElement) Attr(_ context.Context, selector, name string) (string, error) {
	if e.broken {
		return "", errBroken
	}
	var v string
	switch {
	case selector == TweetLink && name == "href":
		v = e.href
	case selector == TweetTime && name == "datetime":
		v = e.datetime
	}
	if v == "" {
		return "", fmt.Errorf("%s[%s]: %w", selector, name, ErrNotFound)
	}
	return v, nil
}

func (e *fakeElement) Text(_ context.Context, selector string) (string, error) {
	if e.broken {
		return "", errBroken
	}
	switch selector {
	case TweetText:
		if e.text == "" {
			return "", ErrNotFound
		}
		return e.text, nil
	case "":
		return strings.TrimSpace(e.own + " " + e.text), nil
	}
	return "", ErrNotFound
}

func (e *fakeElement) Has(_ context.Context, selector string) (bool, error) {
	if e.broken {
		return false, errBroken
	}
	return selector == TweetMedia && e.media, nil
}

// fakeSession shows batches[i] after i scrolls. Past the last batch it keeps
// showing the last one.
type fakeSession struct {
	batches     [][]Element
	scrolls     int
	navigated   []string
	waitErr     error
	elementsErr error
	failPolls   int // the first failPolls enumerations return elementsErr
	polls       int
	onElements  func(n int)
	scrollErr   error
	onScroll    func(n int)
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.navigated = append(s.navigated, url)
	return nil
}

func (s *fakeSession) WaitFor(context.Context, string, time.Duration) error {
	return s.waitErr
}

func (s *fakeSession) Elements(ctx context.Context, _ string) ([]Element, error) {
	s.polls++
	if s.onElements != nil {
		s.onElements(s.polls)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if s.elementsErr != nil && (s.failPolls == 0 || s.polls <= s.failPolls) {
		return nil, s.elementsErr
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	return s.batches[min(s.scrolls, len(s.batches)-1)], nil
}

func (s *fakeSession) ScrollBy(context.Context, int) error {
	s.scrolls++
	if s.onScroll != nil {
		s.onScroll(s.scrolls)
	}
	return s.scrollErr
}

func batch(els ...*fakeElement) []Element {
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out
}

// fakeClock advances only when slept on.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// memoryStore records every checkpoint.
type memoryStore struct {
	checkpoints [][]types.Post
	final       []types.Post
	err         error
}

func (m *memoryStore) WriteCheckpoint(_ string, posts []types.Post) error {
	if m.err != nil {
		return m.err
	}
	m.checkpoints = append(m.checkpoints, posts)
	return nil
}

func (m *memoryStore) WriteFinal(target string, posts []types.Post) (string, error) {
	m.final = posts
	return target + "_archive.json", nil
}

type recordingReporter struct {
	fractions []float64
	statuses  []string
}

func (r *recordingReporter) Progress(f float64) { r.fractions = append(r.fractions, f) }
func (r *recordingReporter) Status(msg string)  { r.statuses = append(r.statuses, msg) }
