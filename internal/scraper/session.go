package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/ibeckermayer/xarchive/internal/types"
)

// ErrNotFound is returned by Element queries that match nothing.
var ErrNotFound = errors.New("element not found")

// Session is the live document a run traverses. Implementations may return
// empty results or errors at any point; the collector tolerates both.
type Session interface {
	// Navigate loads url in the current tab.
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector matches at least one element or timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// Elements enumerates the currently present elements matching selector.
	Elements(ctx context.Context, selector string) ([]Element, error)
	// ScrollBy scrolls the viewport down by dy pixels.
	ScrollBy(ctx context.Context, dy int) error
}

// Element is an opaque handle to one candidate post in the document.
type Element interface {
	// Attr reads attribute name of the first descendant matching selector.
	Attr(ctx context.Context, selector, name string) (string, error)
	// Text reads the text of the first descendant matching selector.
	// An empty selector reads the element's own text.
	Text(ctx context.Context, selector string) (string, error)
	// Has reports whether any descendant matches selector.
	Has(ctx context.Context, selector string) (bool, error)
}

// Persistence receives the accumulated set. WriteCheckpoint overwrites the
// run's in-progress file; WriteFinal writes the canonical archive.
type Persistence interface {
	WriteCheckpoint(target string, posts []types.Post) error
	WriteFinal(target string, posts []types.Post) (string, error)
}

// Reporter is the progress sink for a run.
type Reporter interface {
	// Progress receives the completed fraction in [0, 1].
	Progress(fraction float64)
	// Status receives a human-readable status line.
	Status(msg string)
}

// Clock abstracts wall-clock time and sleeping.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type nopReporter struct{}

func (nopReporter) Progress(float64) {}
func (nopReporter) Status(string)    {}
