// Package snapshot replays saved X.com pages as a scraper.Session, so a run
// can be reproduced offline from HTML captured with the snapshot command.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/xarchive/internal/scraper"
)

// Session shows pages[i] after i scrolls; past the last page the last one stays.
type Session struct {
	pages   []*goquery.Document
	scrolls int
	url     string
}

// New builds a session from literal HTML pages.
func New(pages ...string) (*Session, error) {
	s := &Session{}
	for i, page := range pages {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %d: %w", i, err)
		}
		s.pages = append(s.pages, doc)
	}
	return s, nil
}

// Open loads every *.html file in dir, in lexical order.
func Open(dir string) (*Session, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no html snapshots in %s", dir)
	}
	sort.Strings(paths)

	pages := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot: %w", err)
		}
		pages = append(pages, string(data))
	}
	return New(pages...)
}

// URL returns the last navigated address.
func (s *Session) URL() string { return s.url }

func (s *Session) page() *goquery.Document {
	if len(s.pages) == 0 {
		return nil
	}
	return s.pages[min(s.scrolls, len(s.pages)-1)]
}

// Navigate rewinds to the first page.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.url = url
	s.scrolls = 0
	return nil
}

// WaitFor succeeds when the current page already contains selector.
func (s *Session) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := s.page()
	if doc == nil || doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%s: %w", selector, scraper.ErrNotFound)
	}
	return nil
}

func (s *Session) Elements(ctx context.Context, selector string) ([]scraper.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := s.page()
	if doc == nil {
		return nil, nil
	}

	var elements []scraper.Element
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		elements = append(elements, element{sel: sel})
	})
	return elements, nil
}

// ScrollBy advances to the next page.
func (s *Session) ScrollBy(ctx context.Context, _ int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.scrolls++
	return nil
}

type element struct {
	sel *goquery.Selection
}

func (e element) first(selector string) (*goquery.Selection, error) {
	if selector == "" {
		return e.sel, nil
	}
	found := e.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", selector, scraper.ErrNotFound)
	}
	return found, nil
}

func (e element) Attr(_ context.Context, selector, name string) (string, error) {
	found, err := e.first(selector)
	if err != nil {
		return "", err
	}
	v, ok := found.Attr(name)
	if !ok {
		return "", fmt.Errorf("%s[%s]: %w", selector, name, scraper.ErrNotFound)
	}
	return v, nil
}

func (e element) Text(_ context.Context, selector string) (string, error) {
	found, err := e.first(selector)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(found.Text()), nil
}

func (e element) Has(_ context.Context, selector string) (bool, error) {
	return e.sel.Find(selector).Length() > 0, nil
}
