package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/xarchive/internal/logger"
	"github.com/ibeckermayer/xarchive/internal/scraper"
)

// Config selects how a browser session is obtained.
type Config struct {
	// DebuggerURL of an already running Chrome (--remote-debugging-port).
	// Empty launches a local browser described by Launch.
	DebuggerURL      string
	Launch           Launch
	PageLoadTimeout  time.Duration
	OperationTimeout time.Duration
}

// Session drives one browser tab through chromedp.
type Session struct {
	ctx context.Context
	cfg Config
}

// Connect attaches to the configured browser and opens a tab. The returned
// cancel func closes the tab (and the browser, if it was launched here).
func Connect(ctx context.Context, cfg Config) (*Session, context.CancelFunc, error) {
	if cfg.PageLoadTimeout == 0 {
		cfg.PageLoadTimeout = 30 * time.Second
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = 5 * time.Second
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if cfg.DebuggerURL != "" {
		logger.Debug("attaching to running browser", "url", cfg.DebuggerURL)
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.DebuggerURL)
	} else {
		logger.Debug("launching browser", "headless", cfg.Launch.Headless, "profile", cfg.Launch.UserDataDir)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, Options(cfg.Launch)...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// The first Run starts (or attaches to) the browser; it must not carry a
	// timeout or the browser dies with it.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Session{ctx: browserCtx, cfg: cfg}, cancel, nil
}

func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	// Tie the tab operation to the caller's cancellation as well.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(opCtx, actions...)
}

// Navigate loads url in the session's tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.cfg.PageLoadTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// WaitFor blocks until selector is present or timeout elapses.
func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// Elements returns the nodes currently matching selector.
func (s *Session) Elements(ctx context.Context, selector string) ([]scraper.Element, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, s.cfg.OperationTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", selector, err)
	}

	elements := make([]scraper.Element, len(nodes))
	for i, n := range nodes {
		elements[i] = &element{session: s, node: n}
	}
	return elements, nil
}

// ScrollBy scrolls the page down
func (s *Session) ScrollBy(ctx context.Context, dy int) error {
	return s.run(ctx, s.cfg.OperationTimeout,
		chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, dy), nil),
	)
}

// HTML returns the serialized document, for saving replayable snapshots.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.cfg.OperationTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page html: %w", err)
	}
	return html, nil
}

// element is a post node; descendant queries are scoped to it.
type element struct {
	session *Session
	node    *cdp.Node
}

func (e *element) first(ctx context.Context, selector string) (*cdp.Node, error) {
	if selector == "" {
		return e.node, nil
	}

	var nodes []*cdp.Node
	err := e.session.run(ctx, e.session.cfg.OperationTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.FromNode(e.node), chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%s: %w", selector, scraper.ErrNotFound)
	}
	return nodes[0], nil
}

func (e *element) Attr(ctx context.Context, selector, name string) (string, error) {
	n, err := e.first(ctx, selector)
	if err != nil {
		return "", err
	}

	var value string
	var ok bool
	err = e.session.run(ctx, e.session.cfg.OperationTimeout,
		chromedp.AttributeValue([]cdp.NodeID{n.NodeID}, name, &value, &ok, chromedp.ByNodeID),
	)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s[%s]: %w", selector, name, scraper.ErrNotFound)
	}
	return value, nil
}

func (e *element) Text(ctx context.Context, selector string) (string, error) {
	n, err := e.first(ctx, selector)
	if err != nil {
		return "", err
	}

	var text string
	err = e.session.run(ctx, e.session.cfg.OperationTimeout,
		chromedp.Text([]cdp.NodeID{n.NodeID}, &text, chromedp.ByNodeID),
	)
	return text, err
}

func (e *element) Has(ctx context.Context, selector string) (bool, error) {
	_, err := e.first(ctx, selector)
	if errors.Is(err, scraper.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
