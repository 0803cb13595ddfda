package scraper

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ibeckermayer/xarchive/internal/logger"
	"github.com/ibeckermayer/xarchive/internal/types"
)

// ErrNavigation is returned when the target page never shows a post.
var ErrNavigation = errors.New("navigation failed")

// Status describes why a run terminated.
type Status string

const (
	StatusLimitReached     Status = "limit_reached"
	StatusCutoffReached    Status = "cutoff_reached"
	StatusStalled          Status = "stalled"
	StatusExhausted        Status = "exhausted"
	StatusNavigationFailed Status = "navigation_failed"
	StatusCanceled         Status = "canceled"
)

// Result is the outcome of one collection run.
type Result struct {
	Posts  []types.Post
	Status Status
	Polls  int
}

// Timing holds the loop's delays and thresholds.
type Timing struct {
	NavigationTimeout time.Duration
	StallTimeout      time.Duration
	MinDelay          time.Duration // jitter lower bound after a productive poll
	MaxDelay          time.Duration // jitter upper bound after a productive poll
	IdleDelay         time.Duration // fixed delay after an unproductive poll
	ScrollStep        int
	IdleScrollStep    int
	ProgressTarget    int // progress denominator when not bounded by count
}

// DefaultTiming returns the delays used against the live site.
func DefaultTiming() Timing {
	return Timing{
		NavigationTimeout: 10 * time.Second,
		StallTimeout:      45 * time.Second,
		MinDelay:          2 * time.Second,
		MaxDelay:          4 * time.Second,
		IdleDelay:         2 * time.Second,
		ScrollStep:        1000,
		IdleScrollStep:    500,
		ProgressTarget:    defaultProgressTarget,
	}
}

// Collector runs the polling loop that turns a scrolling document into an
// ordered, deduplicated set of posts.
type Collector struct {
	session  Session
	store    Persistence
	reporter Reporter
	clock    Clock
	rng      *rand.Rand
	timing   Timing
}

// Option configures a Collector.
type Option func(*Collector)

// WithReporter sets the progress sink.
func WithReporter(r Reporter) Option {
	return func(c *Collector) { c.reporter = r }
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(c *Collector) { c.clock = clock }
}

// WithTiming overrides the default delays.
func WithTiming(t Timing) Option {
	return func(c *Collector) { c.timing = t }
}

// WithRand sets the jitter source.
func WithRand(rng *rand.Rand) Option {
	return func(c *Collector) { c.rng = rng }
}

// New creates a collector over session, checkpointing to store.
func New(session Session, store Persistence, opts ...Option) *Collector {
	c := &Collector{
		session:  session,
		store:    store,
		reporter: nopReporter{},
		clock:    realClock{},
		timing:   DefaultTiming(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run is the mutable state of a single Collect call.
type run struct {
	cfg            types.RunConfig
	stop           stopper
	set            *postSet
	lastProductive time.Time
	status         Status
	polls          int
}

// Collect runs the loop for cfg until a stop condition, a stall, an empty
// page or ctx cancellation. The caller writes the final archive.
func (c *Collector) Collect(ctx context.Context, cfg types.RunConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &run{
		cfg:  cfg,
		stop: stopper{cond: cfg.Stop, mode: cfg.Mode},
		set:  newPostSet(),
	}
	log := logger.With("target", cfg.Target, "mode", cfg.Mode)

	if err := c.navigate(ctx, cfg); err != nil {
		c.reporter.Status(fmt.Sprintf("Page load timeout for %s.", cfg.Target))
		log.Warn("navigation failed", "error", err)
		return &Result{Status: StatusNavigationFailed}, fmt.Errorf("%w: %s: %v", ErrNavigation, cfg.Target, err)
	}

	r.lastProductive = c.clock.Now()
	for r.status == "" {
		if ctx.Err() != nil {
			r.status = StatusCanceled
			break
		}
		c.step(ctx, r)
	}

	log.Info("run terminated", "status", r.status, "posts", r.set.Len(), "polls", r.polls)
	return &Result{Posts: r.set.Posts(), Status: r.status, Polls: r.polls}, nil
}

func (c *Collector) navigate(ctx context.Context, cfg types.RunConfig) error {
	target := TargetURL(cfg)
	if cfg.Mode == types.ModeSearch {
		c.reporter.Status(fmt.Sprintf("Navigating to search: %s...", searchQuery(cfg)))
	} else {
		c.reporter.Status(fmt.Sprintf("Navigating to profile: %s...", cfg.Target))
	}

	if err := c.session.Navigate(ctx, target); err != nil {
		return err
	}
	return c.session.WaitFor(ctx, WaitForTweets, c.timing.NavigationTimeout)
}

// step performs one poll and the decision that follows it.
func (c *Collector) step(ctx context.Context, r *run) {
	r.polls++

	// A failed enumeration is an unproductive poll; only the stall timeout
	// ends a run against an unresponsive page.
	elements, err := c.session.Elements(ctx, TweetArticle)
	if err != nil {
		if ctx.Err() != nil {
			r.status = StatusCanceled
			return
		}
		logger.Warn("enumerating posts failed", "target", r.cfg.Target, "error", err)
	}

	fresh := 0
	for _, el := range elements {
		post, err := Extract(ctx, el, r.cfg.Target)
		if err != nil {
			logger.Debug("skipping element", "error", err)
			continue
		}
		if r.set.Has(post.ID) {
			continue
		}
		if r.stop.pastCutoff(post) {
			c.reporter.Status(fmt.Sprintf("Reached date limit (%s). Stopping.", r.cfg.Stop.Cutoff.Format(types.DateLayout)))
			r.status = StatusCutoffReached
			return
		}

		r.set.Add(post)
		fresh++
		r.lastProductive = c.clock.Now()

		if r.stop.countReached(r.set.Len()) {
			c.reporter.Progress(1)
			c.reporter.Status(fmt.Sprintf("Reached limit of %d posts.", r.cfg.Stop.MaxCount))
			r.status = StatusLimitReached
			return
		}
	}

	switch {
	case fresh > 0:
		n := r.set.Len()
		if err := c.store.WriteCheckpoint(r.cfg.Target, r.set.Posts()); err != nil {
			logger.Warn("checkpoint failed", "target", r.cfg.Target, "posts", n, "error", err)
		}
		c.reporter.Progress(r.stop.progress(n, c.timing.ProgressTarget))
		c.reporter.Status(fmt.Sprintf("Collected %s posts...", humanize.Comma(int64(n))))
		c.advance(ctx, r, c.timing.ScrollStep, c.jitter())

	case err == nil && len(elements) == 0:
		c.reporter.Status("No posts on page. Stopping.")
		r.status = StatusExhausted

	case c.clock.Now().Sub(r.lastProductive) > c.timing.StallTimeout:
		c.reporter.Status(fmt.Sprintf("Timeout: no new posts found for %s.", c.timing.StallTimeout))
		r.status = StatusStalled

	default:
		c.advance(ctx, r, c.timing.IdleScrollStep, c.timing.IdleDelay)
	}
}

// advance scrolls the document and waits for it to render more posts.
func (c *Collector) advance(ctx context.Context, r *run, dy int, delay time.Duration) {
	if err := c.session.ScrollBy(ctx, dy); err != nil {
		logger.Warn("scroll failed", "target", r.cfg.Target, "error", err)
	}
	if err := c.clock.Sleep(ctx, delay); err != nil {
		r.status = StatusCanceled
	}
}

// jitter returns a random delay in [MinDelay, MaxDelay).
func (c *Collector) jitter() time.Duration {
	span := int64(c.timing.MaxDelay - c.timing.MinDelay)
	if span <= 0 {
		return c.timing.MinDelay
	}
	if c.rng != nil {
		return c.timing.MinDelay + time.Duration(c.rng.Int64N(span))
	}
	return c.timing.MinDelay + time.Duration(rand.Int64N(span))
}

// TargetURL returns the page a run starts from.
func TargetURL(cfg types.RunConfig) string {
	if cfg.Mode == types.ModeSearch {
		q := url.Values{}
		q.Set("q", searchQuery(cfg))
		q.Set("src", "typed_query")
		q.Set("f", "live")
		return BaseURL + "/search?" + q.Encode()
	}
	return BaseURL + "/" + url.PathEscape(cfg.Target)
}

func searchQuery(cfg types.RunConfig) string {
	return strings.TrimSpace("from:" + cfg.Target + " " + strings.TrimSpace(cfg.Keyword))
}
