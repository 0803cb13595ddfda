package scraper

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xarchive/internal/types"
)

func newTestCollector(s Session, store Persistence, clock Clock, rep Reporter) *Collector {
	return New(s, store,
		WithClock(clock),
		WithReporter(rep),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	)
}

func profileRun(stop types.StopCondition) types.RunConfig {
	return types.RunConfig{Target: "jack", Mode: types.ModeProfile, Stop: stop}
}

func ids(posts []types.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestCollect_DuplicateAndUnparsableDate(t *testing.T) {
	dup := post("jack", "1")
	dup.text = "second sighting"
	bad := post("jack", "2")
	bad.datetime = "not-a-date"

	session := &fakeSession{batches: [][]Element{batch(post("jack", "1"), dup, bad)}}
	store := &memoryStore{}
	c := newTestCollector(session, store, newFakeClock(), &recordingReporter{})

	res, err := c.Collect(context.Background(), profileRun(types.MaxCount(100)))
	require.NoError(t, err)

	require.Equal(t, []string{"1", "2"}, ids(res.Posts))
	require.Equal(t, "post 1", res.Posts[0].Text)
	require.Equal(t, "2025-06-01", res.Posts[0].Date)
	require.Equal(t, types.UnknownDate, res.Posts[1].Date)
	require.Equal(t, StatusStalled, res.Status)
	require.Len(t, store.checkpoints, 1)
}

func TestCollect_ZeroElements(t *testing.T) {
	session := &fakeSession{}
	store := &memoryStore{}
	c := newTestCollector(session, store, newFakeClock(), &recordingReporter{})

	res, err := c.Collect(context.Background(), profileRun(types.MaxCount(10)))
	require.NoError(t, err)
	require.Empty(t, res.Posts)
	require.Equal(t, StatusExhausted, res.Status)
	require.Equal(t, 1, res.Polls)
	require.Empty(t, store.checkpoints)
}

func TestCollect_EnumerationErrorStalls(t *testing.T) {
	session := &fakeSession{elementsErr: errors.New("target closed")}
	clock := newFakeClock()
	start := clock.Now()
	c := newTestCollector(session, &memoryStore{}, clock, &recordingReporter{})

	res, err := c.Collect(context.Background(), profileRun(types.MaxCount(10)))
	require.NoError(t, err)
	require.Equal(t, StatusStalled, res.Status)
	require.Empty(t, res.Posts)
	require.Greater(t, clock.Now().Sub(start), 45*time.Second)
	require.Positive(t, session.scrolls)
}

func TestCollect_RecoversFromEnumerationError(t *testing.T) {
	session := &fakeSession{
		batches:     [][]Element{batch(post("jack", "1"), post("jack", "2"))},
		elementsErr: context.DeadlineExceeded,
		failPolls:   1,
	}
	clock := newFakeClock()
	c := newTestCollector(session, &memoryStore{}, clock, &recordingReporter{})

	res, err := c.Collect(context.Background(), profileRun(types.MaxCount(2)))
	require.NoError(t, err)
	require.Equal(t, StatusLimitReached, res.Status)
	require.Equal(t, []string{"1", "2"}, ids(res.Posts))
	require.Equal(t, 2, res.Polls)

	// The failed poll took the idle path.
	require.Equal(t, []time.Duration{2 * time.Second}, clock.sleeps)
}

func TestCollect_CanceledDuringEnumeration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := &fakeSession{
		batches: [][]Element{
			batch(post("jack", "1")),
			batch(post("jack", "1"), post("jack", "2")),
		},
		onElements: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}
	c := newTestCollector(session, &memoryStore{}, newFakeClock(), &recordingReporter{})

	res, err := c.Collect(ctx, profileRun(types.MaxCount(100)))
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, res.Status)
	require.Equal(t, []string{"1"}, ids(res.Posts))
}

func TestCollect_MaxCountAcrossBatches(t *testing.T) {
	session := &fakeSession{batches: [][]Element{
		batch(post("jack", "1"), post("jack", "2")),
		batch(post("jack", "3"), post("jack", "4")),
		batch(post("jack", "5"), post("jack", "6"), post("jack", "7")),
	}}
	store := &memoryStore{}
	rep := &recordingReporter{}
	c := newTestCollector(session, store, newFakeClock(), rep)

	res, err := c.Collect(context.Background(), profileRun(types.MaxCount(5)))
	require.NoError(t, err)

	require.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(res.Posts))
	require.Equal(t, StatusLimitReached, res.Status)
	require.Equal(t, 3, res.Polls)
	require.Len(t, store.checkpoints, 2)
	require.Equal(t, []float64{0.4, 0.8, 1}, rep.fractions)
}

func TestCollect_DateCutoffProfile(t *testing.T) {
	session := &fakeSession{batches: [][]Element{batch(
		post("jack", "10").dated("2025-03-01"),
		post("jack", "9").dated("2025-01-01"),
		&fakeElement{href: "/jack/status/8"},
		post("jack", "7").dated("2024-12-31"),
		post("jack", "6").dated("2024-11-01"),
	)}}
	c := newTestCollector(session, &memoryStore{}, newFakeClock(), &recordingReporter{})

	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := c.Collect(context.Background(), profileRun(types.DateCutoff(cutoff)))
	require.NoError(t, err)

	require.Equal(t, []string{"10", "9", "8"}, ids(res.Posts))
	require.Equal(t, StatusCutoffReached, res.Status)
	for _, p := range res.Posts {
		if d, ok := p.Day(); ok {
			require.False(t, d.Before(cutoff), "post %s older than cutoff", p.ID)
		}
	}
}

func TestCollect_DateCutoffIgnoredInSearch(t *testing.T) {
	session := &fakeSession{batches: [][]Element{batch(
		post("jack", "10").dated("2025-03-01"),
		post("jack", "7").dated("2024-12-31"),
		post("jack", "6").dated("2023-01-01"),
	)}}
	c := newTestCollector(session, &memoryStore{}, newFakeClock(), &recordingReporter{})

	run := types.RunConfig{
		Target:  "jack",
		Mode:    types.ModeSearch,
		Keyword: "ai",
		Stop:    types.DateCutoff(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	res, err := c.Collect(context.Background(), run)
	require.NoError(t, err)

	require.Equal(t, []string{"10", "7", "6"}, ids(res.Posts))
	require.Equal(t, StatusStalled, res.Status)
	require.Equal(t, []string{"https://x.com/search?f=live&q=from%3Ajack+ai&src=typed_query"}, session.navigated)
}

func TestCollect_NavigationFailure(t *testing.T) {
	session := &fakeSession{waitErr: context.DeadlineExceeded}
	store := &memoryStore{}
	rep := &recordingReporter{}
	c := newTestCollector(session, store, newFakeClock(), rep)

	res, err := c.Collect(context.Background(), profileRun(types.MaxCount(10)))
	require.ErrorIs(t, err, ErrNavigation)
	require.Equal(t, StatusNavigationFailed, res.Status)
	require.Empty(t, res.Posts)
	require.Empty(t, store.checkpoints)
	require.Contains(t, rep.statuses, "Page load timeout for jack.")
}

func TestCollect_InvalidRun(t *testing.T) {
	c := newTestCollector(&fakeSession{}, &memoryStore{}, newFakeClock(), &recordingReporter{})
	_, err := c.Collect(context.Background(), profileRun(types.MaxCount(0)))
	require.ErrorIs(t, err, types.ErrInvalidRun)
}

func TestCollect_CheckpointFailureIsNotFatal(t *testing.T) {
	session := &fakeSession{batches: [][]Element{
		batch(post("jack", "1"), post("jack", "2")),
		batch(post("jack", "3"), post("jack", "4")),
	}}
	store := &memoryStore{err: errors.New("disk full")}
	c := newTestCollector(session, store, newFakeClock(), &recordingReporter{})

	res, err := c.Collect(context.Background(), profileRun(types.MaxCount(3)))
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3"}, ids(res.Posts))
	require.Equal(t, StatusLimitReached, res.Status)
}

func TestCollect_CheckpointHoldsFullSet(t *testing.T) {
	session := &fakeSession{batches: [][]Element{
		batch(post("jack", "1")),
		batch(post("jack", "1"), post("jack", "2")),
		batch(post("jack", "2"), post("jack", "3")),
	}}
	store := &memoryStore{}
	c := newTestCollector(session, store, newFakeClock(), &recordingReporter{})

	_, err := c.Collect(context.Background(), profileRun(types.MaxCount(100)))
	require.NoError(t, err)

	require.Len(t, store.checkpoints, 3)
	require.Equal(t, []string{"1"}, ids(store.checkpoints[0]))
	require.Equal(t, []string{"1", "2"}, ids(store.checkpoints[1]))
	require.Equal(t, []string{"1", "2", "3"}, ids(store.checkpoints[2]))
}

func TestCollect_StallTimeout(t *testing.T) {
	session := &fakeSession{batches: [][]Element{batch(post("jack", "1"))}}
	clock := newFakeClock()
	start := clock.Now()
	c := newTestCollector(session, &memoryStore{}, clock, &recordingReporter{})

	res, err := c.Collect(context.Background(), profileRun(types.MaxCount(100)))
	require.NoError(t, err)
	require.Equal(t, StatusStalled, res.Status)

	elapsed := clock.Now().Sub(start)
	require.Greater(t, elapsed, 45*time.Second)
	require.LessOrEqual(t, elapsed, 45*time.Second+4*time.Second+2*time.Second)

	// First sleep is the productive jitter, the rest are fixed idle waits.
	require.GreaterOrEqual(t, clock.sleeps[0], 2*time.Second)
	require.Less(t, clock.sleeps[0], 4*time.Second)
	for _, d := range clock.sleeps[1:] {
		require.Equal(t, 2*time.Second, d)
	}
}

func TestCollect_SkipsBrokenElements(t *testing.T) {
	session := &fakeSession{batches: [][]Element{batch(
		&fakeElement{broken: true},
		&fakeElement{href: "/jack/photo"},
		post("jack", "1"),
	)}}
	c := newTestCollector(session, &memoryStore{}, newFakeClock(), &recordingReporter{})

	res, err := c.Collect(context.Background(), profileRun(types.MaxCount(100)))
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, ids(res.Posts))
}

func TestCollect_ScrollErrorsAreTolerated(t *testing.T) {
	session := &fakeSession{
		batches:   [][]Element{batch(post("jack", "1"))},
		scrollErr: errors.New("evaluate failed"),
	}
	c := newTestCollector(session, &memoryStore{}, newFakeClock(), &recordingReporter{})

	res, err := c.Collect(context.Background(), profileRun(types.MaxCount(100)))
	require.NoError(t, err)
	require.Equal(t, StatusStalled, res.Status)
	require.Len(t, res.Posts, 1)
}

func TestCollect_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := &fakeSession{
		batches: [][]Element{
			batch(post("jack", "1"), post("jack", "2")),
			batch(post("jack", "3")),
		},
		onScroll: func(int) { cancel() },
	}
	c := newTestCollector(session, &memoryStore{}, newFakeClock(), &recordingReporter{})

	res, err := c.Collect(ctx, profileRun(types.MaxCount(100)))
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, res.Status)
	require.Equal(t, []string{"1", "2"}, ids(res.Posts))
}

func TestCollect_ReshareFlag(t *testing.T) {
	session := &fakeSession{batches: [][]Element{batch(post("elonmusk", "1"), post("JACK", "2"))}}
	c := newTestCollector(session, &memoryStore{}, newFakeClock(), &recordingReporter{})

	res, err := c.Collect(context.Background(), profileRun(types.MaxCount(2)))
	require.NoError(t, err)
	require.True(t, res.Posts[0].IsRetweet)
	require.False(t, res.Posts[1].IsRetweet)
	require.Equal(t, "jack", res.Posts[0].ScrapedFrom)
}

func TestCollect_ProgressWithoutCountTarget(t *testing.T) {
	var batches [][]Element
	for i := 0; i < 30; i++ {
		batches = append(batches, batch(
			post("jack", fmt.Sprint(2*i)).dated("2025-06-01"),
			post("jack", fmt.Sprint(2*i+1)).dated("2025-06-01"),
		))
	}
	session := &fakeSession{batches: batches}
	rep := &recordingReporter{}
	c := newTestCollector(session, &memoryStore{}, newFakeClock(), rep)

	cutoff := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.Collect(context.Background(), profileRun(types.DateCutoff(cutoff)))
	require.NoError(t, err)

	require.InDelta(t, 2.0/50, rep.fractions[0], 1e-9)
	for _, f := range rep.fractions {
		require.LessOrEqual(t, f, 1.0)
	}
	require.Equal(t, 1.0, rep.fractions[len(rep.fractions)-1])
}

func TestCollect_DedupAndDiscoveryOrder(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed+1))

		var batches [][]Element
		var want []string
		seen := make(map[string]bool)
		for i := 0; i < 20; i++ {
			var els []*fakeElement
			for j := 0; j < 5; j++ {
				id := fmt.Sprint(rng.IntN(20))
				els = append(els, post("jack", id))
				if !seen[id] {
					seen[id] = true
					want = append(want, id)
				}
			}
			batches = append(batches, batch(els...))
		}

		session := &fakeSession{batches: batches}
		c := newTestCollector(session, &memoryStore{}, newFakeClock(), &recordingReporter{})
		res, err := c.Collect(context.Background(), profileRun(types.MaxCount(1000)))
		require.NoError(t, err)
		require.Equal(t, want, ids(res.Posts), "seed %d", seed)
	}
}

func TestTargetURL(t *testing.T) {
	require.Equal(t, "https://x.com/jack", TargetURL(profileRun(types.MaxCount(1))))

	run := types.RunConfig{Target: "jack", Mode: types.ModeSearch}
	require.Equal(t, "https://x.com/search?f=live&q=from%3Ajack&src=typed_query", TargetURL(run))
}
