package scraper

import "github.com/ibeckermayer/xarchive/internal/types"

// defaultProgressTarget is the progress denominator for runs that are not
// bounded by a count.
const defaultProgressTarget = 50

// stopper evaluates a run's stop condition.
type stopper struct {
	cond types.StopCondition
	mode types.Mode
}

// countReached reports whether a set of n posts satisfies a MaxCount condition.
func (s stopper) countReached(n int) bool {
	return s.cond.Kind == types.StopMaxCount && n >= s.cond.MaxCount
}

// pastCutoff reports whether p is strictly older than the cutoff date.
// Search results are not chronological, so the cutoff only halts profile scrolls.
func (s stopper) pastCutoff(p types.Post) bool {
	if s.cond.Kind != types.StopDateCutoff || s.mode != types.ModeProfile {
		return false
	}
	day, ok := p.Day()
	if !ok {
		return false
	}
	cutoff, _ := types.ParseDate(s.cond.Cutoff.Format(types.DateLayout))
	return day.Before(cutoff)
}

// progress returns n over the run's target, capped at 1.
func (s stopper) progress(n, fallback int) float64 {
	target := fallback
	if s.cond.Kind == types.StopMaxCount {
		target = s.cond.MaxCount
	}
	if target <= 0 {
		target = defaultProgressTarget
	}
	return min(float64(n)/float64(target), 1.0)
}
