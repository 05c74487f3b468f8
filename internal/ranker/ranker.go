package ranker

import (
	"sort"
	"time"

	"github.com/MimeLyc/sonomancer/internal/apperr"
	"github.com/MimeLyc/sonomancer/internal/catalog"
	"github.com/MimeLyc/sonomancer/internal/mood"
	"github.com/MimeLyc/sonomancer/pkg/log"
)

var logger = log.Component("ranker")

const (
	DefaultMinDuration = 10 * time.Minute
	DefaultTargetMin   = time.Hour
	DefaultTargetMax   = 3 * time.Hour
	DefaultMaxDuration = 12 * time.Hour
)

// Ranker picks the single best candidate for a mood. It holds no mutable
// state and is safe for concurrent use.
type Ranker struct {
	minDuration time.Duration
	targetMin   time.Duration
	targetMax   time.Duration
	maxDuration time.Duration
}

type Option func(*Ranker)

// WithMinDuration sets the shortest acceptable video.
func WithMinDuration(d time.Duration) Option {
	return func(r *Ranker) {
		if d >= 0 {
			r.minDuration = d
		}
	}
}

// WithTargetWindow sets the preferred duration window and the upper bound beyond
// which candidates are ranked after every in-bound one. Invalid windows are ignored.
func WithTargetWindow(targetMin, targetMax, maxDuration time.Duration) Option {
	return func(r *Ranker) {
		if targetMin <= 0 || targetMin > targetMax || targetMax > maxDuration {
			return
		}
		r.targetMin = targetMin
		r.targetMax = targetMax
		r.maxDuration = maxDuration
	}
}

// New creates a ranker with a 10 minute minimum and a 1 to 3 hour target window.
//
// Example:
//
//	r := ranker.New(ranker.WithMinDuration(20*time.Minute))
//	best, err := r.Select(candidates, mood.Ominous)
func New(opts ...Option) *Ranker {
	r := &Ranker{
		minDuration: DefaultMinDuration,
		targetMin:   DefaultTargetMin,
		targetMax:   DefaultTargetMax,
		maxDuration: DefaultMaxDuration,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type scored struct {
	candidate catalog.Candidate
	order     int
	score     int
	tooLong   bool
	distance  time.Duration
}

// Rank returns the best candidate, or false when nothing is suitable.
// Short videos are dropped first; if that leaves nothing, the duration filter
// is dropped once and the candidates are ranked again.
func (r *Ranker) Rank(candidates []catalog.Candidate, m mood.Mood) (catalog.Candidate, bool) {
	if len(candidates) == 0 {
		return catalog.Candidate{}, false
	}

	keywords := Keywords(m)
	pool := r.filter(candidates, true)
	if len(pool) == 0 {
		logger.Info("No candidate is at least %s long, relaxing duration filter", r.minDuration)
		pool = r.filter(candidates, false)
	}
	if len(pool) == 0 {
		logger.Info("No embeddable candidate among %d results", len(candidates))
		return catalog.Candidate{}, false
	}

	for i := range pool {
		pool[i].score = Overlap(keywords, pool[i].candidate.Title, pool[i].candidate.Description)
		pool[i].tooLong, pool[i].distance = r.durationFit(pool[i].candidate.DurationSeconds)
		logger.Debug("  score %d, distance %s, too long %t: %s", pool[i].score, pool[i].distance, pool[i].tooLong, pool[i].candidate.Title)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.tooLong != b.tooLong {
			return !a.tooLong
		}
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		return a.order < b.order
	})

	best := pool[0]
	logger.Info("Selected %q (%s) with score %d", best.candidate.Title, best.candidate.ExternalID, best.score)
	return best.candidate, true
}

// Select is Rank with the empty outcome reported as an apperr.ErrNoCandidate error.
func (r *Ranker) Select(candidates []catalog.Candidate, m mood.Mood) (catalog.Candidate, error) {
	best, ok := r.Rank(candidates, m)
	if !ok {
		return catalog.Candidate{}, apperr.New(apperr.ErrNoCandidate, "no suitable candidate").
			WithContext("mood", string(m)).
			WithContext("candidates", len(candidates))
	}
	return best, nil
}

func (r *Ranker) filter(candidates []catalog.Candidate, enforceDuration bool) []scored {
	pool := make([]scored, 0, len(candidates))
	for i, c := range candidates {
		if !c.Embeddable {
			continue
		}
		if enforceDuration && time.Duration(c.DurationSeconds)*time.Second < r.minDuration {
			continue
		}
		pool = append(pool, scored{candidate: c, order: i})
	}
	return pool
}

// durationFit reports whether d exceeds the upper bound and how far it lies from the target window.
func (r *Ranker) durationFit(seconds int) (bool, time.Duration) {
	d := time.Duration(seconds) * time.Second
	switch {
	case d < r.targetMin:
		return false, r.targetMin - d
	case d <= r.targetMax:
		return false, 0
	default:
		return d > r.maxDuration, d - r.targetMax
	}
}
