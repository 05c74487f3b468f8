package ambience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/MimeLyc/sonomancer/internal/apperr"
	"github.com/MimeLyc/sonomancer/internal/catalog"
	"github.com/MimeLyc/sonomancer/internal/excerpt"
	"github.com/MimeLyc/sonomancer/internal/mood"
	"github.com/MimeLyc/sonomancer/pkg/log"
)

var logger = log.Component("ambience")

const DefaultPipelineTimeout = 90 * time.Second

type Sampler interface {
	Sample(text string) []excerpt.Excerpt
}

type Classifier interface {
	Classify(ctx context.Context, excerpts []excerpt.Excerpt) (mood.Classification, error)
}

// Ranker picks the best candidate. It returns an apperr.ErrNoCandidate error when
// none is suitable.
type Ranker interface {
	Select(candidates []catalog.Candidate, m mood.Mood) (catalog.Candidate, error)
}

// ChapterSource yields the plain text of a chapter. It returns an
// apperr.ErrNotFound error when the book or chapter does not exist.
type ChapterSource interface {
	ChapterText(ctx context.Context, bookID string, index int) (string, error)
}

// Pipeline holds the stages run for an uncached chapter.
type Pipeline struct {
	Sampler    Sampler
	Classifier Classifier
	Searcher   catalog.Searcher
	Ranker     Ranker
}

type Orchestrator struct {
	pipeline Pipeline
	store    Store
	source   ChapterSource
	timeout  time.Duration

	cacheHits      atomic.Uint64
	pipelineRuns   atomic.Uint64
	coalescedWaits atomic.Uint64
	failures       atomic.Uint64
	noCandidate    atomic.Uint64
}

type Option func(*Orchestrator)

func WithStore(store Store) Option {
	return func(o *Orchestrator) {
		if store != nil {
			o.store = store
		}
	}
}

func WithChapterSource(source ChapterSource) Option {
	return func(o *Orchestrator) {
		o.source = source
	}
}

// WithPipelineTimeout bounds a whole pipeline run, independent of any caller.
func WithPipelineTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// NewOrchestrator validates the pipeline and applies opts. Without WithStore the
// results live in a MemoryStore. GetAmbience needs WithChapterSource.
//
// Example:
//
//	o, err := ambience.NewOrchestrator(ambience.Pipeline{
//		Sampler:    excerpt.NewSampler(),
//		Classifier: mood.NewClassifier(client),
//		Searcher:   catalog.NewYouTubeSearcher(key, ""),
//		Ranker:     ranker.New(),
//	}, ambience.WithChapterSource(books))
func NewOrchestrator(p Pipeline, opts ...Option) (*Orchestrator, error) {
	if p.Sampler == nil || p.Classifier == nil || p.Searcher == nil || p.Ranker == nil {
		return nil, apperr.New(apperr.ErrConfig, "pipeline requires a sampler, classifier, searcher and ranker")
	}
	o := &Orchestrator{
		pipeline: p,
		timeout:  DefaultPipelineTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = NewMemoryStore()
	}
	return o, nil
}

// Resolve returns the ambience for key. A cached result is returned without any
// external call unless force is set. Concurrent calls for the same key share one
// pipeline run; a forced call that finds a run in flight attaches to it.
// Failures are never cached.
func (o *Orchestrator) Resolve(ctx context.Context, key ChapterKey, text string, force bool) (Result, error) {
	if !force {
		if r, ok := o.store.Get(key); ok {
			o.cacheHits.Add(1)
			logger.Debug("Ambience cache hit for %s", key)
			return r, nil
		}
	}

	r, shared, err := o.store.Coalesce(ctx, key, func() (Result, error) {
		if !force {
			if r, ok := o.store.Get(key); ok {
				o.cacheHits.Add(1)
				return r, nil
			}
		}
		return o.run(ctx, key, text)
	})
	if shared {
		o.coalescedWaits.Add(1)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return Result{}, err
		}
		return Result{}, withChapterContext(err, key)
	}
	return r, nil
}

func (o *Orchestrator) run(ctx context.Context, key ChapterKey, text string) (Result, error) {
	o.pipelineRuns.Add(1)
	start := time.Now()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()

	excerpts := o.pipeline.Sampler.Sample(text)
	logger.Info("Resolving ambience for %s from %d excerpts", key, len(excerpts))

	classification, err := o.pipeline.Classifier.Classify(runCtx, excerpts)
	if err != nil {
		return Result{}, o.fail(key, err)
	}

	candidates, err := o.pipeline.Searcher.Search(runCtx, classification.Mood)
	if err != nil {
		return Result{}, o.fail(key, err)
	}

	result := Result{
		Mood:        classification.Mood,
		Explanation: classification.Explanation,
	}
	best, err := o.pipeline.Ranker.Select(candidates, classification.Mood)
	switch {
	case err == nil:
		result.YouTubeID = best.ExternalID
		result.VideoTitle = best.Title
	case apperr.IsType(err, apperr.ErrNoCandidate):
		// cached as a result without a video
		o.noCandidate.Add(1)
		logger.Warn("No suitable ambience video for %s: %v", key, err)
	default:
		return Result{}, o.fail(key, err)
	}

	o.store.Put(key, result)
	logger.Info("Resolved ambience for %s in %s: mood=%s video=%q", key, time.Since(start).Round(time.Millisecond), result.Mood, result.YouTubeID)
	return result, nil
}

func (o *Orchestrator) fail(key ChapterKey, err error) error {
	o.failures.Add(1)
	logger.Error("Ambience pipeline failed for %s: %v", key, err)
	return err
}

// GetAmbience looks up the chapter text and resolves its ambience.
func (o *Orchestrator) GetAmbience(ctx context.Context, bookID string, index int, force bool) (Result, error) {
	if o.source == nil {
		return Result{}, apperr.New(apperr.ErrConfig, "no chapter source configured")
	}
	if bookID == "" || index < 0 {
		return Result{}, apperr.New(apperr.ErrValidation, "invalid chapter reference").
			WithContext("book_id", bookID).
			WithContext("chapter_index", index)
	}

	text, err := o.source.ChapterText(ctx, bookID, index)
	if err != nil {
		return Result{}, err
	}
	return o.Resolve(ctx, ChapterKey{BookID: bookID, ChapterIndex: index}, text, force)
}

// ForgetBook drops cached ambience for every chapter of a book.
func (o *Orchestrator) ForgetBook(bookID string) int {
	n := o.store.ForgetBook(bookID)
	if n > 0 {
		logger.Info("Forgot %d cached ambience results for book %s", n, bookID)
	}
	return n
}

func (o *Orchestrator) Stats() Stats {
	return Stats{
		CacheHits:      o.cacheHits.Load(),
		PipelineRuns:   o.pipelineRuns.Load(),
		CoalescedWaits: o.coalescedWaits.Load(),
		Failures:       o.failures.Load(),
		NoCandidate:    o.noCandidate.Load(),
		Cached:         o.store.Len(),
	}
}

func withChapterContext(err error, key ChapterKey) error {
	return apperr.Wrap(err, apperr.TypeOf(err), "ambience resolution failed").
		WithContext("book_id", key.BookID).
		WithContext("chapter_index", key.ChapterIndex)
}
