package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/sonomancer/internal/ambience"
	"github.com/MimeLyc/sonomancer/internal/catalog"
	"github.com/MimeLyc/sonomancer/internal/config"
	"github.com/MimeLyc/sonomancer/internal/excerpt"
	"github.com/MimeLyc/sonomancer/internal/httpapi"
	"github.com/MimeLyc/sonomancer/internal/library"
	"github.com/MimeLyc/sonomancer/internal/llm"
	"github.com/MimeLyc/sonomancer/internal/mood"
	"github.com/MimeLyc/sonomancer/internal/persistence"
	"github.com/MimeLyc/sonomancer/internal/ranker"
	"github.com/MimeLyc/sonomancer/pkg/log"
)

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

// pruneSchedule binds the pruner to its cron expression.
type pruneSchedule struct {
	pruner *library.Pruner
	expr   string
}

func (p pruneSchedule) Schedule(ctx context.Context) error {
	return p.pruner.Schedule(ctx, p.expr)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to load .env: %v", err)
	}
	log.InitLogger(log.ParseLevel(os.Getenv("LOG_LEVEL")))

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal("Server stopped: %v", err)
	}
	log.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	books, closeBooks, err := newLibraryStore(cfg.Library)
	if err != nil {
		return err
	}
	defer closeBooks()

	orchestrator, err := newOrchestrator(cfg, books)
	if err != nil {
		return err
	}

	engine := cron.New()
	var sched scheduler
	if cfg.Library.Retention() > 0 {
		pruner := library.NewPruner(books, cfg.Library.Retention(), engine, func(bookID string) {
			orchestrator.ForgetBook(bookID)
		})
		sched = pruneSchedule{pruner: pruner, expr: cfg.Library.PruneCron}
	}

	server := httpapi.NewServer(books, orchestrator,
		httpapi.WithAllowedOrigin(cfg.HTTP.FrontendURL),
		httpapi.WithUI(cfg.HTTP.UIStaticDir, cfg.HTTP.UIEnabled),
	)
	return runWithComponents(ctx, cfg, sched, engine, server)
}

func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, engine cronEngine, server httpServer) error {
	if sched != nil {
		if err := sched.Schedule(ctx); err != nil {
			return err
		}
	}
	engine.Start()
	defer func() {
		<-engine.Stop().Done()
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		errCh <- server.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newLibraryStore(cfg config.LibraryConfig) (library.Store, func(), error) {
	if cfg.DBPath == "" {
		log.Info("Library kept in memory")
		return library.NewMemoryStore(), func() {}, nil
	}
	store, err := persistence.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Library stored in %s", cfg.DBPath)
	return store, func() { _ = store.Close() }, nil
}

func newOrchestrator(cfg *config.Config, books library.Store) (*ambience.Orchestrator, error) {
	client, err := llm.NewClient(cfg.LLM.ClientConfig())
	if err != nil {
		return nil, err
	}

	samplerOpts := []excerpt.Option{}
	if cfg.Ambience.ExcerptJitter > 0 {
		samplerOpts = append(samplerOpts, excerpt.WithJitter(cfg.Ambience.ExcerptJitter, uint64(time.Now().UnixNano())))
	}

	targetMin, targetMax, maxDuration := cfg.Ambience.TargetWindow()
	return ambience.NewOrchestrator(ambience.Pipeline{
		Sampler: excerpt.NewSampler(samplerOpts...),
		Classifier: mood.NewClassifier(client,
			mood.WithTimeout(time.Duration(cfg.LLM.Timeout)*time.Second),
			mood.WithRetryDelay(cfg.Ambience.RetryDelay()),
			mood.WithSampling(cfg.LLM.MaxTokens, cfg.LLM.Temperature),
		),
		Searcher: catalog.NewYouTubeSearcher(cfg.YouTube.APIKey, cfg.YouTube.APIURL,
			catalog.WithMaxResults(cfg.YouTube.MaxResults),
			catalog.WithHTTPTimeout(time.Duration(cfg.YouTube.Timeout)*time.Second),
			catalog.WithPreferredDuration(targetMin),
		),
		Ranker: ranker.New(
			ranker.WithMinDuration(cfg.Ambience.MinDuration()),
			ranker.WithTargetWindow(targetMin, targetMax, maxDuration),
		),
	},
		ambience.WithChapterSource(books),
		ambience.WithPipelineTimeout(time.Duration(cfg.Ambience.PipelineTimeout)*time.Second),
	)
}
