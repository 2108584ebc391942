// Package app builds the long-lived services shared by the CLI commands from
// a loaded Config, acting as a small dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-ingest-crawler/internal/article"
	"github.com/JakeFAU/news-ingest-crawler/internal/config"
	"github.com/JakeFAU/news-ingest-crawler/internal/extract"
	"github.com/JakeFAU/news-ingest-crawler/internal/fetcher"
	collyfetcher "github.com/JakeFAU/news-ingest-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/news-ingest-crawler/internal/fetcher/detector"
	"github.com/JakeFAU/news-ingest-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/news-ingest-crawler/internal/hash/sha256"
	"github.com/JakeFAU/news-ingest-crawler/internal/progress"
	"github.com/JakeFAU/news-ingest-crawler/internal/progress/sinks"
	pubmemory "github.com/JakeFAU/news-ingest-crawler/internal/publisher/memory"
	"github.com/JakeFAU/news-ingest-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/news-ingest-crawler/internal/scraper"
	"github.com/JakeFAU/news-ingest-crawler/internal/storage/gcs"
	"github.com/JakeFAU/news-ingest-crawler/internal/storage/local"
	"github.com/JakeFAU/news-ingest-crawler/internal/storage/memory"
	"github.com/JakeFAU/news-ingest-crawler/internal/storage/postgres"
)

// Pinger is implemented by stores that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App holds the shared services for one process.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   article.Store
	closers []func() error
}

// New opens the article store selected by cfg: Postgres when db.dsn is set,
// in-memory otherwise.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	if cfg.DB.DSN == "" {
		logger.Warn("db.dsn not set; using in-memory article store")
		a.store = memory.NewArticleStore()
		return a, nil
	}
	pg, err := postgres.NewArticleStore(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: int32(cfg.DB.MaxConns), // #nosec G115 -- validated non-negative and small.
	})
	if err != nil {
		return nil, fmt.Errorf("open article store: %w", err)
	}
	a.closers = append(a.closers, func() error { pg.Close(); return nil })
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("ensure article schema: %w", err)
	}
	logger.Info("connected to postgres", zap.String("table", cfg.DB.Table))
	a.store = pg
	return a, nil
}

// Configure replaces the settings used by later builder calls, e.g. after
// command-line overrides.
func (a *App) Configure(cfg config.Config) {
	a.cfg = cfg
}

// Store returns the article store.
func (a *App) Store() article.Store {
	return a.store
}

// Logger returns the process logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Ready pings the store when it supports it.
func (a *App) Ready(ctx context.Context) error {
	if p, ok := a.store.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("article store: %w", err)
		}
	}
	return nil
}

// Fetcher builds the page fetcher selected by fetch.mode.
func (a *App) Fetcher() (scraper.Fetcher, error) {
	static := collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.HTTP.UserAgent,
		Timeout:   a.cfg.HTTPTimeout(),
	})
	if a.cfg.Fetch.Mode == config.FetchStatic {
		return static, nil
	}

	var browser fetcher.Fetcher
	if a.cfg.Headless.Enabled {
		hf, err := headless.NewChromedp(headless.Config{
			ExecPath:          a.cfg.Headless.ExecPath,
			MaxParallel:       a.cfg.Headless.MaxParallel,
			UserAgent:         a.cfg.HTTP.UserAgent,
			NavigationTimeout: a.cfg.NavTimeout(),
			WaitSelector:      a.cfg.Headless.WaitSelector,
		})
		if err != nil {
			return nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		a.closers = append(a.closers, func() error { hf.Close(); return nil })
		browser = hf
	}
	if a.cfg.Fetch.Mode == config.FetchHeadless {
		return browser, nil
	}
	det := detector.NewHeuristic(a.cfg.Fetch.PromotionThreshold, extract.FragmentSelector)
	return fetcher.NewPromoting(static, browser, det, a.logger), nil
}

// Archiver builds the snapshot archiver selected by archive.backend, or nil
// when archiving is off.
func (a *App) Archiver(ctx context.Context) (*scraper.Archiver, error) {
	var store scraper.BlobStore
	switch a.cfg.Archive.Backend {
	case config.ArchiveNone, "":
		return nil, nil
	case config.ArchiveMemory:
		store = memory.NewBlobStore()
	case config.ArchiveLocal:
		ls, err := local.New(local.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		store = ls
	case config.ArchiveGCS:
		gs, err := gcs.Dial(ctx, gcs.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		a.closers = append(a.closers, gs.Close)
		store = gs
	default:
		return nil, fmt.Errorf("unknown archive backend %q", a.cfg.Archive.Backend)
	}
	return scraper.NewArchiver(store, sha256.New(), a.cfg.Archive.Prefix), nil
}

// Notifier builds the ingestion notifier. Without Pub/Sub settings it
// records notifications in-memory so runs still report them in logs.
func (a *App) Notifier(ctx context.Context) (*scraper.Notifier, error) {
	if a.cfg.PubSub.ProjectID == "" {
		return scraper.NewNotifier(pubmemory.New()), nil
	}
	pub, err := pubsub.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	return scraper.NewNotifier(pub), nil
}

// Progress builds a Hub feeding the zap log sink and a Prometheus sink
// registered on reg.
func (a *App) Progress(reg prometheus.Registerer) (*progress.Hub, error) {
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	return progress.NewHub(progress.Config{Logger: a.logger}, sinks.NewLogSink(a.logger), promSink), nil
}

// Driver assembles a scrape driver from the configured services.
func (a *App) Driver(ctx context.Context, emitter progress.Emitter) (*scraper.Driver, error) {
	if err := a.cfg.ValidateScrape(); err != nil {
		return nil, err
	}
	f, err := a.Fetcher()
	if err != nil {
		return nil, err
	}
	archiver, err := a.Archiver(ctx)
	if err != nil {
		return nil, err
	}
	notifier, err := a.Notifier(ctx)
	if err != nil {
		return nil, err
	}
	mode, err := scraper.ParseMode(a.cfg.Scraper.Mode)
	if err != nil {
		return nil, err
	}
	return scraper.New(scraper.Config{
		ListingURL:       a.cfg.Scraper.ListingURL,
		PaginationSuffix: a.cfg.Scraper.PaginationSuffix,
		Mode:             mode,
		StartPage:        a.cfg.Scraper.StartPage,
		MaxPages:         a.cfg.Scraper.MaxPages,
	}, scraper.Deps{
		Fetcher:   f,
		Extractor: extract.New(a.cfg.Scraper.ImageBaseURL, a.logger),
		Checker:   a.store,
		Sink:      a.store,
		Archiver:  archiver,
		Notifier:  notifier,
		Progress:  emitter,
		Logger:    a.logger,
	})
}

// Close releases every service in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	a.logger.Debug("application services closed", zap.Int("errors", len(errs)))
	return errors.Join(errs...)
}

var _ io.Closer = (*App)(nil)
