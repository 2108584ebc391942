// Package scraper walks a paginated news listing, extracts article fragments
// and persists the new ones.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-ingest-crawler/internal/article"
	"github.com/JakeFAU/news-ingest-crawler/internal/clock/system"
	"github.com/JakeFAU/news-ingest-crawler/internal/extract"
	uuidgen "github.com/JakeFAU/news-ingest-crawler/internal/id/uuid"
	"github.com/JakeFAU/news-ingest-crawler/internal/progress"
)

// ErrFetch wraps failures of the page fetcher. The run ends on the first one.
var ErrFetch = errors.New("listing fetch failed")

// Config controls Driver behavior.
type Config struct {
	// ListingURL is the listing root, including its trailing slash.
	ListingURL string
	// PaginationSuffix is appended to every page URL.
	PaginationSuffix string
	Mode             Mode
	// StartPage defaults to 1.
	StartPage int
	// MaxPages caps the pages fetched in one run. Zero walks until a page
	// has no articles.
	MaxPages int
}

// Deps are the collaborators of a Driver. Fetcher, Extractor, Checker and Sink
// are required.
type Deps struct {
	Fetcher   Fetcher
	Extractor *extract.Extractor
	Checker   article.Checker
	Sink      article.Sink
	Archiver  *Archiver
	Notifier  *Notifier
	Progress  progress.Emitter
	Clock     Clock
	IDs       IDGenerator
	Logger    *zap.Logger
}

// Page is one fetched listing page.
type Page struct {
	Number    int
	URL       string
	HTML      string
	Fragments []*goquery.Selection
}

// Summary reports what a run did.
type Summary struct {
	RunID       uuid.UUID
	Pages       int
	Seen        int
	Saved       int
	Duplicates  int
	Omitted     int
	Interrupted bool
}

// Driver runs the pagination state machine.
type Driver struct {
	cfg       Config
	fetcher   Fetcher
	extractor *extract.Extractor
	checker   article.Checker
	sink      article.Sink
	archiver  *Archiver
	notifier  *Notifier
	progress  progress.Emitter
	clock     Clock
	ids       IDGenerator
	logger    *zap.Logger
}

// New validates deps and constructs a Driver.
func New(cfg Config, deps Deps) (*Driver, error) {
	switch {
	case cfg.ListingURL == "":
		return nil, errors.New("listing url is required")
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Checker == nil || deps.Sink == nil:
		return nil, errors.New("article checker and sink are required")
	case cfg.MaxPages < 0:
		return nil, fmt.Errorf("max pages must be >= 0, got %d", cfg.MaxPages)
	}
	if cfg.StartPage < 1 {
		cfg.StartPage = 1
	}
	d := &Driver{
		cfg:       cfg,
		fetcher:   deps.Fetcher,
		extractor: deps.Extractor,
		checker:   deps.Checker,
		sink:      deps.Sink,
		archiver:  deps.Archiver,
		notifier:  deps.Notifier,
		progress:  deps.Progress,
		clock:     deps.Clock,
		ids:       deps.IDs,
		logger:    deps.Logger,
	}
	if d.progress == nil {
		d.progress = progress.Discard
	}
	if d.clock == nil {
		d.clock = system.New()
	}
	if d.ids == nil {
		d.ids = uuidgen.New()
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d, nil
}

// PageURL builds the listing URL of page n.
func PageURL(listingURL, suffix string, n int) string {
	if n <= 1 {
		return listingURL + suffix
	}
	return listingURL + "page/" + strconv.Itoa(n) + "/" + suffix
}

// Run walks listing pages from StartPage until a page yields no articles or
// ctx is canceled. Cancellation ends the run cleanly with Interrupted set and
// a nil error; fetch and storage faults end it with an error.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	runID, err := d.ids.NewRawID()
	if err != nil {
		return Summary{}, fmt.Errorf("new run id: %w", err)
	}
	r := &run{Driver: d, started: d.clock.Now(), summary: Summary{RunID: runID}}
	r.emit(progress.Event{Stage: progress.StageRunStart})
	r.logger = d.logger.With(zap.Stringer("run_id", runID))
	r.logger.Info("scrape run started",
		zap.String("listing_url", d.cfg.ListingURL),
		zap.Stringer("mode", d.cfg.Mode),
		zap.Int("start_page", d.cfg.StartPage),
	)

	for n := d.cfg.StartPage; d.cfg.MaxPages == 0 || n < d.cfg.StartPage+d.cfg.MaxPages; n++ {
		if ctx.Err() != nil {
			return r.interrupted(), nil
		}
		page, err := r.fetchPage(ctx, n)
		if err != nil {
			if ctx.Err() != nil {
				return r.interrupted(), nil
			}
			return r.failed(err)
		}
		if len(page.Fragments) == 0 {
			r.logger.Info("listing page has no articles; stopping", zap.Int("page", n))
			break
		}
		for _, fragment := range page.Fragments {
			if ctx.Err() != nil {
				return r.interrupted(), nil
			}
			if err := r.processFragment(ctx, page, fragment); err != nil {
				if ctx.Err() != nil {
					return r.interrupted(), nil
				}
				return r.failed(err)
			}
		}
	}
	return r.done(), nil
}

// run holds the mutable state of one Run call.
type run struct {
	*Driver
	started time.Time
	summary Summary
	logger  *zap.Logger
}

func (r *run) fetchPage(ctx context.Context, n int) (Page, error) {
	url := PageURL(r.cfg.ListingURL, r.cfg.PaginationSuffix, n)
	resp, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return Page{}, fmt.Errorf("%w: page %d (%s): %w", ErrFetch, n, url, err)
	}
	fragments, err := r.extractor.Fragments(resp.HTML)
	if err != nil {
		return Page{}, fmt.Errorf("%w: page %d (%s): %w", ErrFetch, n, url, err)
	}
	r.summary.Pages++
	page := Page{Number: n, URL: url, HTML: resp.HTML, Fragments: fragments}

	r.emit(progress.Event{
		Stage:    progress.StagePageFetched,
		Page:     n,
		URL:      url,
		Articles: len(fragments),
		Bytes:    int64(len(resp.HTML)),
		Headless: resp.UsedHeadless,
		Dur:      resp.Duration,
	})
	r.logger.Debug("listing page fetched",
		zap.Int("page", n),
		zap.String("url", url),
		zap.Int("articles", len(fragments)),
		zap.Bool("headless", resp.UsedHeadless),
	)
	if r.archiver != nil && len(fragments) > 0 {
		uri, err := r.archiver.Archive(ctx, r.summary.RunID, n, resp.HTML)
		if err != nil {
			r.logger.Warn("listing snapshot failed", zap.Int("page", n), zap.Error(err))
		} else {
			r.logger.Debug("listing snapshot stored", zap.Int("page", n), zap.String("uri", uri))
		}
	}
	return page, nil
}

func (r *run) processFragment(ctx context.Context, page Page, fragment *goquery.Selection) error {
	r.summary.Seen++
	permalink := extract.Permalink(fragment)
	if permalink == "" {
		r.summary.Omitted++
		r.logger.Warn("article without permalink omitted", zap.Int("page", page.Number))
		r.emit(progress.Event{Stage: progress.StageArticleOmitted, Page: page.Number, Note: "missing permalink"})
		return nil
	}

	exists, err := r.checker.Exists(ctx, permalink)
	if err != nil {
		return fmt.Errorf("check %s: %w", permalink, err)
	}
	if exists {
		r.duplicate(page.Number, permalink)
		return nil
	}

	rec, image := r.extractor.Parse(fragment)
	rec.PageNumber = page.Number
	if !ShouldAccept(rec, r.cfg.Mode) {
		r.summary.Omitted++
		r.logger.Debug("article omitted by eligibility policy",
			zap.String("permalink", permalink),
			zap.String("date", rec.Date),
			zap.String("image", image.Kind.String()),
		)
		r.emit(progress.Event{
			Stage:     progress.StageArticleOmitted,
			Page:      page.Number,
			Permalink: permalink,
			Image:     image.Kind.String(),
			Note:      "ineligible",
		})
		return nil
	}

	inserted, err := r.sink.InsertIfAbsent(ctx, rec)
	if err != nil {
		return fmt.Errorf("persist %s: %w", permalink, err)
	}
	if !inserted {
		r.duplicate(page.Number, permalink)
		return nil
	}
	r.summary.Saved++
	r.logger.Info("article saved", zap.String("permalink", permalink), zap.Int("page", page.Number))
	r.emit(progress.Event{
		Stage:     progress.StageArticleSaved,
		Page:      page.Number,
		Permalink: permalink,
		Image:     image.Kind.String(),
	})
	if err := r.notifier.Notify(ctx, r.summary.RunID, r.clock.Now(), rec); err != nil {
		r.logger.Warn("ingestion notification failed", zap.String("permalink", permalink), zap.Error(err))
	}
	return nil
}

func (r *run) duplicate(page int, permalink string) {
	r.summary.Duplicates++
	r.logger.Debug("article already stored", zap.String("permalink", permalink))
	r.emit(progress.Event{Stage: progress.StageArticleDup, Page: page, Permalink: permalink})
}

func (r *run) interrupted() Summary {
	r.summary.Interrupted = true
	r.logger.Info("scrape run interrupted", r.summaryFields()...)
	r.emit(progress.Event{Stage: progress.StageRunInterrupted, Dur: r.elapsed()})
	return r.summary
}

func (r *run) failed(err error) (Summary, error) {
	r.logger.Error("scrape run failed", append(r.summaryFields(), zap.Error(err))...)
	r.emit(progress.Event{Stage: progress.StageRunError, Dur: r.elapsed(), Note: err.Error()})
	return r.summary, err
}

func (r *run) done() Summary {
	r.logger.Info("scrape run finished", r.summaryFields()...)
	r.emit(progress.Event{Stage: progress.StageRunDone, Dur: r.elapsed()})
	return r.summary
}

func (r *run) summaryFields() []zap.Field {
	return []zap.Field{
		zap.Int("pages", r.summary.Pages),
		zap.Int("seen", r.summary.Seen),
		zap.Int("saved", r.summary.Saved),
		zap.Int("duplicates", r.summary.Duplicates),
		zap.Int("omitted", r.summary.Omitted),
	}
}

func (r *run) elapsed() time.Duration {
	d := r.clock.Now().Sub(r.started)
	if d < 0 {
		return 0
	}
	return d
}

func (r *run) emit(evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(r.summary.RunID)
	evt.TS = r.clock.Now()
	r.progress.Emit(evt)
}
