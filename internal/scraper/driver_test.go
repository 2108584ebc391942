package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/news-ingest-crawler/internal/article"
	"github.com/JakeFAU/news-ingest-crawler/internal/extract"
	"github.com/JakeFAU/news-ingest-crawler/internal/fetcher"
	collyfetcher "github.com/JakeFAU/news-ingest-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/news-ingest-crawler/internal/hash/sha256"
	"github.com/JakeFAU/news-ingest-crawler/internal/progress"
	pubmemory "github.com/JakeFAU/news-ingest-crawler/internal/publisher/memory"
	"github.com/JakeFAU/news-ingest-crawler/internal/storage/memory"
)

const (
	testListing = "https://news.example.com/news/"
	testSuffix  = "?category=all"
)

type stubFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	err     error
	fetched []string
	onFetch func(url string)
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (fetcher.Response, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook(url)
	}
	if f.err != nil {
		return fetcher.Response{}, f.err
	}
	return fetcher.Response{URL: url, StatusCode: 200, HTML: f.pages[url], Duration: time.Millisecond}, nil
}

func (f *stubFetcher) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) Stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Stage)
	}
	return out
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixedIDs struct{ id uuid.UUID }

func (g fixedIDs) NewRawID() (uuid.UUID, error) { return g.id, nil }

func fullArticle(permalink string) string {
	return fmt.Sprintf(`<article ta_permalink=%q>
  <span class="date_part">May 1, 2024</span>
  <h2 class="title">Title %s</h2>
  <div class="body multiline">Body of %s</div>
  <div class="categories">Weather</div>
  <div class="feature_image_container"><img src="https://cdn.example.com%s.jpg"></div>
</article>`, permalink, permalink, permalink, permalink)
}

const stormArticle = `<article ta_permalink="/news/storm-1">
  <span class="date_part">May 1, 2024</span>
  <h2 class="title">Storm Warning</h2>
  <div class="categories">Weather</div>
</article>`

func listing(articles ...string) string {
	return "<html><body><main>" + strings.Join(articles, "\n") + "</main></body></html>"
}

func pageURL(n int) string {
	return PageURL(testListing, testSuffix, n)
}

type harness struct {
	fetcher *stubFetcher
	store   *memory.ArticleStore
	events  *recordingEmitter
	runID   uuid.UUID
}

func newHarness(pages ...string) *harness {
	h := &harness{
		fetcher: &stubFetcher{pages: map[string]string{}},
		store:   memory.NewArticleStore(),
		events:  &recordingEmitter{},
		runID:   uuid.MustParse("0190f1c4-7c2e-7b3a-8f00-000000000001"),
	}
	for i, html := range pages {
		h.fetcher.pages[pageURL(i+1)] = html
	}
	return h
}

func (h *harness) deps() Deps {
	return Deps{
		Fetcher:   h.fetcher,
		Extractor: extract.New("https://news.example.com", nil),
		Checker:   h.store,
		Sink:      h.store,
		Progress:  h.events,
		Clock:     fixedClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		IDs:       fixedIDs{id: h.runID},
	}
}

func (h *harness) driver(t *testing.T, cfg Config) *Driver {
	t.Helper()
	if cfg.ListingURL == "" {
		cfg.ListingURL = testListing
		cfg.PaginationSuffix = testSuffix
	}
	d, err := New(cfg, h.deps())
	require.NoError(t, err)
	return d
}

func TestPageURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://news.example.com/news/?category=all", PageURL(testListing, testSuffix, 1))
	require.Equal(t, "https://news.example.com/news/page/2/?category=all", PageURL(testListing, testSuffix, 2))
	require.Equal(t, "https://news.example.com/news/page/17/", PageURL(testListing, "", 17))
}

func TestNewValidatesDeps(t *testing.T) {
	t.Parallel()

	h := newHarness()
	_, err := New(Config{}, h.deps())
	require.Error(t, err)

	deps := h.deps()
	deps.Fetcher = nil
	_, err = New(Config{ListingURL: testListing}, deps)
	require.Error(t, err)

	deps = h.deps()
	deps.Sink = nil
	_, err = New(Config{ListingURL: testListing}, deps)
	require.Error(t, err)

	_, err = New(Config{ListingURL: testListing, MaxPages: -1}, h.deps())
	require.Error(t, err)
}

func TestRunStopsAtFirstEmptyPage(t *testing.T) {
	t.Parallel()

	h := newHarness(
		listing(fullArticle("/news/a"), fullArticle("/news/b")),
		listing(fullArticle("/news/c")),
		listing(),
		listing(fullArticle("/news/never")),
	)
	summary, err := h.driver(t, Config{}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, Summary{RunID: h.runID, Pages: 3, Seen: 3, Saved: 3}, summary)
	require.Equal(t, []string{pageURL(1), pageURL(2), pageURL(3)}, h.fetcher.Fetched())
	require.Equal(t, 3, h.store.Len())

	stored, err := h.store.Get(context.Background(), "/news/c")
	require.NoError(t, err)
	require.Equal(t, 2, stored.PageNumber)
	require.Equal(t, "https://cdn.example.com/news/c.jpg", stored.ImageSource)

	stages := h.events.Stages()
	require.Equal(t, progress.StageRunStart, stages[0])
	require.Equal(t, progress.StageRunDone, stages[len(stages)-1])
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(listing(fullArticle("/news/a"), stormArticle), listing())
	first, err := h.driver(t, Config{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, first.Saved)

	second, err := h.driver(t, Config{}).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, second.Saved)
	require.Equal(t, 2, second.Duplicates)
	require.Equal(t, 2, h.store.Len())
}

func TestRunShowAllPersistsSentinelRecords(t *testing.T) {
	t.Parallel()

	h := newHarness(listing(stormArticle), listing())
	summary, err := h.driver(t, Config{Mode: ModeShowAll}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Saved)

	stored, err := h.store.Get(context.Background(), "/news/storm-1")
	require.NoError(t, err)
	require.Equal(t, article.Record{
		Permalink:   "/news/storm-1",
		Date:        "May 1, 2024",
		Title:       "Storm Warning",
		Body:        article.NoBody,
		Categories:  "Weather",
		ImageSource: extract.NoImage,
		PageNumber:  1,
	}, stored.Record)
}

func TestRunStrictOmitsIncompleteRecords(t *testing.T) {
	t.Parallel()

	h := newHarness(listing(stormArticle, fullArticle("/news/full")), listing())
	summary, err := h.driver(t, Config{Mode: ModeStrict}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Saved)
	require.Equal(t, 1, summary.Omitted)

	_, err = h.store.Get(context.Background(), "/news/storm-1")
	require.ErrorIs(t, err, article.ErrNotFound)
	require.Contains(t, h.events.Stages(), progress.StageArticleOmitted)
}

func TestRunOmitsMissingPermalink(t *testing.T) {
	t.Parallel()

	orphan := `<article><h2 class="title">Orphan</h2></article>`
	h := newHarness(listing(orphan, fullArticle("/news/a")), listing())
	summary, err := h.driver(t, Config{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Omitted)
	require.Equal(t, 1, summary.Saved)
	require.Equal(t, 1, h.store.Len())
}

func TestRunPropagatesFetchFault(t *testing.T) {
	t.Parallel()

	h := newHarness()
	boom := errors.New("browser crashed")
	h.fetcher.err = boom
	summary, err := h.driver(t, Config{}).Run(context.Background())
	require.ErrorIs(t, err, ErrFetch)
	require.ErrorIs(t, err, boom)
	require.False(t, summary.Interrupted)
	require.Len(t, h.fetcher.Fetched(), 1)
	require.Equal(t, progress.StageRunError, h.events.Stages()[len(h.events.Stages())-1])
}

type failingSink struct{ err error }

func (f failingSink) InsertIfAbsent(context.Context, article.Record) (bool, error) {
	return false, f.err
}

func TestRunPropagatesStorageFault(t *testing.T) {
	t.Parallel()

	h := newHarness(listing(fullArticle("/news/a")), listing())
	deps := h.deps()
	deps.Sink = failingSink{err: fmt.Errorf("%w: connection reset", article.ErrStorage)}
	d, err := New(Config{ListingURL: testListing, PaginationSuffix: testSuffix}, deps)
	require.NoError(t, err)

	_, err = d.Run(context.Background())
	require.ErrorIs(t, err, article.ErrStorage)
}

type racingSink struct{}

func (racingSink) InsertIfAbsent(context.Context, article.Record) (bool, error) {
	return false, nil
}

func TestRunCountsLostInsertRaceAsDuplicate(t *testing.T) {
	t.Parallel()

	h := newHarness(listing(fullArticle("/news/a")), listing())
	deps := h.deps()
	deps.Sink = racingSink{}
	d, err := New(Config{ListingURL: testListing, PaginationSuffix: testSuffix}, deps)
	require.NoError(t, err)

	summary, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, summary.Saved)
	require.Equal(t, 1, summary.Duplicates)
}

type cancelingSink struct {
	article.Sink
	cancel context.CancelFunc
}

func (c cancelingSink) InsertIfAbsent(ctx context.Context, rec article.Record) (bool, error) {
	ok, err := c.Sink.InsertIfAbsent(ctx, rec)
	c.cancel()
	return ok, err
}

func TestRunInterruptedBetweenFragments(t *testing.T) {
	t.Parallel()

	h := newHarness(listing(fullArticle("/news/a"), fullArticle("/news/b")), listing(fullArticle("/news/c")))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deps := h.deps()
	deps.Sink = cancelingSink{Sink: h.store, cancel: cancel}
	d, err := New(Config{ListingURL: testListing, PaginationSuffix: testSuffix}, deps)
	require.NoError(t, err)

	summary, err := d.Run(ctx)
	require.NoError(t, err)
	require.True(t, summary.Interrupted)
	require.Equal(t, 1, summary.Saved)
	require.Equal(t, 1, h.store.Len())
	require.Len(t, h.fetcher.Fetched(), 1)
	require.Equal(t, progress.StageRunInterrupted, h.events.Stages()[len(h.events.Stages())-1])
}

func TestRunInterruptedBeforeFirstPage(t *testing.T) {
	t.Parallel()

	h := newHarness(listing(fullArticle("/news/a")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.driver(t, Config{}).Run(ctx)
	require.NoError(t, err)
	require.True(t, summary.Interrupted)
	require.Empty(t, h.fetcher.Fetched())
}

func TestRunHonorsStartAndMaxPages(t *testing.T) {
	t.Parallel()

	h := newHarness(
		listing(fullArticle("/news/a")),
		listing(fullArticle("/news/b")),
		listing(fullArticle("/news/c")),
		listing(fullArticle("/news/d")),
	)
	summary, err := h.driver(t, Config{StartPage: 2, MaxPages: 2}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Pages)
	require.Equal(t, []string{pageURL(2), pageURL(3)}, h.fetcher.Fetched())
}

func TestRunArchivesAndNotifies(t *testing.T) {
	t.Parallel()

	h := newHarness(listing(fullArticle("/news/a"), fullArticle("/news/b")), listing())
	blobs := memory.NewBlobStore()
	pub := pubmemory.New()
	deps := h.deps()
	deps.Archiver = NewArchiver(blobs, sha256.New(), "snapshots")
	deps.Notifier = NewNotifier(pub)
	d, err := New(Config{ListingURL: testListing, PaginationSuffix: testSuffix}, deps)
	require.NoError(t, err)

	_, err = d.Run(context.Background())
	require.NoError(t, err)

	paths := blobs.Paths()
	require.Len(t, paths, 1)
	require.True(t, strings.HasPrefix(paths[0], "snapshots/"+h.runID.String()+"/page-0001-"))

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, EventArticleSaved, msgs[0].Event)
	note, ok := msgs[0].Payload.(Notification)
	require.True(t, ok)
	require.Equal(t, "/news/a", note.Permalink)
	require.Equal(t, h.runID.String(), note.RunID)
}

func TestRunSurvivesNotifierFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(listing(fullArticle("/news/a")), listing())
	pub := pubmemory.New()
	pub.FailWith(errors.New("topic unavailable"))
	deps := h.deps()
	deps.Notifier = NewNotifier(pub)
	d, err := New(Config{ListingURL: testListing, PaginationSuffix: testSuffix}, deps)
	require.NoError(t, err)

	summary, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Saved)
}

func TestRunStopsWhenStaticListingEndsWithNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/news/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listing(fullArticle("/news/a"))))
	}))
	defer srv.Close()

	h := newHarness()
	deps := h.deps()
	deps.Fetcher = collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second})
	d, err := New(Config{ListingURL: srv.URL + "/news/", Mode: ModeStrict}, deps)
	require.NoError(t, err)

	summary, err := d.Run(context.Background())
	require.NoError(t, err)
	require.False(t, summary.Interrupted)
	require.Equal(t, 2, summary.Pages)
	require.Equal(t, 1, summary.Saved)
	require.Equal(t, progress.StageRunDone, h.events.Stages()[len(h.events.Stages())-1])
}

func TestRunFailsOnStaticServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := newHarness()
	deps := h.deps()
	deps.Fetcher = collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second})
	d, err := New(Config{ListingURL: srv.URL + "/news/"}, deps)
	require.NoError(t, err)

	_, err = d.Run(context.Background())
	require.ErrorIs(t, err, ErrFetch)
	require.ErrorIs(t, err, collyfetcher.ErrServerStatus)
}
