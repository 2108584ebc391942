package sinks

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/news-ingest-crawler/internal/progress"
)

// PrometheusSink exports scrape progress via Prometheus: runs by result,
// pages fetched, and article outcomes.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runRuntime    *prometheus.HistogramVec

	pagesFetched   *prometheus.CounterVec
	pageBytes      prometheus.Counter
	fetchDuration  *prometheus.HistogramVec
	articles       *prometheus.CounterVec
	imageOutcomes  *prometheus.CounterVec
	pageArticleCnt prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_runs_started_total",
			Help: "Total scrape runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_runs_completed_total",
			Help: "Total scrape runs completed partitioned by result.",
		}, []string{"result"}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_run_runtime_seconds",
			Help:    "Wall time per completed scrape run.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}, []string{"result"}),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_pages_fetched_total",
			Help: "Listing pages fetched partitioned by renderer.",
		}, []string{"headless"}),
		pageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_page_bytes_total",
			Help: "Rendered listing bytes processed.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_fetch_duration_seconds",
			Help:    "Listing fetch duration partitioned by renderer.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"headless"}),
		articles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_articles_total",
			Help: "Article fragments processed partitioned by outcome.",
		}, []string{"outcome"}),
		imageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_image_outcomes_total",
			Help: "Image resolution outcomes for extracted articles.",
		}, []string{"outcome"}),
		pageArticleCnt: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_page_articles",
			Help:    "Article fragments found per listing page.",
			Buckets: prometheus.LinearBuckets(0, 5, 8),
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runRuntime,
		s.pagesFetched,
		s.pageBytes,
		s.fetchDuration,
		s.articles,
		s.imageOutcomes,
		s.pageArticleCnt,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.completeRun(evt, "done")
	case progress.StageRunInterrupted:
		s.completeRun(evt, "interrupted")
	case progress.StageRunError:
		s.completeRun(evt, "error")
	case progress.StagePageFetched:
		headless := strconv.FormatBool(evt.Headless)
		s.pagesFetched.WithLabelValues(headless).Inc()
		s.pageArticleCnt.Observe(float64(evt.Articles))
		if evt.Bytes > 0 {
			s.pageBytes.Add(float64(evt.Bytes))
		}
		if evt.Dur > 0 {
			s.fetchDuration.WithLabelValues(headless).Observe(evt.Dur.Seconds())
		}
	case progress.StageArticleSaved:
		s.articles.WithLabelValues("saved").Inc()
		s.observeImage(evt)
	case progress.StageArticleDup:
		s.articles.WithLabelValues("duplicate").Inc()
	case progress.StageArticleOmitted:
		s.articles.WithLabelValues("omitted").Inc()
		s.observeImage(evt)
	}
}

func (s *PrometheusSink) completeRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) observeImage(evt progress.Event) {
	if evt.Image != "" {
		s.imageOutcomes.WithLabelValues(evt.Image).Inc()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
