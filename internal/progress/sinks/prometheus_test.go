package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/news-ingest-crawler/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart},
		{RunID: runID, TS: now, Stage: progress.StagePageFetched, Page: 1, Articles: 3, Bytes: 2048, Headless: true, Dur: time.Second},
		{RunID: runID, TS: now, Stage: progress.StageArticleSaved, Page: 1, Permalink: "/a", Image: "resolved"},
		{RunID: runID, TS: now, Stage: progress.StageArticleDup, Page: 1, Permalink: "/b"},
		{RunID: runID, TS: now, Stage: progress.StageArticleOmitted, Page: 1, Permalink: "/c", Image: "not_found"},
		{RunID: runID, TS: now, Stage: progress.StageRunDone, Dur: 20 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("done")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.pagesFetched.WithLabelValues("true")))
	require.InDelta(t, 2048.0, testutil.ToFloat64(sink.pageBytes), 1e-9)
	require.Equal(t, 1.0, testutil.ToFloat64(sink.articles.WithLabelValues("saved")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.articles.WithLabelValues("duplicate")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.articles.WithLabelValues("omitted")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.imageOutcomes.WithLabelValues("not_found")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "scraper_fetch_duration_seconds"))
	require.NoError(t, sink.Close(context.Background()))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

func TestLogSinkWritesFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))
	err := sink.Consume(context.Background(), []progress.Event{{
		RunID:     progress.UUIDToBytes(uuid.New()),
		TS:        time.Now(),
		Stage:     progress.StageArticleSaved,
		Page:      2,
		Permalink: "/news/storm-1",
		Image:     "resolved",
	}})
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	require.Equal(t, "ARTICLE_SAVED", fields["stage"])
	require.Equal(t, "/news/storm-1", fields["permalink"])
	require.EqualValues(t, 2, fields["page"])
}
