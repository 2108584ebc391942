package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-ingest-crawler/internal/article"
)

const listingHTML = `<html><body>
<article ta_permalink="/news/storm-1">
  <span class="date_part">May 1, 2024</span>
  <h3 class="title"> Storm Warning </h3>
  <div class="categories">Weather</div>
</article>
<article ta_permalink="/news/budget-2">
  <span class="date_part">May 2, 2024</span>
  <h3 class="title">Budget Debate</h3>
  <div class="body multiline">
    Parliament opens the debate.
  </div>
  <div class="categories">Politics, News</div>
  <div class="feature_image_container">
    <img src="" srcset="/img/budget-300.jpg 300w, /img/budget-1200.jpg 1200w">
  </div>
</article>
<article>
  <h3 class="title">Orphan</h3>
</article>
</body></html>`

func TestExtractorFragments(t *testing.T) {
	t.Parallel()

	e := New("https://news.example.com/", zap.NewNop())
	fragments, err := e.Fragments(listingHTML)
	require.NoError(t, err)
	require.Len(t, fragments, 3)

	empty, err := e.Fragments("<html><body><p>nothing</p></body></html>")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestExtractorExtract(t *testing.T) {
	t.Parallel()

	e := New("https://news.example.com/", nil)
	fragments, err := e.Fragments(listingHTML)
	require.NoError(t, err)

	require.Equal(t, article.Record{
		Permalink:   "/news/storm-1",
		Date:        "May 1, 2024",
		Title:       "Storm Warning",
		Body:        article.NoBody,
		Categories:  "Weather",
		ImageSource: NoImage,
	}, e.Extract(fragments[0]))

	rec, image := e.Parse(fragments[1])
	require.Equal(t, ImageResolved, image.Kind)
	require.Equal(t, "https://news.example.com/img/budget-1200.jpg", rec.ImageSource)
	require.Equal(t, "Parliament opens the debate.", rec.Body)
	require.Equal(t, "Politics, News", rec.Categories)

	orphan := e.Extract(fragments[2])
	require.Empty(t, orphan.Permalink)
	require.Equal(t, article.NoDate, orphan.Date)
	require.Equal(t, article.NoCategories, orphan.Categories)
}
