package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func container(t *testing.T, inner string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div class="feature_image_container">` + inner + `</div>`))
	require.NoError(t, err)
	return doc.Find(".feature_image_container")
}

func TestResolveImage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		inner    string
		wantKind ImageKind
		wantSrc  string
	}{
		{
			name:     "no img element",
			inner:    `<span>caption</span>`,
			wantKind: ImageNotFound,
			wantSrc:  NoImage,
		},
		{
			name:     "absolute src wins",
			inner:    `<img src="https://cdn.example.com/a.jpg" srcset="/b.jpg 900w">`,
			wantKind: ImageResolved,
			wantSrc:  "https://cdn.example.com/a.jpg",
		},
		{
			name:     "widest candidate",
			inner:    `<img src="data:image/gif;base64,xx" srcset="https://x/a.jpg 300w, https://x/b.jpg 1024w, https://x/c.jpg 768w">`,
			wantKind: ImageResolved,
			wantSrc:  "https://x/b.jpg",
		},
		{
			name:     "tie keeps first",
			inner:    `<img srcset="https://x/first.jpg 800w, https://x/second.jpg 800w">`,
			wantKind: ImageResolved,
			wantSrc:  "https://x/first.jpg",
		},
		{
			name:     "relative winner is rebased",
			inner:    `<img srcset="/small.jpg 100w, /foo.jpg 640w">`,
			wantKind: ImageResolved,
			wantSrc:  "https://news.example.com/foo.jpg",
		},
		{
			name:     "malformed entries skipped",
			inner:    `<img srcset="https://x/a.jpg 2x, https://x/b.jpg, https://x/c.jpg 500w">`,
			wantKind: ImageResolved,
			wantSrc:  "https://x/c.jpg",
		},
		{
			name:     "no valid entries",
			inner:    `<img srcset="https://x/a.jpg 1x, https://x/b.jpg">`,
			wantKind: ImageInvalidCandidates,
			wantSrc:  NoValidSrcset,
		},
		{
			name:     "non numeric width",
			inner:    `<img srcset="https://x/a.jpg widew, https://x/b.jpg 300w">`,
			wantKind: ImageParseError,
			wantSrc:  SrcsetParseError,
		},
		{
			name:     "relative src without srcset",
			inner:    `<img src="/only-relative.jpg">`,
			wantKind: ImageNoDirectLink,
			wantSrc:  NoDirectImageLink,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ResolveImage(container(t, tt.inner), "https://news.example.com")
			require.Equal(t, tt.wantKind, got.Kind)
			require.Equal(t, tt.wantSrc, got.Source())
		})
	}
}

func TestResolveImageNilContainer(t *testing.T) {
	t.Parallel()

	require.Equal(t, NoImage, ResolveImage(nil, "").Source())
	require.Equal(t, NoImage, ResolveImage(&goquery.Selection{}, "").Source())
}

func TestImageSentinels(t *testing.T) {
	t.Parallel()

	for _, kind := range []ImageKind{ImageNotFound, ImageInvalidCandidates, ImageParseError, ImageNoDirectLink} {
		require.True(t, IsImageSentinel(ImageOutcome{Kind: kind}.Source()), kind.String())
	}
	require.False(t, IsImageSentinel("https://x/a.jpg"))
}
