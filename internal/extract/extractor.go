// Package extract turns rendered listing HTML into article records. It owns
// the DOM selectors for the listing markup and the responsive-image
// resolution heuristic.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-ingest-crawler/internal/article"
)

// Selectors for the listing markup.
const (
	FragmentSelector       = "article"
	DateSelector           = ".date_part"
	TitleSelector          = ".title"
	BodySelector           = ".body.multiline"
	CategoriesSelector     = ".categories"
	ImageContainerSelector = ".feature_image_container"
	PermalinkAttr          = "ta_permalink"
)

// Extractor reads article fields out of listing fragments.
type Extractor struct {
	imageBaseURL string
	logger       *zap.Logger
}

// New builds an Extractor. imageBaseURL is prepended to root-relative image
// candidates.
func New(imageBaseURL string, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		imageBaseURL: strings.TrimSuffix(imageBaseURL, "/"),
		logger:       logger,
	}
}

// Fragments parses a rendered listing page and returns its article fragments.
func (e *Extractor) Fragments(html string) ([]*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}
	var fragments []*goquery.Selection
	doc.Find(FragmentSelector).Each(func(_ int, s *goquery.Selection) {
		fragments = append(fragments, s)
	})
	return fragments, nil
}

// Permalink returns the fragment's permalink attribute, or "" when absent.
func Permalink(fragment *goquery.Selection) string {
	permalink, _ := fragment.Attr(PermalinkAttr)
	return strings.TrimSpace(permalink)
}

// Extract builds a Record from one fragment. Missing fields degrade to their
// sentinels; it never fails.
func (e *Extractor) Extract(fragment *goquery.Selection) article.Record {
	rec, _ := e.Parse(fragment)
	return rec
}

// Parse is Extract plus the tagged image outcome behind rec.ImageSource.
func (e *Extractor) Parse(fragment *goquery.Selection) (article.Record, ImageOutcome) {
	image := ResolveImage(fragment.Find(ImageContainerSelector).First(), e.imageBaseURL)
	if image.Kind == ImageParseError {
		e.logger.Warn("srcset width parsing failed", zap.String("permalink", Permalink(fragment)))
	}
	rec := article.Record{
		Permalink:   Permalink(fragment),
		Date:        textOr(fragment, DateSelector, article.NoDate),
		Title:       textOr(fragment, TitleSelector, article.NoTitle),
		Body:        textOr(fragment, BodySelector, article.NoBody),
		Categories:  textOr(fragment, CategoriesSelector, article.NoCategories),
		ImageSource: image.Source(),
	}
	return rec, image
}

func textOr(fragment *goquery.Selection, selector, sentinel string) string {
	sel := fragment.Find(selector).First()
	if sel.Length() == 0 {
		return sentinel
	}
	return strings.TrimSpace(sel.Text())
}
