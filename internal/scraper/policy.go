package scraper

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/news-ingest-crawler/internal/article"
	"github.com/JakeFAU/news-ingest-crawler/internal/extract"
)

// Mode selects which extracted records are persisted.
type Mode int

const (
	// ModeShowAll persists every extracted record.
	ModeShowAll Mode = iota
	// ModeStrict persists only records whose date, body and image resolved.
	ModeStrict
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeShowAll:
		return "show_all"
	case ModeStrict:
		return "strict"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a configuration value onto a Mode. Empty selects strict.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return ModeStrict, nil
	case "show_all":
		return ModeShowAll, nil
	default:
		return ModeStrict, fmt.Errorf("unknown scrape mode %q", s)
	}
}

// ShouldAccept reports whether rec is eligible for persistence under mode.
func ShouldAccept(rec article.Record, mode Mode) bool {
	if mode != ModeStrict {
		return true
	}
	return rec.Date != article.NoDate &&
		rec.Body != article.NoBody &&
		!extract.IsImageSentinel(rec.ImageSource)
}
