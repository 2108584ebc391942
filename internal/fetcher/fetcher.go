// Package fetcher defines the page retrieval contract used by the scraper and
// a promoting fetcher that upgrades static fetches to headless rendering.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned by fetchers that have no backend wired.
var ErrNotConfigured = errors.New("fetcher not configured")

// Response is the rendered page returned by a Fetcher.
type Response struct {
	URL          string
	StatusCode   int
	HTML         string
	Duration     time.Duration
	UsedHeadless bool
}

// Fetcher retrieves the final HTML for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Response, error)
}

// Detector decides whether a static response needs a headless re-fetch.
type Detector interface {
	ShouldPromote(resp Response) bool
}

// Promoting probes with a cheap static fetcher and re-fetches with the
// headless fetcher when the detector says the listing is script-rendered.
type Promoting struct {
	probe    Fetcher
	headless Fetcher
	detector Detector
	logger   *zap.Logger
}

// NewPromoting wires a Promoting fetcher. A nil headless fetcher disables
// promotion.
func NewPromoting(probe, headless Fetcher, detector Detector, logger *zap.Logger) *Promoting {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Promoting{
		probe:    probe,
		headless: headless,
		detector: detector,
		logger:   logger,
	}
}

// Fetch implements Fetcher.
func (p *Promoting) Fetch(ctx context.Context, url string) (Response, error) {
	if p.probe == nil {
		return Response{}, ErrNotConfigured
	}
	resp, err := p.probe.Fetch(ctx, url)
	if err != nil {
		return Response{}, fmt.Errorf("probe fetch: %w", err)
	}
	if p.headless == nil || p.detector == nil || !p.detector.ShouldPromote(resp) {
		return resp, nil
	}
	p.logger.Debug("promoting fetch to headless", zap.String("url", url))
	rendered, err := p.headless.Fetch(ctx, url)
	if err != nil {
		return Response{}, fmt.Errorf("headless fetch: %w", err)
	}
	return rendered, nil
}
