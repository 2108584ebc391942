package scraper

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/news-ingest-crawler/internal/fetcher"
)

// Fetcher returns the rendered HTML of a listing page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetcher.Response, error)
}

// BlobStore writes raw listing snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Hasher computes snapshot digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Publisher pushes ingestion notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}
