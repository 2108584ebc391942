package scraper

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/news-ingest-crawler/internal/article"
)

// EventArticleSaved is the notification event name for persisted records.
const EventArticleSaved = "article.saved"

// Archiver snapshots rendered listing pages to a blob store.
type Archiver struct {
	store  BlobStore
	hasher Hasher
	prefix string
}

// NewArchiver wires an Archiver. Objects land under prefix/<run id>/.
func NewArchiver(store BlobStore, hasher Hasher, prefix string) *Archiver {
	return &Archiver{store: store, hasher: hasher, prefix: prefix}
}

// Archive writes one page snapshot and returns its URI.
func (a *Archiver) Archive(ctx context.Context, runID uuid.UUID, page int, html string) (string, error) {
	if a == nil || a.store == nil {
		return "", nil
	}
	data := []byte(html)
	name := fmt.Sprintf("page-%04d.html", page)
	if a.hasher != nil {
		digest, err := a.hasher.Hash(data)
		if err != nil {
			return "", fmt.Errorf("hash snapshot: %w", err)
		}
		if len(digest) > 12 {
			digest = digest[:12]
		}
		name = fmt.Sprintf("page-%04d-%s.html", page, digest)
	}
	uri, err := a.store.PutObject(ctx, path.Join(a.prefix, runID.String(), name), "text/html; charset=utf-8", data)
	if err != nil {
		return "", fmt.Errorf("put snapshot: %w", err)
	}
	return uri, nil
}

// Notification is the payload published for each persisted record.
type Notification struct {
	RunID      string    `json:"run_id"`
	IngestedAt time.Time `json:"ingested_at"`
	article.Record
}

// Notifier publishes a Notification for every persisted record.
type Notifier struct {
	publisher Publisher
}

// NewNotifier wires a Notifier.
func NewNotifier(publisher Publisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// Notify publishes rec.
func (n *Notifier) Notify(ctx context.Context, runID uuid.UUID, at time.Time, rec article.Record) error {
	if n == nil || n.publisher == nil {
		return nil
	}
	payload := Notification{RunID: runID.String(), IngestedAt: at, Record: rec}
	if _, err := n.publisher.Publish(ctx, EventArticleSaved, payload); err != nil {
		return fmt.Errorf("publish %s: %w", rec.Permalink, err)
	}
	return nil
}
