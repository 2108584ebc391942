// Package progress defines the event structures emitted by scrape runs.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart       Stage = "RUN_START"
	StageRunDone        Stage = "RUN_DONE"
	StageRunInterrupted Stage = "RUN_INTERRUPTED"
	StageRunError       Stage = "RUN_ERROR"
	StagePageFetched    Stage = "PAGE_FETCHED"
	StageArticleSaved   Stage = "ARTICLE_SAVED"
	StageArticleDup     Stage = "ARTICLE_DUPLICATE"
	StageArticleOmitted Stage = "ARTICLE_OMITTED"
)

// Event captures a single milestone of a scrape run.
type Event struct {
	// RunID uniquely identifies a scrape run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or article milestone occurred.
	Stage Stage
	// Page is the listing page number the event belongs to, when known.
	Page int
	// URL is the listing page URL for page events.
	URL string
	// Permalink identifies the article for article events.
	Permalink string
	// Articles is the number of fragments found on a fetched page.
	Articles int
	// Bytes carries the rendered page size.
	Bytes int64
	// Image labels the image resolution outcome of an extracted article.
	Image string
	// Headless reports whether the page needed a browser render.
	Headless bool
	// Dur captures fetch latency or total run time.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunInterrupted, StageRunError:
	case StagePageFetched:
		if e.Page < 1 {
			return errors.New("page fetched requires page >= 1")
		}
	case StageArticleSaved, StageArticleDup:
		if e.Permalink == "" {
			return fmt.Errorf("%s requires permalink", e.Stage)
		}
	case StageArticleOmitted:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
