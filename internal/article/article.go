// Package article defines the article record persisted by the ingestion
// pipeline and the storage contracts shared by the scraper and the read API.
package article

import (
	"context"
	"errors"
)

// Field sentinels stored in place of values the listing page did not render.
const (
	NoDate       = "No date found"
	NoTitle      = "No title found"
	NoBody       = "No body found"
	NoCategories = "No categories found"
)

var (
	// ErrStorage marks persistence failures other than the expected
	// unique-permalink conflict.
	ErrStorage = errors.New("article storage failure")
	// ErrNotFound is returned by readers when no row matches the key.
	ErrNotFound = errors.New("article not found")
)

// Record is one article as extracted from a listing page.
type Record struct {
	Permalink   string `json:"permalink"`
	Date        string `json:"date"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Categories  string `json:"categories"`
	ImageSource string `json:"image_source"`
	PageNumber  int    `json:"page_number"`
}

// Stored is a persisted Record plus its surrogate identifier.
type Stored struct {
	ID int64 `json:"id"`
	Record
}

// Checker answers whether a permalink has already been persisted.
type Checker interface {
	Exists(ctx context.Context, permalink string) (bool, error)
}

// Sink persists records. InsertIfAbsent reports false, without error, when
// the permalink is already present.
type Sink interface {
	InsertIfAbsent(ctx context.Context, rec Record) (bool, error)
}

// Query narrows a Reader listing. Empty fields are ignored; Category, Title,
// Body and Word are case-insensitive substring matches, Date is exact. Word
// matches title or body.
type Query struct {
	Category string
	Date     string
	Title    string
	Body     string
	Word     string
}

// Reader serves the read API.
type Reader interface {
	Get(ctx context.Context, permalink string) (Stored, error)
	List(ctx context.Context, q Query) ([]Stored, error)
}

// Store bundles every storage capability.
type Store interface {
	Checker
	Sink
	Reader
}
