// Package memory provides in-memory article and snapshot stores for
// development runs and tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/JakeFAU/news-ingest-crawler/internal/article"
)

// ArticleStore keeps articles in-memory for development and tests. Rows are
// returned in insertion order.
type ArticleStore struct {
	mu     sync.RWMutex
	rows   []article.Stored
	byLink map[string]int
}

// NewArticleStore constructs an empty ArticleStore.
func NewArticleStore() *ArticleStore {
	return &ArticleStore{byLink: make(map[string]int)}
}

// Exists reports whether permalink has been stored.
func (s *ArticleStore) Exists(_ context.Context, permalink string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byLink[permalink]
	return ok, nil
}

// InsertIfAbsent stores rec unless its permalink is already present.
func (s *ArticleStore) InsertIfAbsent(_ context.Context, rec article.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byLink[rec.Permalink]; ok {
		return false, nil
	}
	s.rows = append(s.rows, article.Stored{ID: int64(len(s.rows) + 1), Record: rec})
	s.byLink[rec.Permalink] = len(s.rows) - 1
	return true, nil
}

// Get returns the article stored under permalink.
func (s *ArticleStore) Get(_ context.Context, permalink string) (article.Stored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byLink[permalink]
	if !ok {
		return article.Stored{}, article.ErrNotFound
	}
	return s.rows[idx], nil
}

// List returns every article matching q.
func (s *ArticleStore) List(_ context.Context, q article.Query) ([]article.Stored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]article.Stored, 0, len(s.rows))
	for _, row := range s.rows {
		if matches(row.Record, q) {
			out = append(out, row)
		}
	}
	return out, nil
}

// Len returns the number of stored articles.
func (s *ArticleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func matches(rec article.Record, q article.Query) bool {
	switch {
	case q.Date != "" && rec.Date != q.Date:
		return false
	case q.Category != "" && !containsFold(rec.Categories, q.Category):
		return false
	case q.Title != "" && !containsFold(rec.Title, q.Title):
		return false
	case q.Body != "" && !containsFold(rec.Body, q.Body):
		return false
	case q.Word != "" && !containsFold(rec.Title, q.Word) && !containsFold(rec.Body, q.Word):
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
