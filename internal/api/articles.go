package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-ingest-crawler/internal/article"
	"github.com/JakeFAU/news-ingest-crawler/internal/metrics"
)

const (
	maxListLimit  = 1000
	lookupTimeout = 5 * time.Second
)

// ArticleHandler serves read-only article lookups.
type ArticleHandler struct {
	reader  article.Reader
	timeout time.Duration
	logger  *zap.Logger
}

// NewArticleHandler wires the reader and logger.
func NewArticleHandler(reader article.Reader, logger *zap.Logger) *ArticleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleHandler{reader: reader, timeout: lookupTimeout, logger: logger}
}

// List handles every filtered listing route. Filters come from the chi URL
// parameters category, date, title, body and word; limit and offset are
// optional query parameters. It returns {"articles": [...]}.
func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "article store unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rows, err := h.reader.List(ctx, queryFromRoute(r))
	if err != nil {
		metrics.ObserveStoreError("list")
		h.logger.Error("list articles failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}
	rows = page(rows, limit, offset)
	metrics.ObserveArticlesServed(routePattern(r), len(rows))
	writeJSON(w, http.StatusOK, map[string]any{"articles": rows})
}

// Get handles GET /articles/by-permalink?permalink=. It returns
// {"article": {...}}, 400 without a permalink, and 404 when absent.
func (h *ArticleHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "article store unavailable")
		return
	}
	permalink := strings.TrimSpace(r.URL.Query().Get("permalink"))
	if permalink == "" {
		writeError(w, http.StatusBadRequest, "permalink is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	row, err := h.reader.Get(ctx, permalink)
	if err != nil {
		if errors.Is(err, article.ErrNotFound) {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		metrics.ObserveStoreError("get")
		h.logger.Error("get article failed", zap.String("permalink", permalink), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load article")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"article": row})
}

func queryFromRoute(r *http.Request) article.Query {
	return article.Query{
		Category: urlParam(r, "category"),
		Date:     urlParam(r, "date"),
		Title:    urlParam(r, "title"),
		Body:     urlParam(r, "body"),
		Word:     urlParam(r, "word"),
	}
}

// urlParam decodes a route parameter. chi matches on the raw path when the
// request carries escaped separators, so values may still be escaped.
func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func parseLimitOffset(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	limit, err := parseNonNegative(q.Get("limit"), "limit")
	if err != nil {
		return 0, 0, err
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := parseNonNegative(q.Get("offset"), "offset")
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func parseNonNegative(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

// page applies offset then limit; a zero limit returns the remainder.
func page(rows []article.Stored, limit, offset int) []article.Stored {
	if offset >= len(rows) {
		return []article.Stored{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return "unknown"
}
