// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/news-ingest-crawler/internal/article"
)

const (
	defaultTable       = "articles"
	uniqueViolation    = "23505"
	articleColumnsList = "id, page_id, date, title, body, categories, permalink, image_source"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for article rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// ArticleStore implements article.Store on Postgres. The permalink column
// carries a UNIQUE constraint, which is the final arbiter for duplicates.
type ArticleStore struct {
	pool  pool
	table string
}

// NewArticleStore connects to Postgres using cfg.
func NewArticleStore(ctx context.Context, cfg Config) (*ArticleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ArticleStore{pool: p, table: table}, nil
}

// NewArticleStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewArticleStoreWithPool(p pool, table string) (*ArticleStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ArticleStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *ArticleStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", article.ErrStorage, err)
	}
	return nil
}

// EnsureSchema creates the articles table when missing.
func (s *ArticleStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	page_id INTEGER NOT NULL,
	date TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	categories TEXT NOT NULL,
	permalink TEXT NOT NULL,
	image_source TEXT NOT NULL,
	CONSTRAINT %s UNIQUE (permalink)
)`, s.table, s.permalinkConstraint())
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("%w: create table: %w", article.ErrStorage, err)
	}
	return nil
}

// Exists reports whether permalink has already been stored.
func (s *ArticleStore) Exists(ctx context.Context, permalink string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE permalink = $1)`, s.table)
	var exists bool
	if err := s.pool.QueryRow(ctx, query, permalink).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: check article exists: %w", article.ErrStorage, err)
	}
	return exists, nil
}

// InsertIfAbsent inserts rec unless its permalink is already stored. A
// permalink unique violation from a concurrent writer counts as "already
// present"; any other constraint failure is a storage fault.
func (s *ArticleStore) InsertIfAbsent(ctx context.Context, rec article.Record) (bool, error) {
	query := fmt.Sprintf(`
INSERT INTO %s (
	page_id,
	date,
	title,
	body,
	categories,
	permalink,
	image_source
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)
ON CONFLICT (permalink) DO NOTHING`, s.table)

	tag, err := s.pool.Exec(ctx, query,
		rec.PageNumber,
		rec.Date,
		rec.Title,
		rec.Body,
		rec.Categories,
		rec.Permalink,
		rec.ImageSource,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation &&
			pgErr.ConstraintName == s.permalinkConstraint() {
			return false, nil
		}
		return false, fmt.Errorf("%w: insert article: %w", article.ErrStorage, err)
	}
	return tag.RowsAffected() > 0, nil
}

// permalinkConstraint is the name EnsureSchema gives the permalink unique
// constraint. It matches Postgres' default for an inline UNIQUE column.
func (s *ArticleStore) permalinkConstraint() string {
	return s.table + "_permalink_key"
}

// Get returns the article stored under permalink.
func (s *ArticleStore) Get(ctx context.Context, permalink string) (article.Stored, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE permalink = $1`, articleColumnsList, s.table)
	row, err := scanArticle(s.pool.QueryRow(ctx, query, permalink))
	if errors.Is(err, pgx.ErrNoRows) {
		return article.Stored{}, article.ErrNotFound
	}
	if err != nil {
		return article.Stored{}, fmt.Errorf("%w: get article: %w", article.ErrStorage, err)
	}
	return row, nil
}

// List returns the articles matching q ordered by insertion.
func (s *ArticleStore) List(ctx context.Context, q article.Query) ([]article.Stored, error) {
	where, args := buildFilter(q)
	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY id`, articleColumnsList, s.table, where)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list articles: %w", article.ErrStorage, err)
	}
	defer rows.Close()

	out := []article.Stored{}
	for rows.Next() {
		row, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan article: %w", article.ErrStorage, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate articles: %w", article.ErrStorage, err)
	}
	return out, nil
}

// buildFilter turns q into a WHERE clause. Substring filters are
// case-insensitive and use strpos so user input never acts as a LIKE pattern.
func buildFilter(q article.Query) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(format string, value string) {
		args = append(args, value)
		n := len(args)
		clauses = append(clauses, strings.ReplaceAll(format, "$?", fmt.Sprintf("$%d", n)))
	}
	if q.Date != "" {
		add("date = $?", q.Date)
	}
	if q.Category != "" {
		add("strpos(lower(categories), lower($?)) > 0", q.Category)
	}
	if q.Title != "" {
		add("strpos(lower(title), lower($?)) > 0", q.Title)
	}
	if q.Body != "" {
		add("strpos(lower(body), lower($?)) > 0", q.Body)
	}
	if q.Word != "" {
		add("(strpos(lower(title), lower($?)) > 0 OR strpos(lower(body), lower($?)) > 0)", q.Word)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanArticle(row pgx.Row) (article.Stored, error) {
	var out article.Stored
	err := row.Scan(
		&out.ID,
		&out.PageNumber,
		&out.Date,
		&out.Title,
		&out.Body,
		&out.Categories,
		&out.Permalink,
		&out.ImageSource,
	)
	return out, err
}
