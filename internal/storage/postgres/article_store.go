// Package postgres records extracted articles in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dadassist/legal-retriever/internal/crawler"
)

const defaultTable = "extracted_articles"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ArticleStoreConfig controls the Postgres connection pool used for article rows.
type ArticleStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ArticleStore writes one row per extracted article, keyed by run and URL.
type ArticleStore struct {
	pool  execCloser
	table string
}

// NewArticleStore connects to Postgres using cfg.
func NewArticleStore(ctx context.Context, cfg ArticleStoreConfig) (*ArticleStore, error) {
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
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ArticleStore{pool: pool, table: table}, nil
}

// NewArticleStoreWithPool constructs a store from an existing pool.
func NewArticleStoreWithPool(pool execCloser, table string) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ArticleStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
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

// StoreArticle upserts the article for runID. A second write for the same
// run and URL replaces the earlier row.
func (s *ArticleStore) StoreArticle(ctx context.Context, runID string, a crawler.Article) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("article store is not configured")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if a.URL == "" {
		return fmt.Errorf("article url is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	url,
	title,
	description,
	content,
	word_count,
	content_length,
	extraction_method,
	category,
	original_position,
	content_hash,
	extracted_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
ON CONFLICT (run_id, url) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	content = EXCLUDED.content,
	word_count = EXCLUDED.word_count,
	content_length = EXCLUDED.content_length,
	extraction_method = EXCLUDED.extraction_method,
	category = EXCLUDED.category,
	original_position = EXCLUDED.original_position,
	content_hash = EXCLUDED.content_hash,
	extracted_at = EXCLUDED.extracted_at`, s.table)

	args := []any{
		runID,
		a.URL,
		a.Title,
		a.Description,
		a.Body,
		a.WordCount,
		a.CharCount,
		string(a.Method),
		a.Category,
		a.SourceRank,
		a.ContentHash,
		a.ExtractedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert article %s: %w", a.URL, err)
	}
	return nil
}
