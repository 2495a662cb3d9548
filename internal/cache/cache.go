// Package cache mirrors translation catalog rows into PostgreSQL so that
// translators and build dashboards can query them without parsing the file.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cppmunge/internal/catalog"
	"cppmunge/internal/textutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS catalog_rows (
	hash        TEXT PRIMARY KEY,
	catalog     TEXT NOT NULL,
	source      TEXT NOT NULL,
	srcfile     TEXT NOT NULL DEFAULT '',
	class       TEXT NOT NULL DEFAULT '',
	hint        TEXT NOT NULL DEFAULT '',
	params      TEXT NOT NULL DEFAULT '',
	lang        TEXT NOT NULL,
	translation TEXT NOT NULL,
	inherited   BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertRow = `
INSERT INTO catalog_rows (hash, catalog, source, srcfile, class, hint, params, lang, translation, inherited, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
ON CONFLICT (hash) DO UPDATE
SET translation = EXCLUDED.translation,
    inherited = EXCLUDED.inherited,
    updated_at = now()`

// RowHash identifies a catalog row independently of its translation.
func RowHash(catalogName string, row catalog.Row) string {
	return textutil.Hash(strings.Join([]string{
		catalogName, row.Text, row.SrcFile, row.Class, row.Hint, formatParams(row.Params), row.Lang,
	}, "\x00"))
}

func formatParams(params []catalog.Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name + "=" + p.Value
	}
	return strings.Join(parts, ":")
}

// CatalogMirror provides in-memory + PostgreSQL-backed storage of catalog rows.
type CatalogMirror struct {
	pool   *pgxpool.Pool
	mu     sync.RWMutex
	memory map[string]string // hash → translation
}

// NewCatalogMirror creates a mirror backed by PostgreSQL.
func NewCatalogMirror(pool *pgxpool.Pool) *CatalogMirror {
	return &CatalogMirror{
		pool:   pool,
		memory: make(map[string]string),
	}
}

// EnsureSchema creates the mirror table.
func (c *CatalogMirror) EnsureSchema(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create catalog_rows: %w", err)
	}
	return nil
}

// Get retrieves a mirrored translation by row hash.
func (c *CatalogMirror) Get(ctx context.Context, hash string) (string, bool) {
	c.mu.RLock()
	if v, ok := c.memory[hash]; ok {
		c.mu.RUnlock()
		return v, true
	}
	c.mu.RUnlock()

	var translated string
	err := c.pool.QueryRow(ctx, `SELECT translation FROM catalog_rows WHERE hash = $1`, hash).Scan(&translated)
	if err != nil {
		return "", false
	}

	c.mu.Lock()
	c.memory[hash] = translated
	c.mu.Unlock()
	return translated, true
}

// Upsert writes every row of a catalog whose translation differs from the
// mirrored one. It returns the number of rows sent.
func (c *CatalogMirror) Upsert(ctx context.Context, catalogName string, rows []catalog.Row) (int, error) {
	batch := &pgx.Batch{}
	pending := make(map[string]string)
	for _, row := range rows {
		hash := RowHash(catalogName, row)
		c.mu.RLock()
		current, ok := c.memory[hash]
		c.mu.RUnlock()
		if ok && current == row.Translation {
			continue
		}
		batch.Queue(upsertRow,
			hash, catalogName, row.Text, row.SrcFile, row.Class, row.Hint,
			formatParams(row.Params), row.Lang, row.Translation, row.Inherited)
		pending[hash] = row.Translation
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	results := c.pool.SendBatch(ctx, batch)
	for n := batch.Len(); n > 0; n-- {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return 0, fmt.Errorf("upsert catalog row: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	c.mu.Lock()
	for hash, translated := range pending {
		c.memory[hash] = translated
	}
	c.mu.Unlock()
	return batch.Len(), nil
}

// Preload loads all mirrored translations into memory.
func (c *CatalogMirror) Preload(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, `SELECT hash, translation FROM catalog_rows`)
	if err != nil {
		return fmt.Errorf("preload catalog rows: %w", err)
	}
	defer rows.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for rows.Next() {
		var hash, translated string
		if err := rows.Scan(&hash, &translated); err != nil {
			return fmt.Errorf("scan catalog row: %w", err)
		}
		c.memory[hash] = translated
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("preload catalog rows: %w", err)
	}

	log.Info().Int("count", count).Msg("Preloaded catalog mirror")
	return nil
}
