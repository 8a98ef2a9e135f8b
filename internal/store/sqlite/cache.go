// Package sqlite caches fetched candles on disk so restarts and vendor
// rate limits do not force a full re-download. Candles only; signals and
// trades are not persisted here.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// Config configures the candle cache.
type Config struct {
	Path string `yaml:"path"` // e.g. "data/candles.db"
}

// Cache is a WAL-mode SQLite candle store with a single writer
// connection and batched transactions.
type Cache struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (c *Cache) DB() *sql.DB { return c.db }

// New opens the cache, enabling WAL mode and creating the schema.
func New(cfg Config) (*Cache, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened candle cache at %s", cfg.Path)
	return &Cache{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol    TEXT    NOT NULL,
			tf        TEXT    NOT NULL,
			ts        INTEGER NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			volume    REAL,
			PRIMARY KEY (symbol, tf, ts)
		);
	`)
	return err
}

// Cached is one candle tagged with its symbol and timeframe for the
// write channel.
type Cached struct {
	Symbol    string
	Timeframe model.Timeframe
	Candle    model.Candle
}

// Run reads candles from ch and inserts them in batched transactions.
// Flushes every batchSize candles OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or ch is closed.
func (c *Cache) Run(ctx context.Context, ch <-chan Cached) {
	batch := make([]Cached, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := c.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d candles in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case item, ok := <-ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, item)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (c *Cache) insertBatch(items []Cached) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, tf, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		cd := item.Candle
		_, err := stmt.Exec(item.Symbol, string(item.Timeframe), cd.TS.Unix(), cd.Open, cd.High, cd.Low, cd.Close, cd.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// SaveSeries upserts a whole fetched series in one transaction.
func (c *Cache) SaveSeries(s *model.Series) error {
	items := make([]Cached, len(s.Candles))
	for i, cd := range s.Candles {
		items[i] = Cached{Symbol: s.Symbol, Timeframe: s.Timeframe, Candle: cd}
	}
	return c.insertBatch(items)
}

// Candles returns the most recent limit candles for symbol and tf,
// oldest first. Satisfies feed.CandleSource.
func (c *Cache) Candles(ctx context.Context, symbol string, tf model.Timeframe, limit int) (*model.Series, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM (
			SELECT ts, open, high, low, close, volume
			FROM candles
			WHERE symbol = ? AND tf = ?
			ORDER BY ts DESC
			LIMIT ?
		)
		ORDER BY ts ASC
	`, symbol, string(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var cd model.Candle
		var ts int64
		if err := rows.Scan(&ts, &cd.Open, &cd.High, &cd.Low, &cd.Close, &cd.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candle: %w", err)
		}
		cd.TS = time.Unix(ts, 0).UTC()
		candles = append(candles, cd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, model.ErrEmptySeries
	}

	return &model.Series{Symbol: symbol, Timeframe: tf, Candles: candles}, nil
}

// LastTimestamp returns the newest cached candle timestamp for symbol
// and tf, or 0 if none exist. Used to size incremental fetches.
func (c *Cache) LastTimestamp(symbol string, tf model.Timeframe) (int64, error) {
	var ts sql.NullInt64
	err := c.db.QueryRow(
		`SELECT MAX(ts) FROM candles WHERE symbol = ? AND tf = ?`,
		symbol, string(tf),
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}
