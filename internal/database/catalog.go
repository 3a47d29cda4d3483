package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// dbFileName is the catalog's file name inside the output directory.
const dbFileName = "webarc.db"

// Catalog provides SQLite-based storage for the archive's record index and
// crawl session summaries.
//
// Design decision: We keep the catalog next to the archive file rather than
// embedding an index in the archive itself. The archive stays a plain
// append-only stream that survives crashes, while the catalog is cheap to
// rebuild from a sequential scan if it is ever lost.
type Catalog struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures Catalog behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance.
	EnableWAL bool
}

// DefaultOptions returns the default catalog options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a Catalog inside the given output directory.
func Open(dir string, opts Options) (*Catalog, error) {
	dbPath := filepath.Join(dir, dbFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("catalog not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check catalog path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// modernc.org/sqlite DSN: mode=rw prevents creating new files.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	c := &Catalog{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := c.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return c, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// createTables creates the catalog schema if it doesn't exist.
func (c *Catalog) createTables() error {
	schema := `
	-- Records map each archived URL to its position in the archive file.
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		surt TEXT NOT NULL,
		url TEXT NOT NULL,
		digest TEXT NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		warc_offset INTEGER NOT NULL,
		warc_length INTEGER NOT NULL,
		revisit INTEGER NOT NULL DEFAULT 0,
		fetched_at DATETIME NOT NULL,
		UNIQUE(surt, fetched_at)
	);

	CREATE INDEX IF NOT EXISTS idx_records_surt ON records(surt);
	CREATE INDEX IF NOT EXISTS idx_records_digest ON records(digest);

	-- Crawls summarize one crawl session over this archive.
	CREATE TABLE IF NOT EXISTS crawls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		seeds TEXT NOT NULL,
		archived INTEGER DEFAULT 0,
		deduped INTEGER DEFAULT 0,
		dropped INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		dead INTEGER DEFAULT 0
	);
	`

	_, err := c.db.ExecContext(context.Background(), schema)
	return err
}

// Record is one catalog row: an archived URL and where its WARC record
// lives.
type Record struct {
	ID          int64
	SURT        string
	URL         string
	Digest      string
	StatusCode  int
	ContentType string
	WARCOffset  int64
	WARCLength  int64
	Revisit     bool
	FetchedAt   time.Time
}

// InsertRecord stores one archived record's position. Called by the archive
// writer after each durable append.
func (c *Catalog) InsertRecord(ctx context.Context, record *Record) (int64, error) {
	query := `
	INSERT INTO records (surt, url, digest, status_code, content_type, warc_offset, warc_length, revisit, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := c.db.ExecContext(ctx, query,
		record.SURT,
		record.URL,
		record.Digest,
		record.StatusCode,
		record.ContentType,
		record.WARCOffset,
		record.WARCLength,
		record.Revisit,
		record.FetchedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}

	return result.LastInsertId()
}

// Records returns all catalog rows in archive order (by offset).
func (c *Catalog) Records(ctx context.Context) ([]*Record, error) {
	query := `
	SELECT id, surt, url, digest, status_code, content_type, warc_offset, warc_length, revisit, fetched_at
	FROM records
	ORDER BY warc_offset
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var record Record
		var fetchedAt string
		if err := rows.Scan(
			&record.ID,
			&record.SURT,
			&record.URL,
			&record.Digest,
			&record.StatusCode,
			&record.ContentType,
			&record.WARCOffset,
			&record.WARCLength,
			&record.Revisit,
			&fetchedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		record.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
		records = append(records, &record)
	}
	return records, rows.Err()
}

// Digests returns every distinct digest with a full (non-revisit) record in
// the archive. Used to warm-start the dedup store so a resumed crawl emits
// revisit records instead of storing known content again.
func (c *Catalog) Digests(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT digest FROM records WHERE revisit = 0`)
	if err != nil {
		return nil, fmt.Errorf("failed to query digests: %w", err)
	}
	defer rows.Close()

	var digests []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan digest: %w", err)
		}
		digests = append(digests, d)
	}
	return digests, rows.Err()
}

// CrawlSummary is one crawl session's bookkeeping row.
type CrawlSummary struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Seeds      string
	Archived   int
	Deduped    int
	Dropped    int
	Failed     int
	Dead       int
}

// BeginCrawl records the start of a crawl session and returns its row ID.
func (c *Catalog) BeginCrawl(ctx context.Context, startedAt time.Time, seeds string) (int64, error) {
	result, err := c.db.ExecContext(ctx,
		`INSERT INTO crawls (started_at, seeds) VALUES (?, ?)`,
		startedAt.UTC().Format(time.RFC3339), seeds)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl session: %w", err)
	}
	return result.LastInsertId()
}

// FinishCrawl records the end of a crawl session with its final counters.
func (c *Catalog) FinishCrawl(ctx context.Context, id int64, finishedAt time.Time, s *CrawlSummary) error {
	_, err := c.db.ExecContext(ctx, `
	UPDATE crawls
	SET finished_at = ?, archived = ?, deduped = ?, dropped = ?, failed = ?, dead = ?
	WHERE id = ?`,
		finishedAt.UTC().Format(time.RFC3339),
		s.Archived, s.Deduped, s.Dropped, s.Failed, s.Dead,
		id)
	if err != nil {
		return fmt.Errorf("failed to finish crawl session: %w", err)
	}
	return nil
}

// LastCrawl returns the most recent crawl session, or nil when none exists.
func (c *Catalog) LastCrawl(ctx context.Context) (*CrawlSummary, error) {
	query := `
	SELECT id, started_at, COALESCE(finished_at, ''), seeds, archived, deduped, dropped, failed, dead
	FROM crawls
	ORDER BY id DESC
	LIMIT 1
	`

	var s CrawlSummary
	var startedAt, finishedAt string
	err := c.db.QueryRowContext(ctx, query).Scan(
		&s.ID, &startedAt, &finishedAt, &s.Seeds,
		&s.Archived, &s.Deduped, &s.Dropped, &s.Failed, &s.Dead,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last crawl: %w", err)
	}
	s.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if finishedAt != "" {
		s.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)
	}
	return &s, nil
}

// Count returns the number of catalog rows.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}
