// Package audit records rate-limit denials to a local SQLite database.
// The log is write-behind: denials are queued on a bounded channel and
// flushed by a single writer goroutine, so the request path never blocks
// on disk. When the queue is full new records are dropped and counted.
//
// Only denials are recorded. Quota state itself lives in memory and is
// never persisted.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gatekeeper/internal/models"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS denials (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	key         TEXT NOT NULL,
	tier        TEXT NOT NULL,
	"limit"     INTEGER NOT NULL,
	retry_after INTEGER NOT NULL,
	denied_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_denials_denied_at ON denials(denied_at);
`

// Store is a write-behind denial log backed by SQLite.
type Store struct {
	db      *sql.DB
	path    string
	queue   chan models.DenialRecord
	dropped atomic.Int64

	done    chan struct{}
	flushed chan struct{}
	once    sync.Once
}

// NewStore opens (or creates) the database at path and starts the writer
// goroutine. bufferSize bounds the in-flight queue.
func NewStore(path string, bufferSize int) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required for the audit store")
	}
	if bufferSize < 1 {
		return nil, fmt.Errorf("buffer size must be positive, got %d", bufferSize)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &Store{
		db:      db,
		path:    path,
		queue:   make(chan models.DenialRecord, bufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
	}
	go s.writeLoop()

	return s, nil
}

// Record queues a denial for persistence. It never blocks: if the queue is
// full the record is dropped and counted.
func (s *Store) Record(rec models.DenialRecord) {
	select {
	case s.queue <- rec:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of records discarded because the queue was full.
func (s *Store) Dropped() int64 {
	return s.dropped.Load()
}

// writeLoop drains the queue until Close is called, then flushes what remains.
func (s *Store) writeLoop() {
	defer close(s.flushed)
	for {
		select {
		case rec := <-s.queue:
			s.insert(rec)
		case <-s.done:
			for {
				select {
				case rec := <-s.queue:
					s.insert(rec)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) insert(rec models.DenialRecord) {
	_, err := s.db.Exec(
		`INSERT INTO denials (key, tier, "limit", retry_after, denied_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Key, rec.Tier, rec.Limit, int64(rec.RetryAfter), rec.DeniedAt.UTC(),
	)
	if err != nil {
		slog.Error("Failed to write audit record", "error", err, "key", rec.Key)
	}
}

// RecentDenials returns up to limit denials, newest first.
func (s *Store) RecentDenials(ctx context.Context, limit int) ([]models.DenialRecord, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, tier, "limit", retry_after, denied_at FROM denials ORDER BY denied_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query denials: %w", err)
	}
	defer rows.Close()

	records := make([]models.DenialRecord, 0, limit)
	for rows.Next() {
		var rec models.DenialRecord
		var retryAfter int64
		if err := rows.Scan(&rec.Key, &rec.Tier, &rec.Limit, &retryAfter, &rec.DeniedAt); err != nil {
			return nil, fmt.Errorf("failed to scan denial row: %w", err)
		}
		rec.RetryAfter = time.Duration(retryAfter)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate denial rows: %w", err)
	}

	return records, nil
}

// Close stops the writer goroutine, flushes queued records, and closes the
// database. Safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		<-s.flushed
		err = s.db.Close()
	})
	return err
}
