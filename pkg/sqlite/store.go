// Package sqlite implements the persistent storage backend on a single
// SQLite database file. It is the reference StorageBackend implementation:
// entries and relation edges live in two tables, vectors are stored as
// little-endian float32 blobs and timestamps as fixed-width UTC text so
// lexicographic order is chronological order.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/contextdb/contextdb/pkg/core"

	_ "modernc.org/sqlite" // SQLite driver
)

// timeFormat is the stored timestamp layout. Unlike RFC3339Nano it never
// drops trailing zeros, so every stored timestamp has the same width and
// string comparison in SQL agrees with time comparison.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a StorageBackend backed by one SQLite database.
//
// A single Store is safe for concurrent use: a RWMutex serializes writers
// against readers, matching the single-writer model of the database file
// itself.
type Store struct {
	db     *sql.DB
	path   string
	mu     sync.RWMutex
	closed bool
	engine *core.Engine
	logger core.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for operational messages.
func WithLogger(logger core.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSimilarity overrides the similarity function used to score meaning
// filters. The default is cosine similarity.
func WithSimilarity(fn core.SimilarityFunc) Option {
	return func(s *Store) {
		if fn != nil {
			s.engine.Similarity = fn
		}
	}
}

// New creates a store for the database at path. The database is not touched
// until Init is called. Use ":memory:" for a throwaway in-memory database.
func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, core.WrapError("init", fmt.Errorf("database path cannot be empty"))
	}

	store := &Store{
		path:   path,
		engine: core.NewEngine(),
		logger: core.NopLogger(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// NewInMemory creates a store backed by an in-memory database.
func NewInMemory(opts ...Option) (*Store, error) {
	return New(":memory:", opts...)
}

// Init opens the database connection, applies the pragmas and creates the
// schema if it does not exist yet.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return core.WrapError("init", core.ErrStoreClosed)
	}
	if s.db != nil {
		return nil
	}

	// journal_mode=WAL: better concurrency for file databases
	// synchronous=NORMAL: good balance of safety and speed
	// busy_timeout=5000: wait up to 5s for a lock instead of failing
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", s.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return core.WrapError("init", fmt.Errorf("failed to open database: %w", err))
	}

	// One connection only. An in-memory database exists per connection, and
	// the write model is single-writer anyway.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(2 * time.Hour)

	if err := createSchema(ctx, db); err != nil {
		_ = db.Close()
		return core.WrapError("init", err)
	}

	s.db = db
	s.logger.Info("database initialized", "path", s.path)
	return nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		meaning BLOB NOT NULL,
		expression TEXT NOT NULL,
		context TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS relations (
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		PRIMARY KEY (from_id, to_id)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_created_at ON entries(created_at);
	CREATE INDEX IF NOT EXISTS idx_entries_updated_at ON entries(updated_at);
	CREATE INDEX IF NOT EXISTS idx_entries_expression ON entries(expression);
	CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_id);
	CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_id);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Name returns the backend label.
func (s *Store) Name() string {
	return "sqlite"
}

// Path returns the database file path this store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database connection. Further operations fail with
// ErrStoreClosed. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return core.WrapError("close", fmt.Errorf("%w: %v", core.ErrIO, err))
		}
		s.db = nil
	}
	return nil
}

// ready reports the connection usable for an operation. Callers must hold
// the mutex.
func (s *Store) ready(op string) error {
	if s.closed {
		return core.WrapError(op, core.ErrStoreClosed)
	}
	if s.db == nil {
		return core.WrapError(op, fmt.Errorf("store not initialized, call Init first"))
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", core.ErrSerialization, s)
	}
	return t, nil
}
