package contextdb

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/contextdb/contextdb/pkg/core"
	"github.com/contextdb/contextdb/pkg/sqlite"
)

// DB is the top-level handle to a contextdb database. It owns a storage
// backend and forwards every operation to it; the zero value is not usable,
// construct one with Open, OpenInMemory or WithBackend.
type DB struct {
	backend core.StorageBackend
	logger  core.Logger
}

// Option configures a DB at open time.
type Option func(*options)

type options struct {
	logger     core.Logger
	similarity core.SimilarityFunc
}

// WithLogger sets the logger for the database and its backend.
func WithLogger(logger core.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSimilarity overrides the similarity function used for meaning filters.
func WithSimilarity(fn core.SimilarityFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.similarity = fn
		}
	}
}

// Open opens (creating if necessary) a database file at path, backed by the
// SQLite reference backend.
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	o := applyOptions(opts)

	store, err := sqlite.New(path,
		sqlite.WithLogger(o.logger),
		sqlite.WithSimilarity(o.similarity),
	)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}

	return &DB{backend: store, logger: o.logger}, nil
}

// OpenInMemory opens a throwaway in-memory database. The contents are lost
// when the database is closed.
func OpenInMemory(ctx context.Context, opts ...Option) (*DB, error) {
	return Open(ctx, ":memory:", opts...)
}

// WithBackend wraps an already-constructed storage backend. The caller
// remains responsible for the backend's lifecycle.
func WithBackend(backend core.StorageBackend, opts ...Option) *DB {
	o := applyOptions(opts)
	return &DB{backend: backend, logger: o.logger}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: core.NopLogger()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Backend exposes the underlying storage backend.
func (db *DB) Backend() core.StorageBackend {
	return db.backend
}

// Insert stores a new entry. An id that is already stored is rejected with
// core.ErrDuplicateID.
func (db *DB) Insert(ctx context.Context, entry *core.Entry) error {
	return db.backend.Insert(ctx, entry)
}

// Get returns the entry with the given id, or core.ErrNotFound.
func (db *DB) Get(ctx context.Context, id uuid.UUID) (*core.Entry, error) {
	return db.backend.Get(ctx, id)
}

// Update rewrites an existing entry, or fails with core.ErrNotFound.
func (db *DB) Update(ctx context.Context, entry *core.Entry) error {
	return db.backend.Update(ctx, entry)
}

// Delete removes an entry and every relation touching it, or fails with
// core.ErrNotFound.
func (db *DB) Delete(ctx context.Context, id uuid.UUID) error {
	return db.backend.Delete(ctx, id)
}

// Query executes a combined multi-modality query.
func (db *DB) Query(ctx context.Context, query *core.Query) ([]core.QueryResult, error) {
	return db.backend.Query(ctx, query)
}

// Count returns the number of stored entries.
func (db *DB) Count(ctx context.Context) (int64, error) {
	return db.backend.Count(ctx)
}

// Export writes every entry to w as a JSON array. It is only available when
// the backend supports bulk interchange, as the SQLite backend does.
func (db *DB) Export(ctx context.Context, w io.Writer) error {
	b, err := db.bulk("export")
	if err != nil {
		return err
	}
	return b.Export(ctx, w)
}

// Import reads a JSON array of entries from r. Duplicates are skipped.
func (db *DB) Import(ctx context.Context, r io.Reader) (*sqlite.ImportStats, error) {
	b, err := db.bulk("import")
	if err != nil {
		return nil, err
	}
	return b.Import(ctx, r)
}

// bulkIO is the optional interchange capability of a backend.
type bulkIO interface {
	Export(ctx context.Context, w io.Writer) error
	Import(ctx context.Context, r io.Reader) (*sqlite.ImportStats, error)
}

func (db *DB) bulk(op string) (bulkIO, error) {
	b, ok := db.backend.(bulkIO)
	if !ok {
		return nil, core.WrapError(op,
			fmt.Errorf("backend %q does not support bulk interchange", db.backend.Name()))
	}
	return b, nil
}

// Close releases the backend if it is closeable. Safe to call more than
// once for the SQLite backend.
func (db *DB) Close() error {
	if closer, ok := db.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
