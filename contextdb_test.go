package contextdb

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/contextdb/contextdb/pkg/core"
	"github.com/contextdb/contextdb/pkg/sqlite"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenInMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenInMemory() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if db.Backend().Name() != "sqlite" {
		t.Errorf("Backend().Name() = %q, want sqlite", db.Backend().Name())
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}

func TestInsertQueryLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	soup := core.NewEntry([]float32{0.9, 0.1}, "French onion soup").
		WithContext(map[string]any{"topic": "cooking"})
	jazz := core.NewEntry([]float32{0.1, 0.9}, "History of jazz")
	for _, entry := range []*core.Entry{soup, jazz} {
		if err := db.Insert(ctx, entry); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}

	count, err := db.Count(ctx)
	if err != nil || count != 2 {
		t.Fatalf("Count() = %d, %v; want 2", count, err)
	}

	query := core.NewQuery().WithMeaning([]float32{1, 0}, core.Float64(0.7))
	results, err := db.Query(ctx, &query)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(results) != 1 || results[0].Entry.ID != soup.ID {
		t.Fatalf("semantic query returned %d results, want just the soup", len(results))
	}

	got, err := db.Get(ctx, soup.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Expression != soup.Expression {
		t.Errorf("Expression = %q, want %q", got.Expression, soup.Expression)
	}

	if err := db.Delete(ctx, soup.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := db.Get(ctx, soup.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get(deleted) err = %v, want ErrNotFound", err)
	}
}

func TestExportImportViaFacade(t *testing.T) {
	source := newTestDB(t)
	ctx := context.Background()

	if err := source.Insert(ctx, core.NewEntry([]float32{1}, "exported")); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	var buf bytes.Buffer
	if err := source.Export(ctx, &buf); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	target := newTestDB(t)
	stats, err := target.Import(ctx, &buf)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if stats.Imported != 1 {
		t.Errorf("stats = %+v, want one imported entry", stats)
	}
}

func TestWithBackend(t *testing.T) {
	store, err := sqlite.NewInMemory()
	if err != nil {
		t.Fatalf("NewInMemory() error: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	db := WithBackend(store)
	t.Cleanup(func() { _ = db.Close() })

	if db.Backend() != core.StorageBackend(store) {
		t.Error("Backend() did not return the wrapped store")
	}
	if err := db.Insert(context.Background(), core.NewEntry([]float32{1}, "via backend")); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
}

func TestGetUnknownID(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.Get(context.Background(), uuid.New()); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get(unknown) err = %v, want ErrNotFound", err)
	}
}
