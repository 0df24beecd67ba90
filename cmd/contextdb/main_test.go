package main

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/contextdb/contextdb"
	"github.com/contextdb/contextdb/pkg/core"
)

func newResolverDB(t *testing.T) (*contextdb.DB, []*core.Entry) {
	t.Helper()

	db, err := contextdb.OpenInMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenInMemory() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	// Fixed ids so prefixes are predictable
	entries := []*core.Entry{
		core.NewEntry([]float32{1}, "alpha"),
		core.NewEntry([]float32{1}, "bravo"),
		core.NewEntry([]float32{1}, "charlie"),
	}
	entries[0].ID = uuid.MustParse("aaaa1111-0000-0000-0000-000000000001")
	entries[1].ID = uuid.MustParse("aaaa2222-0000-0000-0000-000000000002")
	entries[2].ID = uuid.MustParse("bbbb3333-0000-0000-0000-000000000003")

	for _, entry := range entries {
		if err := db.Insert(context.Background(), entry); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}
	return db, entries
}

func TestResolveEntryID(t *testing.T) {
	db, entries := newResolverDB(t)
	ctx := context.Background()

	t.Run("full id", func(t *testing.T) {
		id, err := resolveEntryID(ctx, db, entries[0].ID.String())
		if err != nil {
			t.Fatalf("resolveEntryID() error: %v", err)
		}
		if id != entries[0].ID {
			t.Errorf("resolved %s, want %s", id, entries[0].ID)
		}
	})

	t.Run("unique prefix", func(t *testing.T) {
		id, err := resolveEntryID(ctx, db, "bbbb")
		if err != nil {
			t.Fatalf("resolveEntryID() error: %v", err)
		}
		if id != entries[2].ID {
			t.Errorf("resolved %s, want %s", id, entries[2].ID)
		}
	})

	t.Run("uppercase prefix", func(t *testing.T) {
		id, err := resolveEntryID(ctx, db, "AAAA1111")
		if err != nil {
			t.Fatalf("resolveEntryID() error: %v", err)
		}
		if id != entries[0].ID {
			t.Errorf("resolved %s, want %s", id, entries[0].ID)
		}
	})

	t.Run("ambiguous prefix lists candidates", func(t *testing.T) {
		_, err := resolveEntryID(ctx, db, "aaaa")
		if err == nil {
			t.Fatal("ambiguous prefix resolved, want error")
		}
		for _, fragment := range []string{"2 entries match", "aaaa1111", "aaaa2222"} {
			if !strings.Contains(err.Error(), fragment) {
				t.Errorf("error %q missing %q", err, fragment)
			}
		}
	})

	t.Run("no match", func(t *testing.T) {
		if _, err := resolveEntryID(ctx, db, "ffff"); err == nil {
			t.Error("unknown prefix resolved, want error")
		}
	})
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 40); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	long := strings.Repeat("x", 50)
	got := truncate(long, 40)
	if len(got) != 40 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate(long) = %q, want 40 chars ending in ...", got)
	}
}
