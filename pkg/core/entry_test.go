package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewEntry(t *testing.T) {
	before := time.Now().UTC()
	entry := NewEntry([]float32{0.1, 0.2}, "hello world")
	after := time.Now().UTC()

	if entry.ID == uuid.Nil {
		t.Error("NewEntry() did not assign an id")
	}
	if entry.Expression != "hello world" {
		t.Errorf("Expression = %q, want %q", entry.Expression, "hello world")
	}
	if entry.CreatedAt.Before(before) || entry.CreatedAt.After(after) {
		t.Errorf("CreatedAt %v outside [%v, %v]", entry.CreatedAt, before, after)
	}
	if !entry.CreatedAt.Equal(entry.UpdatedAt) {
		t.Errorf("fresh entry has CreatedAt %v != UpdatedAt %v", entry.CreatedAt, entry.UpdatedAt)
	}
	if entry.Context != nil {
		t.Errorf("fresh entry has context %v, want nil", entry.Context)
	}
}

func TestEntryWithContext(t *testing.T) {
	ctx := map[string]any{"topic": "cooking", "tags": []any{"soup"}}
	entry := NewEntry([]float32{1}, "onion soup").WithContext(ctx)

	value, found, err := EvalPointer(entry.Context, "/topic")
	if err != nil || !found {
		t.Fatalf("EvalPointer(/topic) = %v, %v, %v", value, found, err)
	}
	if value != "cooking" {
		t.Errorf("context topic = %v, want cooking", value)
	}
}

func TestEntryAddRelation(t *testing.T) {
	entry := NewEntry([]float32{1}, "a")
	other := uuid.New()

	entry.AddRelation(other)
	entry.AddRelation(other) // duplicate is a no-op

	if len(entry.Relations) != 1 {
		t.Fatalf("Relations = %v, want exactly one", entry.Relations)
	}
	if !entry.HasRelation(other) {
		t.Error("HasRelation() = false after AddRelation")
	}
	if entry.HasRelation(uuid.New()) {
		t.Error("HasRelation() = true for unrelated id")
	}
}

func TestEntryClone(t *testing.T) {
	entry := NewEntry([]float32{1, 2}, "original").
		WithContext(map[string]any{"k": "v"}).
		AddRelation(uuid.New())

	clone := entry.Clone()

	clone.Meaning[0] = 99
	clone.Relations[0] = uuid.New()

	if entry.Meaning[0] == 99 {
		t.Error("Clone() shares the meaning vector")
	}
	if entry.Relations[0] == clone.Relations[0] {
		t.Error("Clone() shares the relations slice")
	}
	if clone.ID != entry.ID {
		t.Error("Clone() changed the id")
	}
}

func TestEntrySimilarity(t *testing.T) {
	a := NewEntry([]float32{1, 0}, "a")
	b := NewEntry([]float32{1, 0}, "b")
	c := NewEntry([]float32{0, 1}, "c")

	if got := a.Similarity(b); got < 0.999 {
		t.Errorf("identical meanings scored %v, want ~1.0", got)
	}
	if got := a.Similarity(c); got > 0.001 {
		t.Errorf("orthogonal meanings scored %v, want ~0.0", got)
	}
}
