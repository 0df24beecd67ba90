package core

import (
	"time"

	"github.com/google/uuid"
)

// Entry is the fundamental unit of storage: a record that carries both a
// semantic representation (the meaning vector) and a human-readable form
// (the expression), treated as co-equal views of the same data.
type Entry struct {
	// ID is the unique identifier, assigned at construction
	ID uuid.UUID `json:"id"`

	// Meaning is the vector embedding
	Meaning []float32 `json:"meaning"`

	// Expression is the human-readable form of the entry
	Expression string `json:"expression"`

	// Context holds schema-less metadata as a decoded JSON value:
	// nil, bool, float64, string, []any or map[string]any
	Context any `json:"context"`

	// CreatedAt is when this entry was created (UTC)
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when this entry was last updated (UTC)
	UpdatedAt time.Time `json:"updated_at"`

	// Relations holds the ids of entries this entry points to
	Relations []uuid.UUID `json:"relations"`
}

// NewEntry creates a new entry with the given meaning and expression.
// A fresh id is assigned and both timestamps are set to the same instant.
func NewEntry(meaning []float32, expression string) *Entry {
	now := time.Now().UTC()
	return &Entry{
		ID:         uuid.New(),
		Meaning:    meaning,
		Expression: expression,
		Context:    nil,
		CreatedAt:  now,
		UpdatedAt:  now,
		Relations:  nil,
	}
}

// WithContext attaches context metadata and returns the entry for chaining.
// The value must be a decoded JSON value; use ParseContext for raw JSON text.
func (e *Entry) WithContext(context any) *Entry {
	e.Context = context
	return e
}

// AddRelation records a directed relation to another entry. Duplicate
// relations are ignored and do not touch UpdatedAt.
func (e *Entry) AddRelation(id uuid.UUID) *Entry {
	for _, existing := range e.Relations {
		if existing == id {
			return e
		}
	}
	e.Relations = append(e.Relations, id)
	e.UpdatedAt = time.Now().UTC()
	return e
}

// HasRelation reports whether the entry points to the given id.
func (e *Entry) HasRelation(id uuid.UUID) bool {
	for _, existing := range e.Relations {
		if existing == id {
			return true
		}
	}
	return false
}

// Similarity calculates cosine similarity with another entry's meaning.
func (e *Entry) Similarity(other *Entry) float64 {
	return CosineSimilarity(e.Meaning, other.Meaning)
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	clone := *e
	if e.Meaning != nil {
		clone.Meaning = make([]float32, len(e.Meaning))
		copy(clone.Meaning, e.Meaning)
	}
	if e.Relations != nil {
		clone.Relations = make([]uuid.UUID, len(e.Relations))
		copy(clone.Relations, e.Relations)
	}
	return &clone
}
