package core

import (
	"context"

	"github.com/google/uuid"
)

// StorageBackend is the capability contract every persistence implementation
// must provide. The query engine is a pure function of the backend's current
// state; the backend owns all physical storage lifetime.
//
// Insert, Update and Delete require exclusive access; the remaining methods
// only need shared access. The contract does not promise thread-safety for
// concurrent use of one instance - callers sharing a backend across
// goroutines must serialize access externally.
type StorageBackend interface {
	// Insert persists a new entry together with its relation edges. An id
	// that is already stored is rejected with ErrDuplicateID.
	Insert(ctx context.Context, entry *Entry) error

	// Get returns the entry with the given id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Entry, error)

	// Update rewrites an existing entry and replaces its outgoing relations.
	// The caller-supplied UpdatedAt is stored as-is. Fails with ErrNotFound
	// for an unknown id.
	Update(ctx context.Context, entry *Entry) error

	// Delete removes the entry and every relation edge touching it, in
	// either direction. Fails with ErrNotFound for an unknown id.
	Delete(ctx context.Context, id uuid.UUID) error

	// Query executes a combined multi-modality query and returns the
	// matching entries in deterministic order.
	Query(ctx context.Context, query *Query) ([]QueryResult, error)

	// Count returns the total number of stored entries.
	Count(ctx context.Context) (int64, error)

	// Name returns a static label identifying the backend, for diagnostics.
	Name() string
}
