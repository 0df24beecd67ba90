package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/contextdb/contextdb/internal/encoding"
	"github.com/contextdb/contextdb/pkg/core"
)

// Insert persists a new entry and its outgoing relation edges in one
// transaction. An already-stored id is rejected with ErrDuplicateID and the
// stored entry is left untouched.
func (s *Store) Insert(ctx context.Context, entry *core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready("insert"); err != nil {
		return err
	}

	contextText, err := marshalContext(entry.Context)
	if err != nil {
		return core.WrapError("insert", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError("insert", fmt.Errorf("%w: %v", core.ErrIO, err))
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries WHERE id = ?", entry.ID.String()).Scan(&exists)
	if err != nil {
		return core.WrapError("insert", fmt.Errorf("%w: %v", core.ErrIO, err))
	}
	if exists > 0 {
		return core.WrapError("insert", core.ErrDuplicateID)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO entries (id, meaning, expression, context, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		entry.ID.String(),
		encoding.EncodeVector(entry.Meaning),
		entry.Expression,
		contextText,
		formatTime(entry.CreatedAt),
		formatTime(entry.UpdatedAt),
	)
	if err != nil {
		return core.WrapError("insert", fmt.Errorf("%w: %v", core.ErrIO, err))
	}

	if err := insertRelations(ctx, tx, entry.ID, entry.Relations); err != nil {
		return core.WrapError("insert", err)
	}

	if err := tx.Commit(); err != nil {
		return core.WrapError("insert", fmt.Errorf("%w: %v", core.ErrIO, err))
	}

	s.logger.Debug("entry inserted", "id", entry.ID, "relations", len(entry.Relations))
	return nil
}

// Get returns the entry with the given id, including its outgoing relations.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready("get"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT id, meaning, expression, context, created_at, updated_at FROM entries WHERE id = ?",
		id.String())

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, core.WrapError("get", core.ErrNotFound)
	}
	if err != nil {
		return nil, core.WrapError("get", err)
	}

	entry.Relations, err = s.loadRelations(ctx, id)
	if err != nil {
		return nil, core.WrapError("get", err)
	}
	return entry, nil
}

// Update rewrites an existing entry and replaces its outgoing relations in
// one transaction. The entry's UpdatedAt is stored exactly as given.
func (s *Store) Update(ctx context.Context, entry *core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready("update"); err != nil {
		return err
	}

	contextText, err := marshalContext(entry.Context)
	if err != nil {
		return core.WrapError("update", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError("update", fmt.Errorf("%w: %v", core.ErrIO, err))
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		"UPDATE entries SET meaning = ?, expression = ?, context = ?, created_at = ?, updated_at = ? WHERE id = ?",
		encoding.EncodeVector(entry.Meaning),
		entry.Expression,
		contextText,
		formatTime(entry.CreatedAt),
		formatTime(entry.UpdatedAt),
		entry.ID.String(),
	)
	if err != nil {
		return core.WrapError("update", fmt.Errorf("%w: %v", core.ErrIO, err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.WrapError("update", fmt.Errorf("%w: %v", core.ErrIO, err))
	}
	if affected == 0 {
		return core.WrapError("update", core.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM relations WHERE from_id = ?", entry.ID.String()); err != nil {
		return core.WrapError("update", fmt.Errorf("%w: %v", core.ErrIO, err))
	}
	if err := insertRelations(ctx, tx, entry.ID, entry.Relations); err != nil {
		return core.WrapError("update", err)
	}

	if err := tx.Commit(); err != nil {
		return core.WrapError("update", fmt.Errorf("%w: %v", core.ErrIO, err))
	}

	s.logger.Debug("entry updated", "id", entry.ID)
	return nil
}

// Delete removes the entry and every relation edge touching it, incoming and
// outgoing, in one transaction.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready("delete"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError("delete", fmt.Errorf("%w: %v", core.ErrIO, err))
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id.String())
	if err != nil {
		return core.WrapError("delete", fmt.Errorf("%w: %v", core.ErrIO, err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.WrapError("delete", fmt.Errorf("%w: %v", core.ErrIO, err))
	}
	if affected == 0 {
		return core.WrapError("delete", core.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM relations WHERE from_id = ? OR to_id = ?", id.String(), id.String()); err != nil {
		return core.WrapError("delete", fmt.Errorf("%w: %v", core.ErrIO, err))
	}

	if err := tx.Commit(); err != nil {
		return core.WrapError("delete", fmt.Errorf("%w: %v", core.ErrIO, err))
	}

	s.logger.Debug("entry deleted", "id", id)
	return nil
}

// Count returns the total number of stored entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready("count"); err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&count); err != nil {
		return 0, core.WrapError("count", fmt.Errorf("%w: %v", core.ErrIO, err))
	}
	return count, nil
}

func insertRelations(ctx context.Context, tx *sql.Tx, from uuid.UUID, relations []uuid.UUID) error {
	if len(relations) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO relations (from_id, to_id) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, to := range relations {
		if _, err := stmt.ExecContext(ctx, from.String(), to.String()); err != nil {
			return fmt.Errorf("%w: %v", core.ErrIO, err)
		}
	}
	return nil
}

// loadRelations returns the outgoing relation targets of id in insertion
// order. Callers must hold the mutex.
func (s *Store) loadRelations(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT to_id FROM relations WHERE from_id = ? ORDER BY rowid", id.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	defer func() { _ = rows.Close() }()

	var relations []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
		}
		to, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad relation id %q", core.ErrSerialization, raw)
		}
		relations = append(relations, to)
	}
	return relations, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*core.Entry, error) {
	var (
		rawID       string
		meaningBlob []byte
		expression  string
		contextText sql.NullString
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(&rawID, &meaningBlob, &expression, &contextText, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad entry id %q", core.ErrSerialization, rawID)
	}

	meaning, err := encoding.DecodeVector(meaningBlob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSerialization, err)
	}

	entry := &core.Entry{
		ID:         id,
		Meaning:    meaning,
		Expression: expression,
	}

	if contextText.Valid {
		entry.Context, err = core.ParseContext([]byte(contextText.String))
		if err != nil {
			return nil, err
		}
	}

	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return entry, nil
}

// marshalContext serializes an entry's context to JSON text, or NULL when
// the entry carries none.
func marshalContext(value any) (sql.NullString, error) {
	if value == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("%w: context not serializable: %v", core.ErrSerialization, err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}
