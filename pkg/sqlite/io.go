package sqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/google/uuid"

	"github.com/contextdb/contextdb/pkg/core"
)

// ImportStats summarizes the outcome of a bulk import.
type ImportStats struct {
	// Imported is the number of entries stored
	Imported int `json:"imported"`

	// Skipped is the number of entries rejected as duplicates
	Skipped int `json:"skipped"`

	// Failed is the number of entries that could not be stored
	Failed int `json:"failed"`
}

// Export writes every stored entry, relations included, to w as a JSON
// array ordered by creation time. The output of Export is valid input for
// Import.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready("export"); err != nil {
		return err
	}

	entries, err := s.loadCandidates(ctx, &core.Query{}, nil)
	if err != nil {
		return core.WrapError("export", err)
	}
	if err := s.attachRelations(ctx, entries); err != nil {
		return core.WrapError("export", err)
	}

	sortEntriesByCreation(entries)

	// The interchange format is arrays all the way down: the top level, the
	// meaning vector and the relations list are never null
	if entries == nil {
		entries = []*core.Entry{}
	}
	for _, entry := range entries {
		if entry.Meaning == nil {
			entry.Meaning = []float32{}
		}
		if entry.Relations == nil {
			entry.Relations = []uuid.UUID{}
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return core.WrapError("export", fmt.Errorf("%w: %v", core.ErrIO, err))
	}

	s.logger.Info("export complete", "entries", len(entries))
	return nil
}

// Import reads a JSON array of entries from r and inserts them one by one.
// Entries whose id is already stored are skipped, entries that fail for any
// other reason are counted and the import continues. Anything other than a
// top-level array is rejected outright.
func (s *Store) Import(ctx context.Context, r io.Reader) (*ImportStats, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, core.WrapError("import", fmt.Errorf("%w: %v", core.ErrSerialization, err))
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, core.WrapError("import",
			fmt.Errorf("%w: top-level value must be an array of entries", core.ErrSerialization))
	}

	stats := &ImportStats{}
	for dec.More() {
		var entry core.Entry
		if err := dec.Decode(&entry); err != nil {
			return stats, core.WrapError("import", fmt.Errorf("%w: %v", core.ErrSerialization, err))
		}

		switch err := s.Insert(ctx, &entry); {
		case err == nil:
			stats.Imported++
		case errors.Is(err, core.ErrDuplicateID):
			stats.Skipped++
		default:
			s.logger.Warn("import entry failed", "id", entry.ID, "error", err)
			stats.Failed++
		}
	}

	if _, err := dec.Token(); err != nil {
		return stats, core.WrapError("import", fmt.Errorf("%w: %v", core.ErrSerialization, err))
	}

	s.logger.Info("import complete",
		"imported", stats.Imported, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

// ExportToFile exports to a file created with 0600 permissions.
func (s *Store) ExportToFile(ctx context.Context, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return core.WrapError("export", fmt.Errorf("%w: %v", core.ErrIO, err))
	}
	defer func() { _ = f.Close() }()

	if err := s.Export(ctx, f); err != nil {
		return err
	}
	return f.Close()
}

// ImportFromFile imports from a file written by ExportToFile.
func (s *Store) ImportFromFile(ctx context.Context, path string) (*ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapError("import", fmt.Errorf("%w: %v", core.ErrIO, err))
	}
	defer func() { _ = f.Close() }()

	return s.Import(ctx, f)
}

// attachRelations loads the outgoing relations of every given entry in one
// pass. Callers must hold the mutex.
func (s *Store) attachRelations(ctx context.Context, entries []*core.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT from_id, to_id FROM relations ORDER BY rowid")
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	defer func() { _ = rows.Close() }()

	outgoing := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var rawFrom, rawTo string
		if err := rows.Scan(&rawFrom, &rawTo); err != nil {
			return fmt.Errorf("%w: %v", core.ErrIO, err)
		}
		from, err := uuid.Parse(rawFrom)
		if err != nil {
			return fmt.Errorf("%w: bad relation id %q", core.ErrSerialization, rawFrom)
		}
		to, err := uuid.Parse(rawTo)
		if err != nil {
			return fmt.Errorf("%w: bad relation id %q", core.ErrSerialization, rawTo)
		}
		outgoing[from] = append(outgoing[from], to)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}

	for _, entry := range entries {
		entry.Relations = outgoing[entry.ID]
	}
	return nil
}

func sortEntriesByCreation(entries []*core.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}
