package sqlite

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/contextdb/contextdb/pkg/core"
	"github.com/contextdb/contextdb/pkg/graph"
)

// Query executes a combined query. SQL narrows the candidate set with the
// cheap prefilters it can express (timestamp ranges, simple text matching);
// the engine then applies every filter authoritatively, so results are
// identical whether or not a prefilter fired.
func (s *Store) Query(ctx context.Context, query *core.Query) ([]core.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready("query"); err != nil {
		return nil, err
	}

	var adj *graph.Adjacency
	if query.Relations != nil {
		var err error
		adj, err = s.loadAdjacency(ctx)
		if err != nil {
			return nil, core.WrapError("query", err)
		}
	}

	candidates, err := s.loadCandidates(ctx, query, neighborhood(query.Relations, adj))
	if err != nil {
		return nil, core.WrapError("query", err)
	}
	if err := s.attachRelations(ctx, candidates); err != nil {
		return nil, core.WrapError("query", err)
	}

	results, err := s.engine.Execute(query, candidates, adj)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("query executed", "candidates", len(candidates), "results", len(results))
	return results, nil
}

// neighborhood computes the candidate id set of a bounded relation filter,
// so the scan can be restricted to the reachable entries. Returns nil when
// the filter does not bound the candidate set.
func neighborhood(filter *core.RelationFilter, adj *graph.Adjacency) map[uuid.UUID]bool {
	if filter == nil || adj == nil {
		return nil
	}
	switch filter.Kind {
	case core.RelDirect:
		return adj.Neighbors(filter.From)
	case core.RelWithinDistance:
		return adj.WithinDistance(filter.From, filter.MaxHops)
	default:
		return nil
	}
}

// loadCandidates selects the candidate entries for a query, applying the
// prefilters SQL can express. A non-nil ids set restricts the scan to those
// entries. Callers must hold the mutex.
func (s *Store) loadCandidates(ctx context.Context, query *core.Query, ids map[uuid.UUID]bool) ([]*core.Entry, error) {
	var (
		clauses []string
		args    []any
	)

	if ids != nil {
		if len(ids) == 0 {
			return nil, nil
		}
		placeholders := make([]string, 0, len(ids))
		for id := range ids {
			placeholders = append(placeholders, "?")
			args = append(args, id.String())
		}
		clauses = append(clauses, "id IN ("+strings.Join(placeholders, ", ")+")")
	}

	if t := query.Temporal; t != nil {
		column := "created_at"
		switch t.Kind {
		case core.TmpUpdatedAfter, core.TmpUpdatedBefore, core.TmpUpdatedBetween:
			column = "updated_at"
		}
		switch t.Kind {
		case core.TmpCreatedAfter, core.TmpUpdatedAfter:
			clauses = append(clauses, column+" > ?")
			args = append(args, formatTime(t.Start))
		case core.TmpCreatedBefore, core.TmpUpdatedBefore:
			clauses = append(clauses, column+" < ?")
			args = append(args, formatTime(t.Start))
		case core.TmpCreatedBetween, core.TmpUpdatedBetween:
			clauses = append(clauses, column+" >= ? AND "+column+" <= ?")
			args = append(args, formatTime(t.Start), formatTime(t.End))
		}
	}

	// SQLite folds case for ASCII only, so the text prefilter is applied
	// just for ASCII filter values; anything else is matched by the engine
	// alone. The prefilter must never exclude an entry the engine would keep.
	if e := query.Expression; e != nil && isASCII(e.Value) {
		value := strings.ToLower(e.Value)
		switch e.Op {
		case core.OpExact:
			clauses = append(clauses, "LOWER(expression) = ?")
			args = append(args, value)
		case core.OpContains:
			clauses = append(clauses, "LOWER(expression) LIKE ? ESCAPE '\\'")
			args = append(args, "%"+escapeLike(value)+"%")
		case core.OpStartsWith:
			clauses = append(clauses, "LOWER(expression) LIKE ? ESCAPE '\\'")
			args = append(args, escapeLike(value)+"%")
		case core.OpEndsWith:
			clauses = append(clauses, "LOWER(expression) LIKE ? ESCAPE '\\'")
			args = append(args, "%"+escapeLike(value))
		}
		// OpMatches cannot be lowered to SQL, the engine handles it
	}

	querySQL := "SELECT id, meaning, expression, context, created_at, updated_at FROM entries"
	if len(clauses) > 0 {
		querySQL += " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*core.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// loadAdjacency reads every relation edge into an in-memory index for graph
// filters. Callers must hold the mutex.
func (s *Store) loadAdjacency(ctx context.Context) (*graph.Adjacency, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT from_id, to_id FROM relations")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	defer func() { _ = rows.Close() }()

	var edges []graph.Edge
	for rows.Next() {
		var rawFrom, rawTo string
		if err := rows.Scan(&rawFrom, &rawTo); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
		}
		from, err := uuid.Parse(rawFrom)
		if err != nil {
			return nil, fmt.Errorf("%w: bad relation id %q", core.ErrSerialization, rawFrom)
		}
		to, err := uuid.Parse(rawTo)
		if err != nil {
			return nil, fmt.Errorf("%w: bad relation id %q", core.ErrSerialization, rawTo)
		}
		edges = append(edges, graph.Edge{From: from, To: to})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	return graph.Build(edges), nil
}

// escapeLike escapes the LIKE metacharacters in a literal value.
func escapeLike(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `%`, `\%`)
	return strings.ReplaceAll(value, `_`, `\_`)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}
