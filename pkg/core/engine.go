package core

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/contextdb/contextdb/pkg/graph"
)

// Engine evaluates a Query against a candidate set. It is backend-agnostic:
// a storage backend selects candidates however it likes (full scan,
// index-assisted prefilter, relation-bounded neighborhood) and hands them to
// the engine, which applies every filter authoritatively and produces the
// final deterministic, ranked, optionally-explained result list.
//
// Filters are applied in increasing cost order: temporal, expression,
// context, relations, then vector similarity. A single malformed filter
// fails the whole query; partial results are never produced.
type Engine struct {
	// Similarity scores candidates against a meaning filter vector.
	// Defaults to CosineSimilarity.
	Similarity SimilarityFunc
}

// NewEngine returns an engine ranking by cosine similarity.
func NewEngine() *Engine {
	return &Engine{Similarity: CosineSimilarity}
}

// compiledQuery carries the parse results of validation so filter inputs
// are checked exactly once per query.
type compiledQuery struct {
	regex *regexp.Regexp
}

// validate checks every filter input that can be malformed: the regex of an
// expression Matches filter, pointer syntax inside the context filter tree,
// and filter kinds. It returns ErrInvalidQuery on the first problem found.
func (e *Engine) validate(query *Query) (*compiledQuery, error) {
	compiled := &compiledQuery{}

	if query.Expression != nil {
		switch query.Expression.Op {
		case OpExact, OpContains, OpStartsWith, OpEndsWith:
		case OpMatches:
			re, err := regexp.Compile(query.Expression.Value)
			if err != nil {
				return nil, WrapError("validate",
					fmt.Errorf("%w: bad regex %q: %v", ErrInvalidQuery, query.Expression.Value, err))
			}
			compiled.regex = re
		default:
			return nil, WrapError("validate",
				fmt.Errorf("%w: unknown expression op %q", ErrInvalidQuery, query.Expression.Op))
		}
	}

	if query.Context != nil {
		if err := validateContextFilter(query.Context); err != nil {
			return nil, err
		}
	}

	if query.Relations != nil {
		switch query.Relations.Kind {
		case RelDirect, RelWithinDistance, RelHasRelations, RelNoRelations:
		default:
			return nil, WrapError("validate",
				fmt.Errorf("%w: unknown relation kind %q", ErrInvalidQuery, query.Relations.Kind))
		}
	}

	if query.Temporal != nil {
		switch query.Temporal.Kind {
		case TmpCreatedAfter, TmpCreatedBefore, TmpCreatedBetween,
			TmpUpdatedAfter, TmpUpdatedBefore, TmpUpdatedBetween:
		default:
			return nil, WrapError("validate",
				fmt.Errorf("%w: unknown temporal kind %q", ErrInvalidQuery, query.Temporal.Kind))
		}
	}

	return compiled, nil
}

func validateContextFilter(filter *ContextFilter) error {
	switch filter.Kind {
	case CtxPathExists, CtxPathEquals, CtxPathContains:
		if filter.Path != "" && !strings.HasPrefix(filter.Path, "/") {
			return WrapError("validate",
				fmt.Errorf("%w: pointer %q must start with '/'", ErrInvalidQuery, filter.Path))
		}
		return nil
	case CtxAnd, CtxOr:
		for _, child := range filter.Filters {
			if err := validateContextFilter(child); err != nil {
				return err
			}
		}
		return nil
	default:
		return WrapError("validate",
			fmt.Errorf("%w: unknown context kind %q", ErrInvalidQuery, filter.Kind))
	}
}

// Execute runs the filter pipeline over candidates. adj may be nil when the
// query carries no relation filter.
func (e *Engine) Execute(query *Query, candidates []*Entry, adj *graph.Adjacency) ([]QueryResult, error) {
	compiled, err := e.validate(query)
	if err != nil {
		return nil, err
	}

	entries := candidates

	if query.Temporal != nil {
		entries = filterEntries(entries, func(entry *Entry) bool {
			return matchTemporal(entry, query.Temporal)
		})
	}

	if query.Expression != nil {
		entries = filterEntries(entries, func(entry *Entry) bool {
			return matchExpression(entry.Expression, query.Expression, compiled.regex)
		})
	}

	if query.Context != nil {
		kept := entries[:0:0]
		for _, entry := range entries {
			ok, err := matchContext(entry.Context, query.Context)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, entry)
			}
		}
		entries = kept
	}

	if query.Relations != nil {
		if adj == nil {
			adj = graph.Build(nil)
		}
		entries = filterRelations(entries, query.Relations, adj)
	}

	var scores map[*Entry]float64
	if query.Meaning != nil {
		entries, scores = e.rankByMeaning(entries, query.Meaning)
	} else {
		// Without a meaning filter the output order must still be
		// reproducible across identical queries.
		sortByCreation(entries)
	}

	if query.Limit != nil {
		limit := *query.Limit
		if limit < 0 {
			limit = 0
		}
		if len(entries) > limit {
			entries = entries[:limit]
		}
	}

	results := make([]QueryResult, 0, len(entries))
	for _, entry := range entries {
		result := QueryResult{Entry: entry}
		if query.Meaning != nil {
			score := scores[entry]
			result.SimilarityScore = &score
		}
		if query.Explain {
			explanation := explain(query, result.SimilarityScore)
			result.Explanation = &explanation
		}
		results = append(results, result)
	}

	return results, nil
}

// rankByMeaning scores the surviving candidates, drops those below the
// threshold, orders by score descending and truncates to TopK. Truncation
// happens strictly after threshold filtering.
func (e *Engine) rankByMeaning(entries []*Entry, filter *MeaningFilter) ([]*Entry, map[*Entry]float64) {
	similarity := e.Similarity
	if similarity == nil {
		similarity = CosineSimilarity
	}

	scores := make(map[*Entry]float64, len(entries))
	for _, entry := range entries {
		scores[entry] = similarity(filter.Vector, entry.Meaning)
	}

	if filter.Threshold != nil {
		entries = filterEntries(entries, func(entry *Entry) bool {
			return scores[entry] >= *filter.Threshold
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		si, sj := scores[entries[i]], scores[entries[j]]
		if si != sj {
			return si > sj
		}
		return lessByCreation(entries[i], entries[j])
	})

	if filter.TopK != nil && len(entries) > *filter.TopK {
		if *filter.TopK < 0 {
			entries = entries[:0]
		} else {
			entries = entries[:*filter.TopK]
		}
	}

	return entries, scores
}

func filterEntries(entries []*Entry, keep func(*Entry) bool) []*Entry {
	filtered := entries[:0:0]
	for _, entry := range entries {
		if keep(entry) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

func filterRelations(entries []*Entry, filter *RelationFilter, adj *graph.Adjacency) []*Entry {
	switch filter.Kind {
	case RelDirect:
		related := adj.Neighbors(filter.From)
		return filterEntries(entries, func(entry *Entry) bool {
			return related[entry.ID]
		})
	case RelWithinDistance:
		related := adj.WithinDistance(filter.From, filter.MaxHops)
		return filterEntries(entries, func(entry *Entry) bool {
			return related[entry.ID]
		})
	case RelHasRelations:
		return filterEntries(entries, func(entry *Entry) bool {
			return adj.HasRelations(entry.ID)
		})
	case RelNoRelations:
		return filterEntries(entries, func(entry *Entry) bool {
			return !adj.HasRelations(entry.ID)
		})
	default:
		return entries
	}
}

func matchExpression(expression string, filter *ExpressionFilter, re *regexp.Regexp) bool {
	switch filter.Op {
	case OpExact:
		return strings.EqualFold(expression, filter.Value)
	case OpContains:
		return strings.Contains(strings.ToLower(expression), strings.ToLower(filter.Value))
	case OpStartsWith:
		return strings.HasPrefix(strings.ToLower(expression), strings.ToLower(filter.Value))
	case OpEndsWith:
		return strings.HasSuffix(strings.ToLower(expression), strings.ToLower(filter.Value))
	case OpMatches:
		return re != nil && re.MatchString(expression)
	default:
		return false
	}
}

func matchContext(context any, filter *ContextFilter) (bool, error) {
	switch filter.Kind {
	case CtxPathExists:
		_, found, err := EvalPointer(context, filter.Path)
		return found, err
	case CtxPathEquals:
		value, found, err := EvalPointer(context, filter.Path)
		if err != nil || !found {
			return false, err
		}
		return JSONEqual(value, filter.Value), nil
	case CtxPathContains:
		value, found, err := EvalPointer(context, filter.Path)
		if err != nil || !found {
			return false, err
		}
		// Only arrays can contain; there is no scalar or substring fallback.
		array, ok := value.([]any)
		if !ok {
			return false, nil
		}
		for _, element := range array {
			if JSONEqual(element, filter.Value) {
				return true, nil
			}
		}
		return false, nil
	case CtxAnd:
		for _, child := range filter.Filters {
			ok, err := matchContext(context, child)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case CtxOr:
		for _, child := range filter.Filters {
			ok, err := matchContext(context, child)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, WrapError("match_context",
			fmt.Errorf("%w: unknown context kind %q", ErrInvalidQuery, filter.Kind))
	}
}

func matchTemporal(entry *Entry, filter *TemporalFilter) bool {
	switch filter.Kind {
	case TmpCreatedAfter:
		return entry.CreatedAt.After(filter.Start)
	case TmpCreatedBefore:
		return entry.CreatedAt.Before(filter.Start)
	case TmpCreatedBetween:
		return !entry.CreatedAt.Before(filter.Start) && !entry.CreatedAt.After(filter.End)
	case TmpUpdatedAfter:
		return entry.UpdatedAt.After(filter.Start)
	case TmpUpdatedBefore:
		return entry.UpdatedAt.Before(filter.Start)
	case TmpUpdatedBetween:
		return !entry.UpdatedAt.Before(filter.Start) && !entry.UpdatedAt.After(filter.End)
	default:
		return false
	}
}

func sortByCreation(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return lessByCreation(entries[i], entries[j])
	})
}

// lessByCreation orders by creation time ascending with the id as the final
// tiebreak, so two entries created in the same instant still order stably.
func lessByCreation(a, b *Entry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// explain produces the human-readable account of why a final result
// matched. Discarded candidates never get one.
func explain(query *Query, score *float64) string {
	var parts []string

	if score != nil {
		parts = append(parts, fmt.Sprintf("Semantic similarity: %.2f%%", *score*100.0))
	}
	if query.Expression != nil {
		parts = append(parts, "Matched expression filter")
	}
	if query.Context != nil {
		parts = append(parts, "Matched context filter")
	}
	if query.Temporal != nil {
		parts = append(parts, "Matched temporal filter")
	}
	if query.Relations != nil {
		parts = append(parts, "Matched relation filter")
	}

	return strings.Join(parts, ", ")
}
