package core

import (
	"time"

	"github.com/google/uuid"
)

// Query combines up to one filter per modality - semantic, textual,
// metadata, graph and temporal - into a single request. All filters are
// ANDed together; the zero Query matches every entry.
//
// Queries are value types: the With... builders return a modified copy, so
// a base query can be shared and specialized without hidden mutation.
type Query struct {
	// Meaning is the semantic similarity filter (vector-based)
	Meaning *MeaningFilter `json:"meaning,omitempty"`

	// Expression is the text filter on the expression field
	Expression *ExpressionFilter `json:"expression,omitempty"`

	// Context is the metadata filter tree
	Context *ContextFilter `json:"context,omitempty"`

	// Relations is the graph relationship filter
	Relations *RelationFilter `json:"relations,omitempty"`

	// Temporal is the timestamp filter
	Temporal *TemporalFilter `json:"temporal,omitempty"`

	// Limit caps the number of results returned
	Limit *int `json:"limit,omitempty"`

	// Explain requests a per-result explanation of why it matched
	Explain bool `json:"explain,omitempty"`
}

// MeaningFilter selects entries by vector similarity.
type MeaningFilter struct {
	// Vector is the query vector to compare against
	Vector []float32 `json:"vector"`

	// Threshold is the minimum similarity score to keep a candidate
	Threshold *float64 `json:"threshold,omitempty"`

	// TopK truncates to the K best candidates after threshold filtering
	TopK *int `json:"top_k,omitempty"`
}

// ExpressionOp identifies the kind of text match to perform.
type ExpressionOp string

// Expression match operations. All are case-insensitive except OpMatches,
// which is a regular-expression match.
const (
	OpExact      ExpressionOp = "exact"
	OpContains   ExpressionOp = "contains"
	OpStartsWith ExpressionOp = "starts_with"
	OpEndsWith   ExpressionOp = "ends_with"
	OpMatches    ExpressionOp = "matches"
)

// ExpressionFilter selects entries by their expression text.
type ExpressionFilter struct {
	Op    ExpressionOp `json:"op"`
	Value string       `json:"value"`
}

// ExpressionExact matches the whole expression, ignoring case.
func ExpressionExact(value string) *ExpressionFilter {
	return &ExpressionFilter{Op: OpExact, Value: value}
}

// ExpressionContains matches a substring, ignoring case.
func ExpressionContains(value string) *ExpressionFilter {
	return &ExpressionFilter{Op: OpContains, Value: value}
}

// ExpressionStartsWith matches a prefix, ignoring case.
func ExpressionStartsWith(value string) *ExpressionFilter {
	return &ExpressionFilter{Op: OpStartsWith, Value: value}
}

// ExpressionEndsWith matches a suffix, ignoring case.
func ExpressionEndsWith(value string) *ExpressionFilter {
	return &ExpressionFilter{Op: OpEndsWith, Value: value}
}

// ExpressionMatches matches a regular expression (case-sensitive).
func ExpressionMatches(pattern string) *ExpressionFilter {
	return &ExpressionFilter{Op: OpMatches, Value: pattern}
}

// ContextKind identifies a node in a context filter tree.
type ContextKind string

// Context filter kinds.
const (
	CtxPathExists   ContextKind = "path_exists"
	CtxPathEquals   ContextKind = "path_equals"
	CtxPathContains ContextKind = "path_contains"
	CtxAnd          ContextKind = "and"
	CtxOr           ContextKind = "or"
)

// ContextFilter selects entries by their context metadata. Leaf nodes test
// a JSON pointer; And/Or nodes combine child filters recursively.
type ContextFilter struct {
	Kind    ContextKind      `json:"kind"`
	Path    string           `json:"path,omitempty"`
	Value   any              `json:"value,omitempty"`
	Filters []*ContextFilter `json:"filters,omitempty"`
}

// PathExists matches entries whose context has any value at the pointer.
func PathExists(path string) *ContextFilter {
	return &ContextFilter{Kind: CtxPathExists, Path: path}
}

// PathEquals matches entries whose context value at the pointer deep-equals
// the given value.
func PathEquals(path string, value any) *ContextFilter {
	return &ContextFilter{Kind: CtxPathEquals, Path: path, Value: value}
}

// PathContains matches entries whose context value at the pointer is an
// array containing an element deep-equal to the given value.
func PathContains(path string, value any) *ContextFilter {
	return &ContextFilter{Kind: CtxPathContains, Path: path, Value: value}
}

// And combines context filters; all must match.
func And(filters ...*ContextFilter) *ContextFilter {
	return &ContextFilter{Kind: CtxAnd, Filters: filters}
}

// Or combines context filters; at least one must match.
func Or(filters ...*ContextFilter) *ContextFilter {
	return &ContextFilter{Kind: CtxOr, Filters: filters}
}

// RelationKind identifies the kind of graph query to perform.
type RelationKind string

// Relation filter kinds.
const (
	RelDirect         RelationKind = "directly_related_to"
	RelWithinDistance RelationKind = "within_distance"
	RelHasRelations   RelationKind = "has_relations"
	RelNoRelations    RelationKind = "no_relations"
)

// RelationFilter selects entries by their position in the relation graph.
// Edges are traversed in both directions: relations express association,
// not hierarchy.
type RelationFilter struct {
	Kind    RelationKind `json:"kind"`
	From    uuid.UUID    `json:"from,omitempty"`
	MaxHops int          `json:"max_hops,omitempty"`
}

// DirectlyRelatedTo matches the immediate neighbors of the given entry.
func DirectlyRelatedTo(id uuid.UUID) *RelationFilter {
	return &RelationFilter{Kind: RelDirect, From: id}
}

// WithinDistance matches entries reachable from the given entry in at most
// maxHops edges. The starting entry is never part of its own neighborhood.
func WithinDistance(from uuid.UUID, maxHops int) *RelationFilter {
	return &RelationFilter{Kind: RelWithinDistance, From: from, MaxHops: maxHops}
}

// HasRelations matches entries participating in at least one relation.
func HasRelations() *RelationFilter {
	return &RelationFilter{Kind: RelHasRelations}
}

// NoRelations matches entries participating in no relation at all.
func NoRelations() *RelationFilter {
	return &RelationFilter{Kind: RelNoRelations}
}

// TemporalKind identifies the kind of timestamp comparison to perform.
type TemporalKind string

// Temporal filter kinds.
const (
	TmpCreatedAfter   TemporalKind = "created_after"
	TmpCreatedBefore  TemporalKind = "created_before"
	TmpCreatedBetween TemporalKind = "created_between"
	TmpUpdatedAfter   TemporalKind = "updated_after"
	TmpUpdatedBefore  TemporalKind = "updated_before"
	TmpUpdatedBetween TemporalKind = "updated_between"
)

// TemporalFilter selects entries by creation or update time. Between
// variants use inclusive bounds on both ends.
type TemporalFilter struct {
	Kind  TemporalKind `json:"kind"`
	Start time.Time    `json:"start"`
	End   time.Time    `json:"end,omitempty"`
}

// CreatedAfter matches entries created strictly after t.
func CreatedAfter(t time.Time) *TemporalFilter {
	return &TemporalFilter{Kind: TmpCreatedAfter, Start: t}
}

// CreatedBefore matches entries created strictly before t.
func CreatedBefore(t time.Time) *TemporalFilter {
	return &TemporalFilter{Kind: TmpCreatedBefore, Start: t}
}

// CreatedBetween matches entries created in [start, end], inclusive.
func CreatedBetween(start, end time.Time) *TemporalFilter {
	return &TemporalFilter{Kind: TmpCreatedBetween, Start: start, End: end}
}

// UpdatedAfter matches entries updated strictly after t.
func UpdatedAfter(t time.Time) *TemporalFilter {
	return &TemporalFilter{Kind: TmpUpdatedAfter, Start: t}
}

// UpdatedBefore matches entries updated strictly before t.
func UpdatedBefore(t time.Time) *TemporalFilter {
	return &TemporalFilter{Kind: TmpUpdatedBefore, Start: t}
}

// UpdatedBetween matches entries updated in [start, end], inclusive.
func UpdatedBetween(start, end time.Time) *TemporalFilter {
	return &TemporalFilter{Kind: TmpUpdatedBetween, Start: start, End: end}
}

// QueryResult pairs a matching entry with its optional score and explanation.
type QueryResult struct {
	// Entry is the matching entry
	Entry *Entry `json:"entry"`

	// SimilarityScore is set only when a meaning filter was evaluated
	SimilarityScore *float64 `json:"similarity_score,omitempty"`

	// Explanation is set only when the query requested one
	Explanation *string `json:"explanation,omitempty"`
}

// NewQuery returns an empty query that matches every entry.
func NewQuery() Query {
	return Query{}
}

// WithMeaning adds a semantic similarity filter. Pass a nil threshold to
// rank without dropping candidates.
func (q Query) WithMeaning(vector []float32, threshold *float64) Query {
	q.Meaning = &MeaningFilter{Vector: vector, Threshold: threshold}
	return q
}

// WithTopK caps the meaning filter at the K most similar candidates.
// It has no effect unless a meaning filter is present.
func (q Query) WithTopK(k int) Query {
	if q.Meaning != nil {
		meaning := *q.Meaning
		meaning.TopK = &k
		q.Meaning = &meaning
	}
	return q
}

// WithExpression adds a text filter on the expression field.
func (q Query) WithExpression(filter *ExpressionFilter) Query {
	q.Expression = filter
	return q
}

// WithContext adds a context metadata filter.
func (q Query) WithContext(filter *ContextFilter) Query {
	q.Context = filter
	return q
}

// WithRelations adds a graph relationship filter.
func (q Query) WithRelations(filter *RelationFilter) Query {
	q.Relations = filter
	return q
}

// WithTemporal adds a timestamp filter.
func (q Query) WithTemporal(filter *TemporalFilter) Query {
	q.Temporal = filter
	return q
}

// WithLimit caps the total number of results.
func (q Query) WithLimit(limit int) Query {
	q.Limit = &limit
	return q
}

// WithExplanation requests a human-readable explanation per result.
func (q Query) WithExplanation() Query {
	q.Explain = true
	return q
}

// Float64 returns a pointer to v, for use with filter threshold fields.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for use with filter count fields.
func Int(v int) *int { return &v }
