// Package contextdb provides an embedded semantic database for Go projects.
//
// contextdb stores entries that pair a meaning vector with an expression
// (the text the vector was derived from), arbitrary JSON context metadata,
// directed relations to other entries and creation/update timestamps. A
// single Query can combine up to five filter modalities: vector similarity,
// expression text matching, JSON-pointer context predicates, relation graph
// traversal and timestamp ranges. Results come back in a deterministic
// order with optional per-result match explanations.
//
// Built on SQLite via modernc.org/sqlite, so no cgo is required and the
// whole database lives in a single file (or in memory).
//
// # Quick Start
//
//	import (
//	    "context"
//
//	    "github.com/contextdb/contextdb"
//	    "github.com/contextdb/contextdb/pkg/core"
//	)
//
//	func main() {
//	    ctx := context.Background()
//
//	    db, _ := contextdb.Open(ctx, "knowledge.db")
//	    defer db.Close()
//
//	    entry := core.NewEntry([]float32{0.1, 0.2, 0.3}, "Go is awesome").
//	        WithContext(map[string]any{"topic": "languages"})
//	    _ = db.Insert(ctx, entry)
//
//	    query := core.NewQuery().
//	        WithMeaning([]float32{0.1, 0.2, 0.28}, core.Float64(0.7)).
//	        WithTopK(5)
//	    results, _ := db.Query(ctx, &query)
//	    _ = results
//	}
package contextdb
