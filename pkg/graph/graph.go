// Package graph provides the in-memory relation adjacency index used for
// graph-bounded queries: direct neighborhoods, bounded breadth-first
// traversal and relation-existence checks.
package graph

import "github.com/google/uuid"

// Edge is one directed relation between two entries.
type Edge struct {
	From uuid.UUID
	To   uuid.UUID
}

// Adjacency is an undirected view over the relation edges of a store.
// Relations express association rather than hierarchy, so every edge is
// traversable in both directions.
type Adjacency struct {
	neighbors map[uuid.UUID][]uuid.UUID
}

// Build constructs an adjacency index from a list of directed edges.
func Build(edges []Edge) *Adjacency {
	adj := &Adjacency{neighbors: make(map[uuid.UUID][]uuid.UUID, len(edges)*2)}
	for _, edge := range edges {
		adj.neighbors[edge.From] = append(adj.neighbors[edge.From], edge.To)
		adj.neighbors[edge.To] = append(adj.neighbors[edge.To], edge.From)
	}
	return adj
}

// Neighbors returns the direct neighbors of id as a set. The entry itself
// is never a member.
func (a *Adjacency) Neighbors(id uuid.UUID) map[uuid.UUID]bool {
	result := make(map[uuid.UUID]bool, len(a.neighbors[id]))
	for _, neighbor := range a.neighbors[id] {
		if neighbor != id {
			result[neighbor] = true
		}
	}
	return result
}

// HasRelations reports whether id participates in at least one edge.
func (a *Adjacency) HasRelations(id uuid.UUID) bool {
	return len(a.neighbors[id]) > 0
}

// WithinDistance returns every node reachable from the given node in at
// most maxHops edges, as a set. The starting node is excluded from its own
// neighborhood and maxHops of zero yields an empty set. Traversal is a
// breadth-first search with a visited set, so cycles terminate and the hop
// distance of each result is the minimum edge count from the start.
func (a *Adjacency) WithinDistance(from uuid.UUID, maxHops int) map[uuid.UUID]bool {
	results := make(map[uuid.UUID]bool)
	if maxHops <= 0 {
		return results
	}

	type queued struct {
		id   uuid.UUID
		hops int
	}

	visited := map[uuid.UUID]bool{from: true}
	queue := []queued{{id: from, hops: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.hops >= maxHops {
			continue
		}

		for _, neighbor := range a.neighbors[current.id] {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			results[neighbor] = true
			queue = append(queue, queued{id: neighbor, hops: current.hops + 1})
		}
	}

	return results
}

// Connected reports whether two nodes are joined by a path of at most
// maxHops edges.
func (a *Adjacency) Connected(from, to uuid.UUID, maxHops int) bool {
	if from == to {
		return true
	}
	return a.WithinDistance(from, maxHops)[to]
}
