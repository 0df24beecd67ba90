package graph

import (
	"testing"

	"github.com/google/uuid"
)

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func TestNeighbors(t *testing.T) {
	n := ids(4)
	adj := Build([]Edge{
		{From: n[0], To: n[1]},
		{From: n[2], To: n[0]},
	})

	neighbors := adj.Neighbors(n[0])
	if len(neighbors) != 2 || !neighbors[n[1]] || !neighbors[n[2]] {
		t.Errorf("Neighbors() = %v, want both edge directions", neighbors)
	}
	if len(adj.Neighbors(n[3])) != 0 {
		t.Error("isolated node has neighbors")
	}
}

func TestNeighborsExcludesSelf(t *testing.T) {
	n := ids(1)
	adj := Build([]Edge{{From: n[0], To: n[0]}})
	if adj.Neighbors(n[0])[n[0]] {
		t.Error("self loop put node in its own neighborhood")
	}
}

func TestHasRelations(t *testing.T) {
	n := ids(3)
	adj := Build([]Edge{{From: n[0], To: n[1]}})

	if !adj.HasRelations(n[0]) || !adj.HasRelations(n[1]) {
		t.Error("both endpoints of an edge should have relations")
	}
	if adj.HasRelations(n[2]) {
		t.Error("isolated node reported relations")
	}
}

func TestWithinDistance(t *testing.T) {
	// Chain: 0 - 1 - 2 - 3
	n := ids(4)
	adj := Build([]Edge{
		{From: n[0], To: n[1]},
		{From: n[1], To: n[2]},
		{From: n[2], To: n[3]},
	})

	tests := []struct {
		name    string
		maxHops int
		want    []uuid.UUID
	}{
		{name: "zero hops", maxHops: 0, want: nil},
		{name: "one hop", maxHops: 1, want: []uuid.UUID{n[1]}},
		{name: "two hops", maxHops: 2, want: []uuid.UUID{n[1], n[2]}},
		{name: "full chain", maxHops: 10, want: []uuid.UUID{n[1], n[2], n[3]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adj.WithinDistance(n[0], tt.maxHops)
			if len(got) != len(tt.want) {
				t.Fatalf("WithinDistance(%d) has %d nodes, want %d", tt.maxHops, len(got), len(tt.want))
			}
			for _, id := range tt.want {
				if !got[id] {
					t.Errorf("WithinDistance(%d) missing %s", tt.maxHops, id)
				}
			}
			if got[n[0]] {
				t.Error("start node in its own neighborhood")
			}
		})
	}
}

func TestWithinDistanceCycle(t *testing.T) {
	// Triangle: 0 - 1 - 2 - 0
	n := ids(3)
	adj := Build([]Edge{
		{From: n[0], To: n[1]},
		{From: n[1], To: n[2]},
		{From: n[2], To: n[0]},
	})

	got := adj.WithinDistance(n[0], 100)
	if len(got) != 2 || !got[n[1]] || !got[n[2]] {
		t.Errorf("cycle traversal = %v, want the other two nodes", got)
	}
}

func TestConnected(t *testing.T) {
	n := ids(4)
	adj := Build([]Edge{
		{From: n[0], To: n[1]},
		{From: n[1], To: n[2]},
	})

	if !adj.Connected(n[0], n[2], 2) {
		t.Error("two-hop path not found")
	}
	if adj.Connected(n[0], n[2], 1) {
		t.Error("two-hop path found within one hop")
	}
	if adj.Connected(n[0], n[3], 10) {
		t.Error("disconnected nodes reported connected")
	}
	if !adj.Connected(n[0], n[0], 0) {
		t.Error("node not connected to itself")
	}
}
