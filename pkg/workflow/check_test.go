package workflow

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// pair builds a root a with one child b.
func pair(t *testing.T) (g *Graph, a, b string) {
	t.Helper()
	g = NewGraph()
	a, err := g.AddNode(KindSourceGenerate, "")
	if err != nil {
		t.Fatalf("AddNode(a): %v", err)
	}
	b, err = g.AddNode(KindStyle, a)
	if err != nil {
		t.Fatalf("AddNode(b): %v", err)
	}
	return g, a, b
}

func hasProblem(probs []Problem, nodeID, substr string) bool {
	for _, p := range probs {
		if p.NodeID == nodeID && strings.Contains(p.Message, substr) {
			return true
		}
	}
	return false
}

func TestDescendants_TerminatesOnCycle(t *testing.T) {
	g, a, b := pair(t)
	// a → b → a
	g.nodes[a].ParentID = b
	g.children[b] = append(g.children[b], a)

	got := g.Descendants(a)
	if diff := cmp.Diff([]string{b}, got); diff != "" {
		t.Errorf("Descendants (-want +got):\n%s", diff)
	}
	if got := g.Descendants(b); !cmp.Equal(got, []string{a}) {
		t.Errorf("Descendants(b) = %v, want [a]", got)
	}

	probs := g.Problems()
	for _, id := range []string{a, b} {
		if !hasProblem(probs, id, "cycle") {
			t.Errorf("no cycle reported for %s in %v", id, probs)
		}
	}
	if g.Check() == nil {
		t.Error("Check() = nil on a cyclic graph")
	}
}

func TestProblems_Corruption(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(g *Graph, a, b string)
		node    func(a, b string) string
		want    string
	}{
		{
			name:    "dangling parent",
			corrupt: func(g *Graph, a, b string) { g.nodes[b].ParentID = "node-ghost" },
			node:    func(a, b string) string { return b },
			want:    `parent "node-ghost" does not exist`,
		},
		{
			name:    "missing from child index",
			corrupt: func(g *Graph, a, b string) { delete(g.children, a) },
			node:    func(a, b string) string { return b },
			want:    "missing from its parent's child index",
		},
		{
			name:    "indexed child does not exist",
			corrupt: func(g *Graph, a, b string) { g.children[a] = append(g.children[a], "node-ghost") },
			node:    func(a, b string) string { return a },
			want:    `child "node-ghost" does not exist`,
		},
		{
			name:    "indexed under the wrong parent",
			corrupt: func(g *Graph, a, b string) { g.children[b] = []string{a} },
			node:    func(a, b string) string { return a },
			want:    "indexed under",
		},
		{
			name:    "index entry for a removed node",
			corrupt: func(g *Graph, a, b string) { g.children["node-ghost"] = nil },
			node:    func(a, b string) string { return "node-ghost" },
			want:    "does not exist",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, a, b := pair(t)
			if err := g.Check(); err != nil {
				t.Fatalf("Check before corruption: %v", err)
			}
			tt.corrupt(g, a, b)
			probs := g.Problems()
			if !hasProblem(probs, tt.node(a, b), tt.want) {
				t.Errorf("problems = %v, want %q on the affected node", probs, tt.want)
			}
		})
	}
}

func TestProblems_StableOrder(t *testing.T) {
	g := NewGraph()
	var ids []string
	for i := 0; i < 8; i++ {
		id, err := g.AddNode(KindSourceGenerate, "")
		if err != nil {
			t.Fatal(err)
		}
		child, err := g.AddNode(KindStyle, id)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id, child)
	}
	for i := 0; i < len(ids); i += 2 {
		g.children[ids[i]] = append(g.children[ids[i]], "node-ghost")
	}

	first := g.Problems()
	if len(first) != 8 {
		t.Fatalf("problems = %d, want 8", len(first))
	}
	for i := 0; i < 20; i++ {
		if diff := cmp.Diff(first, g.Problems()); diff != "" {
			t.Fatalf("Problems order changed (-first +now):\n%s", diff)
		}
	}
}
