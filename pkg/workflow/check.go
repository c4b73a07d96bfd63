package workflow

import (
	"fmt"
	"slices"
	"strings"
)

// Problem describes a structural defect found by Check.
type Problem struct {
	NodeID  string
	Message string
}

func (p Problem) Error() string {
	if p.NodeID != "" {
		return fmt.Sprintf("node %q: %s", p.NodeID, p.Message)
	}
	return p.Message
}

// Problems verifies the forest invariant: every parent link points at a live
// node, the child index agrees with the parent links, and following parents
// from any node ends at a root. Returns all discovered problems.
func (g *Graph) Problems() []Problem {
	var probs []Problem

	for _, id := range g.order {
		n := g.nodes[id]
		if n.ParentID == "" {
			continue
		}
		if _, ok := g.nodes[n.ParentID]; !ok {
			probs = append(probs, Problem{NodeID: id, Message: fmt.Sprintf("parent %q does not exist", n.ParentID)})
			continue
		}
		if !slices.Contains(g.children[n.ParentID], id) {
			probs = append(probs, Problem{NodeID: id, Message: "missing from its parent's child index"})
		}
	}

	for _, parent := range g.childIndexKeys() {
		if _, ok := g.nodes[parent]; !ok {
			probs = append(probs, Problem{NodeID: parent, Message: "child index entry for a node that does not exist"})
		}
		for _, kid := range g.children[parent] {
			n, ok := g.nodes[kid]
			if !ok {
				probs = append(probs, Problem{NodeID: parent, Message: fmt.Sprintf("child %q does not exist", kid)})
				continue
			}
			if n.ParentID != parent {
				probs = append(probs, Problem{NodeID: kid, Message: fmt.Sprintf("indexed under %q but parent is %q", parent, n.ParentID)})
			}
		}
	}

	for _, id := range g.order {
		seen := map[string]bool{}
		for cur := id; cur != ""; {
			if seen[cur] {
				probs = append(probs, Problem{NodeID: id, Message: "parent chain contains a cycle"})
				break
			}
			seen[cur] = true
			n, ok := g.nodes[cur]
			if !ok {
				break
			}
			cur = n.ParentID
		}
	}

	return probs
}

// childIndexKeys lists the parents in the child index: live nodes in creation
// order, then stray entries sorted.
func (g *Graph) childIndexKeys() []string {
	keys := make([]string, 0, len(g.children))
	for _, id := range g.order {
		if _, ok := g.children[id]; ok {
			keys = append(keys, id)
		}
	}
	var stray []string
	for id := range g.children {
		if _, ok := g.nodes[id]; !ok {
			stray = append(stray, id)
		}
	}
	slices.Sort(stray)
	return append(keys, stray...)
}

// Check calls Problems and returns nil if the graph is sound, or a combined
// error listing every problem.
func (g *Graph) Check() error {
	probs := g.Problems()
	if len(probs) == 0 {
		return nil
	}
	msgs := make([]string, len(probs))
	for i, p := range probs {
		msgs[i] = p.Error()
	}
	return fmt.Errorf("workflow graph invalid:\n  %s", strings.Join(msgs, "\n  "))
}
