// Package workflow holds the branching image pipeline: nodes, their
// parent links, and the cascading delete/invalidate operations.
//
// A Graph is a forest of out-trees. Each node stores at most one parent
// back-reference and the only way to create a link is to attach a new node
// under an existing one, so no node can gain a second parent and no cycle can
// be formed. Graph does no locking; callers serialise access.
package workflow

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Graph owns the nodes of a workflow and their parent links.
type Graph struct {
	nodes    map[string]*Node
	order    []string            // creation order
	children map[string][]string // parent id → child ids, creation order
	newID    func() string
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		newID:    func() string { return "node-" + uuid.NewString() },
	}
}

// AddNode creates a node of the given kind. With a non-empty parentID the
// node is attached as a child of that node; when the parent currently holds
// a ready output its base prompt and output seed the new node.
func (g *Graph) AddNode(kind Kind, parentID string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("add node: %w: %q", ErrUnknownKind, kind)
	}
	var parent *Node
	if parentID != "" {
		p, ok := g.nodes[parentID]
		if !ok {
			return "", fmt.Errorf("add node: parent %q: %w", parentID, ErrNotFound)
		}
		parent = p
	}

	n := &Node{
		ID:          g.newID(),
		Kind:        kind,
		AspectRatio: DefaultAspectRatio,
		Status:      StatusIdle,
	}
	if parent != nil {
		n.ParentID = parent.ID
		if parent.HasOutput() {
			n.BasePrompt = parent.BasePrompt
			n.InputRef = parent.OutputRef
		}
		g.children[parent.ID] = append(g.children[parent.ID], n.ID)
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return n.ID, nil
}

// UpdateNode merges p into the node's mutable fields.
func (g *Graph) UpdateNode(id string, p Patch) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("update node %q: %w", id, ErrNotFound)
	}
	if err := p.apply(n); err != nil {
		return fmt.Errorf("update node %q: %w", id, err)
	}
	return nil
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns copies of all nodes in creation order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.nodes[id])
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Edges returns one edge per non-root node, in child creation order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, id := range g.order {
		n := g.nodes[id]
		if n.ParentID == "" {
			continue
		}
		out = append(out, Edge{ID: edgeID(n.ParentID, n.ID), SourceID: n.ParentID, TargetID: n.ID})
	}
	return out
}

// Children returns the ids of the direct children of id.
func (g *Graph) Children(id string) []string {
	return append([]string(nil), g.children[id]...)
}

// Roots returns the ids of nodes without a parent, in creation order.
func (g *Graph) Roots() []string {
	var out []string
	for _, id := range g.order {
		if g.nodes[id].ParentID == "" {
			out = append(out, id)
		}
	}
	return out
}

// Descendants returns every node reachable from startID by following
// parent→child links, in breadth-first order. startID itself is never
// included. The visited set keeps the walk finite even if the links were
// somehow cyclic.
func (g *Graph) Descendants(startID string) []string {
	var out []string
	visited := map[string]bool{startID: true}
	queue := []string{startID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.children[cur] {
			if visited[child] {
				continue
			}
			visited[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// DeleteSubtree removes startID and all of its descendants and returns the
// removed ids. Unknown ids remove nothing.
func (g *Graph) DeleteSubtree(startID string) []string {
	if _, ok := g.nodes[startID]; !ok {
		return nil
	}
	removed := append([]string{startID}, g.Descendants(startID)...)
	g.remove(removed)
	return removed
}

// InvalidateDescendants removes every descendant of nodeID, keeping nodeID
// and its own parent link, and returns the removed ids.
func (g *Graph) InvalidateDescendants(nodeID string) []string {
	removed := g.Descendants(nodeID)
	g.remove(removed)
	return removed
}

func (g *Graph) remove(ids []string) {
	if len(ids) == 0 {
		return
	}
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}
	for _, id := range ids {
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		if p := n.ParentID; p != "" && !gone[p] {
			g.children[p] = slices.DeleteFunc(g.children[p], func(c string) bool { return c == id })
			if len(g.children[p]) == 0 {
				delete(g.children, p)
			}
		}
		delete(g.children, id)
		delete(g.nodes, id)
	}
	kept := g.order[:0]
	for _, id := range g.order {
		if !gone[id] {
			kept = append(kept, id)
		}
	}
	g.order = kept
}
