package workflow

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Plan snapshots the graph as a Plan so it can be rendered or saved and
// parsed back. Step attributes carry the node's kind, text, aspect ratio,
// status and, when set, its base prompt and output.
func (g *Graph) Plan(name string) *Plan {
	p := &Plan{Name: name, Steps: make(map[string]*Step, len(g.nodes))}
	for _, id := range g.order {
		n := g.nodes[id]
		attrs := map[string]string{
			"kind":   string(n.Kind),
			"status": string(n.Status),
			"aspect": n.AspectRatio,
		}
		if n.CustomText != "" {
			attrs["text"] = n.CustomText
		}
		if n.BasePrompt != "" {
			attrs["prompt"] = n.BasePrompt
		}
		if n.OutputRef != "" {
			attrs["output"] = string(n.OutputRef)
		}
		if n.FailReason != "" {
			attrs["reason"] = n.FailReason
		}
		p.Steps[id] = &Step{
			ID:          id,
			Kind:        n.Kind,
			Text:        n.CustomText,
			AspectRatio: n.AspectRatio,
			Parent:      n.ParentID,
			Attrs:       attrs,
		}
		p.Order = append(p.Order, id)
		if n.ParentID != "" {
			p.Edges = append(p.Edges, PlanEdge{From: n.ParentID, To: id})
		}
	}
	return p
}

// renderOrder returns step ids parent-first; steps the walk cannot reach are
// appended in declaration order.
func renderOrder(p *Plan) []string {
	order := p.Walk()
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		seen[id] = true
	}
	for _, id := range p.Order {
		if !seen[id] {
			order = append(order, id)
		}
	}
	return order
}

// truncate shortens s to maxLen chars, appending "…" if needed.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}

func sortedAttrKeys(attrs map[string]string) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if k != "kind" && k != "type" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// RenderText produces a human-readable summary of a plan.
func RenderText(p *Plan) string {
	var sb strings.Builder

	order := renderOrder(p)
	fmt.Fprintf(&sb, "Workflow: %s  (%d nodes, %d edges)\n", p.Name, len(p.Steps), len(p.Edges))

	maxIDLen := 4
	for id := range p.Steps {
		if len(id) > maxIDLen {
			maxIDLen = len(id)
		}
	}

	fmt.Fprintf(&sb, "\nNodes:\n")
	for _, id := range order {
		s := p.Steps[id]
		var attrParts []string
		for _, k := range sortedAttrKeys(s.Attrs) {
			v := strings.ReplaceAll(truncate(s.Attrs[k], 60), "\n", " ")
			attrParts = append(attrParts, k+"="+v)
		}
		fmt.Fprintf(&sb, "  %-*s  %-22s  %s\n", maxIDLen, id, string(s.Kind), strings.Join(attrParts, " "))
	}

	fmt.Fprintf(&sb, "\nEdges:\n")
	maxFromLen := 4
	for _, e := range p.Edges {
		if len(e.From) > maxFromLen {
			maxFromLen = len(e.From)
		}
	}
	for _, e := range p.Edges {
		fmt.Fprintf(&sb, "  %-*s  →  %s\n", maxFromLen, e.From, e.To)
	}

	return sb.String()
}

var bareDOTID = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var dotKeywords = map[string]bool{
	"node": true, "edge": true, "graph": true, "digraph": true, "subgraph": true, "strict": true,
}

// dotQuote returns the value as a DOT-safe string, quoting if necessary.
func dotQuote(s string) string {
	if bareDOTID.MatchString(s) && !dotKeywords[strings.ToLower(s)] {
		return s
	}
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	return `"` + escaped + `"`
}

// RenderDOT produces a canonical DOT digraph that ParsePlan reads back.
func RenderDOT(p *Plan) string {
	var sb strings.Builder

	name := p.Name
	if name == "" {
		name = "workflow"
	}
	fmt.Fprintf(&sb, "digraph %s {\n", dotQuote(name))

	for _, id := range renderOrder(p) {
		s := p.Steps[id]
		parts := []string{"kind=" + dotQuote(string(s.Kind))}
		for _, k := range sortedAttrKeys(s.Attrs) {
			parts = append(parts, k+"="+dotQuote(s.Attrs[k]))
		}
		fmt.Fprintf(&sb, "    %s [%s]\n", dotQuote(id), strings.Join(parts, " "))
	}

	for _, e := range p.Edges {
		fmt.Fprintf(&sb, "    %s -> %s\n", dotQuote(e.From), dotQuote(e.To))
	}

	fmt.Fprintf(&sb, "}\n")
	return sb.String()
}
