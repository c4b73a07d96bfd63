package workflow

import (
	"fmt"
	"slices"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"
)

// AspectRatios lists the aspect ratios the image service accepts.
var AspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4"}

// ValidAspectRatio reports whether r is one of AspectRatios.
func ValidAspectRatio(r string) bool {
	return slices.Contains(AspectRatios, r)
}

// Step is one node of a Plan.
type Step struct {
	ID          string
	Kind        Kind
	Text        string // custom text or script
	TextFile    string // file to read Text from, relative to the plan
	AspectRatio string
	Parent      string
	Attrs       map[string]string // all DOT attributes
}

// PlanEdge is a parent→child link declared in a plan.
type PlanEdge struct {
	From string
	To   string
}

// Plan is a workflow described ahead of time in Graphviz DOT:
//
//	digraph harbor {
//	    base  [kind="source-generate", text="a harbor at dawn"]
//	    oil   [kind="op-oil-painting"]
//	    wide  [kind="op-resize", aspect="16:9"]
//	    base -> oil
//	    base -> wide
//	}
type Plan struct {
	Name  string
	Steps map[string]*Step
	Order []string // declaration order
	Edges []PlanEdge
}

// ParsePlan parses a Graphviz DOT string into a Plan. The result is not
// validated; call ValidateErr before building a graph from it.
func ParsePlan(src string) (*Plan, error) {
	graphAst, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("dot parse error: %w", err)
	}
	collector := newDOTCollector()
	if err := gographviz.Analyse(graphAst, collector); err != nil {
		return nil, fmt.Errorf("dot analyse error: %w", err)
	}

	p := &Plan{
		Name:  collector.name,
		Steps: make(map[string]*Step, len(collector.nodes)),
	}
	for _, id := range collector.order {
		attrs := collector.nodes[id]
		kind := attrs["kind"]
		if kind == "" {
			kind = attrs["type"]
		}
		text := attrs["text"]
		if text == "" {
			text = attrs["script"]
		}
		aspect := attrs["aspect"]
		if aspect == "" {
			aspect = DefaultAspectRatio
		}
		p.Steps[id] = &Step{
			ID:          id,
			Kind:        Kind(kind),
			Text:        text,
			TextFile:    attrs["text_file"],
			AspectRatio: aspect,
			Attrs:       attrs,
		}
		p.Order = append(p.Order, id)
	}
	for _, e := range collector.edges {
		p.Edges = append(p.Edges, PlanEdge{From: e.from, To: e.to})
		if s, ok := p.Steps[e.to]; ok && s.Parent == "" {
			s.Parent = e.from
		}
	}
	return p, nil
}

// Children returns the steps whose parent is id, in declaration order.
func (p *Plan) Children(id string) []string {
	var out []string
	for _, sid := range p.Order {
		if p.Steps[sid].Parent == id {
			out = append(out, sid)
		}
	}
	return out
}

// Roots returns the steps without a parent, in declaration order.
func (p *Plan) Roots() []string {
	return p.Children("")
}

// Walk returns step ids breadth-first from the roots, so every step appears
// after its parent. Steps caught in a cycle are not returned.
func (p *Plan) Walk() []string {
	var order []string
	queue := p.Roots()
	seen := map[string]bool{}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
		queue = append(queue, p.Children(id)...)
	}
	return order
}

// Validate checks that the plan describes a forest of known kinds.
// Returns all discovered problems.
func (p *Plan) Validate() []Problem {
	var probs []Problem

	incoming := map[string]int{}
	for _, e := range p.Edges {
		if _, ok := p.Steps[e.From]; !ok {
			probs = append(probs, Problem{Message: fmt.Sprintf("edge references unknown source node %q", e.From)})
		}
		if _, ok := p.Steps[e.To]; !ok {
			probs = append(probs, Problem{Message: fmt.Sprintf("edge references unknown target node %q", e.To)})
		}
		incoming[e.To]++
	}

	for _, id := range p.Order {
		s := p.Steps[id]
		switch {
		case s.Kind == "":
			probs = append(probs, Problem{NodeID: id, Message: "missing kind attribute"})
		case !s.Kind.Valid():
			probs = append(probs, Problem{NodeID: id, Message: fmt.Sprintf("unknown kind %q", s.Kind)})
		case s.Kind.IsSource() && s.Parent != "":
			probs = append(probs, Problem{NodeID: id, Message: fmt.Sprintf("source kind %q cannot have a parent", s.Kind)})
		case !s.Kind.IsSource() && s.Parent == "":
			probs = append(probs, Problem{NodeID: id, Message: fmt.Sprintf("operation kind %q needs a parent", s.Kind)})
		}
		if n := incoming[id]; n > 1 {
			probs = append(probs, Problem{NodeID: id, Message: fmt.Sprintf("has %d parents; at most one allowed", n)})
		}
		if !ValidAspectRatio(s.AspectRatio) {
			probs = append(probs, Problem{NodeID: id, Message: fmt.Sprintf("unsupported aspect ratio %q", s.AspectRatio)})
		}
		if s.Kind == KindSourceUpload && s.Attrs["file"] == "" {
			probs = append(probs, Problem{NodeID: id, Message: `upload source needs a "file" attribute`})
		}
	}

	reached := map[string]bool{}
	for _, id := range p.Walk() {
		reached[id] = true
	}
	for _, id := range p.Order {
		if !reached[id] && p.Steps[id].Parent != "" {
			probs = append(probs, Problem{NodeID: id, Message: "not reachable from a source (cycle)"})
		}
	}
	return probs
}

// ValidateErr calls Validate and returns nil if there are no problems, or a
// combined error listing all of them.
func (p *Plan) ValidateErr() error {
	probs := p.Validate()
	if len(probs) == 0 {
		return nil
	}
	msgs := make([]string, len(probs))
	for i, pr := range probs {
		msgs[i] = pr.Error()
	}
	return fmt.Errorf("plan validation failed:\n  %s", strings.Join(msgs, "\n  "))
}

// ─── permissive DOT collector ─────────────────────────────────────────────────

type rawEdge struct {
	from, to string
}

// dotCollector implements gographviz.Interface without attribute validation.
type dotCollector struct {
	name  string
	nodes map[string]map[string]string // id → attrs
	order []string
	edges []rawEdge
}

func newDOTCollector() *dotCollector {
	return &dotCollector{nodes: make(map[string]map[string]string)}
}

func (c *dotCollector) SetStrict(_ bool) error { return nil }
func (c *dotCollector) SetDir(_ bool) error    { return nil }
func (c *dotCollector) SetName(n string) error { c.name = unquote(n); return nil }
func (c *dotCollector) String() string         { return c.name }

func (c *dotCollector) AddNode(_ string, name string, attrs map[string]string) error {
	id := unquote(name)
	if _, ok := c.nodes[id]; !ok {
		c.nodes[id] = make(map[string]string, len(attrs))
		c.order = append(c.order, id)
	}
	for k, v := range attrs {
		c.nodes[id][k] = unquote(v)
	}
	return nil
}

func (c *dotCollector) AddEdge(src, dst string, _ bool, _ map[string]string) error {
	c.edges = append(c.edges, rawEdge{from: unquote(src), to: unquote(dst)})
	return nil
}

func (c *dotCollector) AddPortEdge(src, _, dst, _ string, directed bool, attrs map[string]string) error {
	return c.AddEdge(src, dst, directed, attrs)
}

func (c *dotCollector) AddAttr(_ string, _, _ string) error { return nil }

func (c *dotCollector) AddSubGraph(_, _ string, _ map[string]string) error { return nil }

// unquote strips surrounding double-quotes from a DOT value and resolves
// the escapes written by dotQuote.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	s = s[1 : len(s)-1]
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case '"', '\\':
			sb.WriteByte(s[i])
		case 'n':
			sb.WriteByte('\n')
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
