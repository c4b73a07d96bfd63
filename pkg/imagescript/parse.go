// Package imagescript compiles ImageScript, a small declarative language of
// create/set blocks, into a single natural-language image prompt.
//
//	// a subject and its surroundings
//	create creature "dragon" {
//	    description: "ancient";
//	}
//	set scene "cave" { lighting: "dark"; }
//	set style { medium: "oil painting"; }
//
// compiles to "A dragon, ancient, in a cave, dark, style: (oil painting)".
package imagescript

import (
	"regexp"
	"strings"
)

var (
	lineComment = regexp.MustCompile(`//.*`)
	lineBreaks  = regexp.MustCompile(`[\r\n]+`)

	// Blocks are matched on the flattened text; braces do not nest.
	createBlock  = regexp.MustCompile(`create\s+(\w+)\s+"([^"]+)"\s*\{([^}]+)\}`)
	setBlock     = regexp.MustCompile(`set\s+(\w+)(?:\s+"([^"]+)")?\s*\{([^}]+)\}`)
	sceneSubject = regexp.MustCompile(`set\s+scene\s+"([^"]+)"`)
	property     = regexp.MustCompile(`(?:(\w+)\s*)?:\s*"([^"]+)"`)
)

// Block kinds recognised by set blocks.
const (
	BlockScene   = "scene"
	BlockStyle   = "style"
	BlockCamera  = "camera"
	BlockPalette = "palette"
)

// Attribute is one property of a block. Label is cosmetic; only Text
// contributes to the compiled prompt.
type Attribute struct {
	Label string
	Text  string
}

// Subject is the primary entity declared by a create block.
type Subject struct {
	Kind       string
	Name       string
	Attributes []Attribute
}

// NamedBlock accumulates the attributes of every set block of one kind.
// Only scene blocks carry a Name; the last named occurrence wins.
type NamedBlock struct {
	Name       string
	Attributes []Attribute
}

// Values returns the attribute texts in source order.
func (b NamedBlock) Values() []string {
	return texts(b.Attributes)
}

// Document is the parsed form of a script.
type Document struct {
	// Subject is nil when the script has no create block. Only the first
	// create block is honoured.
	Subject *Subject
	Scene   NamedBlock
	Style   NamedBlock
	Camera  NamedBlock
	Palette NamedBlock

	// SceneSubject is the name of the first `set scene "name"` occurrence,
	// used as the subject phrase when no create block exists.
	SceneSubject string
}

// Parse extracts the blocks of a script. It never fails: text that does not
// match a block is ignored.
func Parse(script string) *Document {
	src := Clean(script)
	doc := &Document{}

	if m := createBlock.FindStringSubmatch(src); m != nil {
		doc.Subject = &Subject{
			Kind:       m[1],
			Name:       m[2],
			Attributes: parseAttributes(m[3]),
		}
	}

	for _, m := range setBlock.FindAllStringSubmatch(src, -1) {
		kind, name, attrs := m[1], m[2], parseAttributes(m[3])
		var block *NamedBlock
		switch kind {
		case BlockScene:
			block = &doc.Scene
			if name != "" {
				block.Name = name
			}
		case BlockStyle:
			block = &doc.Style
		case BlockCamera:
			block = &doc.Camera
		case BlockPalette:
			block = &doc.Palette
		default:
			continue
		}
		block.Attributes = append(block.Attributes, attrs...)
	}

	if m := sceneSubject.FindStringSubmatch(src); m != nil {
		doc.SceneSubject = m[1]
	}
	return doc
}

// Clean strips line comments and collapses line breaks to single spaces.
func Clean(script string) string {
	s := lineComment.ReplaceAllString(script, "")
	return lineBreaks.ReplaceAllString(s, " ")
}

func parseAttributes(body string) []Attribute {
	matches := property.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]Attribute, 0, len(matches))
	for _, m := range matches {
		out = append(out, Attribute{Label: m[1], Text: m[2]})
	}
	return out
}

func texts(attrs []Attribute) []string {
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a.Text)
	}
	return out
}

// hasContent reports whether s is non-blank.
func hasContent(s string) bool {
	return strings.TrimSpace(s) != ""
}
