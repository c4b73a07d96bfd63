package imagescript

import (
	"regexp"
	"strings"
)

var (
	emptySegment  = regexp.MustCompile(`, ,`)
	doubledCommas = regexp.MustCompile(`,\s*,`)
)

// Compile turns a script into a prompt. It is total: when nothing in the
// script assembles into a prompt the trimmed input is returned unchanged.
func Compile(script string) string {
	if prompt := Parse(script).Prompt(); prompt != "" {
		return prompt
	}
	return strings.TrimSpace(script)
}

// Prompt assembles the document into a prompt. Segment order is fixed:
// subject, subject attributes, scene name, scene values, then the
// style/camera/palette details. Returns "" when nothing was parsed.
func (d *Document) Prompt() string {
	var segments []string

	switch {
	case d.Subject != nil:
		segments = append(segments, "A "+d.Subject.Name)
		if len(d.Subject.Attributes) > 0 {
			segments = append(segments, strings.Join(texts(d.Subject.Attributes), ", "))
		}
	case d.SceneSubject != "":
		segments = append(segments, "A scene of "+d.SceneSubject)
	}

	if d.Scene.Name != "" {
		segments = append(segments, "in a "+d.Scene.Name)
	}
	segments = append(segments, d.Scene.Values()...)

	var details []string
	if v := d.Style.Values(); len(v) > 0 {
		details = append(details, "style: ("+strings.Join(v, ", ")+")")
	}
	if v := d.Camera.Values(); len(v) > 0 {
		details = append(details, "camera details: ("+strings.Join(v, ", ")+")")
	}
	if v := d.Palette.Values(); len(v) > 0 {
		details = append(details, "color palette: ("+strings.Join(v, ", ")+")")
	}
	if len(details) > 0 {
		segments = append(segments, strings.Join(details, ", "))
	}

	kept := segments[:0]
	for _, s := range segments {
		if hasContent(s) {
			kept = append(kept, s)
		}
	}
	prompt := strings.Join(kept, ", ")
	prompt = emptySegment.ReplaceAllString(prompt, ",")
	prompt = doubledCommas.ReplaceAllString(prompt, ",")
	if !hasContent(prompt) {
		return ""
	}
	return prompt
}
