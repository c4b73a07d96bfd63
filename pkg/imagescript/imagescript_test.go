package imagescript_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ravi-parthasarathy/artiffex/pkg/imagescript"
)

// ─── Compile ──────────────────────────────────────────────────────────────────

func TestCompile_NoBlocksReturnsTrimmedInput(t *testing.T) {
	tests := []string{
		"  a lighthouse at dusk  ",
		"",
		"set lighting { glow: \"soft\"; }",
		"create creature \"dragon\" { description: \"ancient\";",
		"\n\t// only a comment\n",
	}
	for _, src := range tests {
		if got, want := imagescript.Compile(src), strings.TrimSpace(src); got != want {
			t.Errorf("Compile(%q) = %q, want %q", src, got, want)
		}
	}
}

func TestCompile_SubjectAndScene(t *testing.T) {
	src := `create creature "dragon" { description: "ancient"; }
set scene "cave" { lighting: "dark"; }`
	got := imagescript.Compile(src)
	if !strings.HasPrefix(got, "A dragon, ancient, in a cave, dark") {
		t.Errorf("Compile = %q, want prefix %q", got, "A dragon, ancient, in a cave, dark")
	}
}

func TestCompile_StyleGroup(t *testing.T) {
	src := `create robot "butler" { finish: "chrome"; }
set style { medium: "v1"; mood: "v2"; }`
	got := imagescript.Compile(src)
	if !strings.Contains(got, "style: (v1, v2)") {
		t.Errorf("Compile = %q, want it to contain %q", got, "style: (v1, v2)")
	}
}

func TestCompile_PaletteAccumulates(t *testing.T) {
	src := `create flower "rose" { petals: "open"; }
set palette { main: "red"; }
set palette { accent: "blue"; }`
	got := imagescript.Compile(src)
	want := "A rose, open, color palette: (red, blue)"
	if got != want {
		t.Errorf("Compile = %q, want %q", got, want)
	}
}

func TestCompile_FullScript(t *testing.T) {
	src := `// the hero
create creature "dragon" {
    description: "ancient"; // scales and all
    color: "red";
}

set scene "cave" {
    lighting: "dark";
}
set style { medium: "oil painting"; }
set camera { lens: "35mm"; angle: "low"; }
set palette { tones: "ember"; }`
	want := "A dragon, ancient, red, in a cave, dark, " +
		"style: (oil painting), camera details: (35mm, low), color palette: (ember)"
	if got := imagescript.Compile(src); got != want {
		t.Errorf("Compile =\n  %q\nwant\n  %q", got, want)
	}
}

func TestCompile_OnlyFirstCreateHonoured(t *testing.T) {
	src := `create creature "dragon" { age: "old"; }
create creature "unicorn" { age: "young"; }`
	if got, want := imagescript.Compile(src), "A dragon, old"; got != want {
		t.Errorf("Compile = %q, want %q", got, want)
	}
}

func TestCompile_SceneFallbackSubject(t *testing.T) {
	src := `set scene "forest" { mood: "misty"; }`
	if got, want := imagescript.Compile(src), "A scene of forest, in a forest, misty"; got != want {
		t.Errorf("Compile = %q, want %q", got, want)
	}
}

func TestCompile_LastSceneNameWins(t *testing.T) {
	src := `set scene "cave" { light: "dark"; }
set scene "lake" { water: "calm"; }`
	// The fallback subject uses the first scene name; the location phrase uses the last.
	want := "A scene of cave, in a lake, dark, calm"
	if got := imagescript.Compile(src); got != want {
		t.Errorf("Compile = %q, want %q", got, want)
	}
}

func TestCompile_CommentedBlocksIgnored(t *testing.T) {
	src := `// create creature "ghost" { mood: "eerie"; }
create cat "tabby" { pose: "sleeping"; }`
	if got, want := imagescript.Compile(src), "A tabby, sleeping"; got != want {
		t.Errorf("Compile = %q, want %q", got, want)
	}
}

func TestCompile_DetailsWithoutSubject(t *testing.T) {
	src := `set style { medium: "ink"; }`
	if got, want := imagescript.Compile(src), "style: (ink)"; got != want {
		t.Errorf("Compile = %q, want %q", got, want)
	}
}

// ─── Parse ────────────────────────────────────────────────────────────────────

func TestParse_SubjectAttributesKeepOrderAndDuplicates(t *testing.T) {
	src := `create creature "dragon" { wing: "left"; wing: "right"; eyes: "gold"; }`
	doc := imagescript.Parse(src)
	if doc.Subject == nil {
		t.Fatal("Subject is nil")
	}
	want := &imagescript.Subject{
		Kind: "creature",
		Name: "dragon",
		Attributes: []imagescript.Attribute{
			{Label: "wing", Text: "left"},
			{Label: "wing", Text: "right"},
			{Label: "eyes", Text: "gold"},
		},
	}
	if diff := cmp.Diff(want, doc.Subject); diff != "" {
		t.Errorf("Subject mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_BlocksAccumulateAcrossOccurrences(t *testing.T) {
	src := `set style { a: "one"; }
set camera { lens: "wide"; }
set style { b: "two"; }
set weather { rain: "heavy"; }`
	doc := imagescript.Parse(src)
	if diff := cmp.Diff([]string{"one", "two"}, doc.Style.Values()); diff != "" {
		t.Errorf("style values (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"wide"}, doc.Camera.Values()); diff != "" {
		t.Errorf("camera values (-want +got):\n%s", diff)
	}
	if len(doc.Palette.Attributes) != 0 {
		t.Errorf("palette = %v, want empty", doc.Palette.Attributes)
	}
	if doc.Subject != nil {
		t.Errorf("Subject = %+v, want nil", doc.Subject)
	}
}

func TestParse_UnnamedSceneKeepsEarlierName(t *testing.T) {
	src := `set scene "harbor" { time: "dawn"; }
set scene { gulls: "circling"; }`
	doc := imagescript.Parse(src)
	if doc.Scene.Name != "harbor" {
		t.Errorf("scene name = %q, want harbor", doc.Scene.Name)
	}
	if diff := cmp.Diff([]string{"dawn", "circling"}, doc.Scene.Values()); diff != "" {
		t.Errorf("scene values (-want +got):\n%s", diff)
	}
}

func TestClean(t *testing.T) {
	got := imagescript.Clean("a // note\r\nb\n\nc")
	if got != "a  b c" {
		t.Errorf("Clean = %q, want %q", got, "a  b c")
	}
}

// ─── Lint ─────────────────────────────────────────────────────────────────────

func TestLint_MissingSemicolon(t *testing.T) {
	src := `create creature "dragon" {
    description: "ancient"
    color: "red";
}
set style { medium: "ink"; }
set camera {
    lens: "35mm"
}`
	want := []imagescript.LintError{
		{Line: 2, Message: "Missing semicolon at the end of the line."},
		{Line: 7, Message: "Missing semicolon at the end of the line."},
	}
	if diff := cmp.Diff(want, imagescript.Lint(src)); diff != "" {
		t.Errorf("Lint mismatch (-want +got):\n%s", diff)
	}
}

func TestLint_CleanScript(t *testing.T) {
	src := `create creature "dragon" { description: "ancient"; }`
	if errs := imagescript.Lint(src); len(errs) != 0 {
		t.Errorf("Lint = %v, want none", errs)
	}
	if err := imagescript.LintErr(src); err != nil {
		t.Errorf("LintErr = %v, want nil", err)
	}
}

func TestLintErr_ListsProblems(t *testing.T) {
	err := imagescript.LintErr("a: \"b\"\nc: \"d\"")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "L1:") || !strings.Contains(err.Error(), "L2:") {
		t.Errorf("error = %q, want both lines listed", err)
	}
}
