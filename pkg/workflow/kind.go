package workflow

import "fmt"

// Kind identifies what a node does: a source produces an image from scratch,
// an operation transforms the output of its parent.
type Kind string

const (
	// Sources
	KindSourceUpload      Kind = "source-upload"
	KindSourceGenerate    Kind = "source-generate"
	KindSourceImageScript Kind = "source-imagescript"

	// Custom operations
	KindStyle       Kind = "op-style"
	Kind3D          Kind = "op-3d"
	KindEdit        Kind = "op-edit"
	KindResize      Kind = "op-resize"
	KindPromptMagic Kind = "op-prompt-magic"

	// Surreal & whimsical styles
	KindDreamscape  Kind = "op-dreamscape"
	KindStorybook   Kind = "op-storybook"
	KindGlitchmancy Kind = "op-glitchmancy"

	// Artistic styles
	KindOilPainting     Kind = "op-oil-painting"
	KindWatercolor      Kind = "op-watercolor"
	KindPencilSketch    Kind = "op-pencil-sketch"
	KindCharcoalDrawing Kind = "op-charcoal-drawing"
	KindComicBook       Kind = "op-comic-book"
	KindPopArt          Kind = "op-pop-art"
	KindImpressionism   Kind = "op-impressionism"
	KindAbstract        Kind = "op-abstract"
	KindPointillism     Kind = "op-pointillism"
	KindStainedGlass    Kind = "op-stained-glass"

	// Photographic effects
	KindVintagePhoto Kind = "op-vintage-photo"
	KindBW           Kind = "op-bw"
	KindLongExposure Kind = "op-long-exposure"
	KindBokeh        Kind = "op-bokeh"
	KindHDR          Kind = "op-hdr"
	KindDuotone      Kind = "op-duotone"
	KindPinhole      Kind = "op-pinhole"
	KindLomo         Kind = "op-lomo"
	KindTiltShift    Kind = "op-tilt-shift"
	KindNightVision  Kind = "op-night-vision"

	// Digital transformations
	KindPixelate     Kind = "op-pixelate"
	KindGlitch       Kind = "op-glitch"
	KindKaleidoscope Kind = "op-kaleidoscope"
	KindASCII        Kind = "op-ascii"
	KindLowPoly      Kind = "op-low-poly"
	KindHalftone     Kind = "op-halftone"
	KindAnaglyph     Kind = "op-anaglyph"
	KindScanlines    Kind = "op-scanlines"
	KindInvert       Kind = "op-invert"
	KindLiquify      Kind = "op-liquify"

	// Thematic styles
	KindCyberpunk  Kind = "op-cyberpunk"
	KindSteampunk  Kind = "op-steampunk"
	KindFantasy    Kind = "op-fantasy"
	KindSciFi      Kind = "op-sci-fi"
	KindMinimalist Kind = "op-minimalist"
	KindVaporwave  Kind = "op-vaporwave"
	KindGothic     Kind = "op-gothic"
	KindArtDeco    Kind = "op-art-deco"
	KindGrunge     Kind = "op-grunge"
	KindHologram   Kind = "op-hologram"

	// Creative additions
	KindStickerize Kind = "op-stickerize"
	KindLego       Kind = "op-lego"
	KindClaymation Kind = "op-claymation"
	KindBlueprint  Kind = "op-blueprint"
	KindNeonGlow   Kind = "op-neon-glow"

	// Multimedia
	KindGeneratePodcast Kind = "op-generate-podcast"
	KindVeoVideo        Kind = "op-veo-video"
)

type kindInfo struct {
	kind  Kind
	title string
}

// catalogue lists every kind in menu order.
var catalogue = []kindInfo{
	{KindSourceUpload, "Upload Image"},
	{KindSourceGenerate, "Generate (Prompt)"},
	{KindSourceImageScript, "Generate (ImageScript)"},
	{KindStyle, "Change Style (Custom)"},
	{Kind3D, "Make 3D"},
	{KindEdit, "Edit Image"},
	{KindResize, "Resize & Reframe"},
	{KindPromptMagic, "Creative Boost"},
	{KindDreamscape, "Dreamscape"},
	{KindStorybook, "Storybook Style"},
	{KindGlitchmancy, "Artistic Glitch"},
	{KindOilPainting, "Oil Painting"},
	{KindWatercolor, "Watercolor"},
	{KindPencilSketch, "Pencil Sketch"},
	{KindCharcoalDrawing, "Charcoal Drawing"},
	{KindComicBook, "Comic Book"},
	{KindPopArt, "Pop Art"},
	{KindImpressionism, "Impressionism"},
	{KindAbstract, "Abstract"},
	{KindPointillism, "Pointillism"},
	{KindStainedGlass, "Stained Glass"},
	{KindVintagePhoto, "Vintage Photo"},
	{KindBW, "Black & White"},
	{KindLongExposure, "Long Exposure"},
	{KindBokeh, "Bokeh"},
	{KindHDR, "HDR"},
	{KindDuotone, "Duotone"},
	{KindPinhole, "Pinhole Camera"},
	{KindLomo, "Lomography"},
	{KindTiltShift, "Tilt-Shift"},
	{KindNightVision, "Night Vision"},
	{KindPixelate, "Pixelate"},
	{KindGlitch, "Glitch Art"},
	{KindKaleidoscope, "Kaleidoscope"},
	{KindASCII, "ASCII Art"},
	{KindLowPoly, "Low Poly"},
	{KindHalftone, "Halftone"},
	{KindAnaglyph, "Anaglyph 3D"},
	{KindScanlines, "Scanlines"},
	{KindInvert, "Invert Colors"},
	{KindLiquify, "Liquify"},
	{KindCyberpunk, "Cyberpunk"},
	{KindSteampunk, "Steampunk"},
	{KindFantasy, "Fantasy"},
	{KindSciFi, "Sci-Fi"},
	{KindMinimalist, "Minimalist"},
	{KindVaporwave, "Vaporwave"},
	{KindGothic, "Gothic"},
	{KindArtDeco, "Art Deco"},
	{KindGrunge, "Grunge"},
	{KindHologram, "Hologram"},
	{KindStickerize, "Stickerize"},
	{KindLego, "Lego Bricks"},
	{KindClaymation, "Claymation"},
	{KindBlueprint, "Blueprint"},
	{KindNeonGlow, "Neon Glow"},
	{KindGeneratePodcast, "Generate Podcast"},
	{KindVeoVideo, "Generate Video (Veo)"},
}

var kindTitles = func() map[Kind]string {
	m := make(map[Kind]string, len(catalogue))
	for _, k := range catalogue {
		m[k.kind] = k.title
	}
	return m
}()

// AllKinds returns every kind in menu order.
func AllKinds() []Kind {
	out := make([]Kind, len(catalogue))
	for i, k := range catalogue {
		out[i] = k.kind
	}
	return out
}

// ParseKind validates s against the closed set of kinds.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kindTitles[k]
	return ok
}

// Title is the human-readable name shown in menus.
func (k Kind) Title() string {
	if t, ok := kindTitles[k]; ok {
		return t
	}
	return string(k)
}

// IsSource reports whether k starts a branch rather than transforming a parent.
func (k Kind) IsSource() bool {
	switch k {
	case KindSourceUpload, KindSourceGenerate, KindSourceImageScript:
		return true
	}
	return false
}

// ProducesText reports whether k yields a text output instead of an image.
func (k Kind) ProducesText() bool {
	return k == KindGeneratePodcast
}

// NeedsRecipe reports whether executing k requires a prompt recipe. Uploads
// are described rather than generated and scripts are compiled.
func (k Kind) NeedsRecipe() bool {
	return k != KindSourceUpload && k != KindSourceImageScript
}
