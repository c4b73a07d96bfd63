// Package recipe maps each workflow kind to the function that turns a
// node's base prompt and custom text into the prompt sent for generation.
package recipe

import (
	"errors"
	"fmt"

	"github.com/ravi-parthasarathy/artiffex/pkg/workflow"
)

// ErrNoRecipe is returned by Get for a kind without a registered recipe.
var ErrNoRecipe = errors.New("no recipe registered")

// Recipe builds a final prompt from the upstream description and the node's
// custom text. Recipes are pure.
type Recipe func(base, custom string) string

// Registry maps kinds to recipes.
type Registry struct {
	recipes map[workflow.Kind]Recipe
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{recipes: make(map[workflow.Kind]Recipe)}
}

// Register associates a recipe with a kind, replacing any previous one.
func (r *Registry) Register(kind workflow.Kind, fn Recipe) {
	r.recipes[kind] = fn
}

// Get returns the recipe for a kind, or ErrNoRecipe if none is registered.
func (r *Registry) Get(kind workflow.Kind) (Recipe, error) {
	fn, ok := r.recipes[kind]
	if !ok {
		return nil, fmt.Errorf("%w for kind %q", ErrNoRecipe, kind)
	}
	return fn, nil
}

// Missing returns the kinds in workflow.AllKinds that need a recipe but have
// none registered.
func (r *Registry) Missing() []workflow.Kind {
	var out []workflow.Kind
	for _, k := range workflow.AllKinds() {
		if _, ok := r.recipes[k]; !ok && k.NeedsRecipe() {
			out = append(out, k)
		}
	}
	return out
}

// styleTemplates are the fixed-style operations; %s is the base prompt.
var styleTemplates = map[workflow.Kind]string{
	workflow.KindDreamscape:      "%s, in a surreal, dreamy, ethereal style, with swirling colors and abstract shapes, vaporous, atmospheric",
	workflow.KindStorybook:       "%s, in the style of a classic children's storybook illustration, with charming characters and a whimsical feel",
	workflow.KindGlitchmancy:     "%s, an artistic glitch effect, with beautiful digital decay, chromatic aberration, and pixel sorting aesthetics",
	workflow.KindOilPainting:     "%s, in a lush, textured oil painting style",
	workflow.KindWatercolor:      "%s, in a soft, blended watercolor style",
	workflow.KindPencilSketch:    "%s, as a detailed, monochrome pencil sketch",
	workflow.KindCharcoalDrawing: "%s, as a dramatic charcoal drawing",
	workflow.KindComicBook:       "%s, in a bold, graphic comic book art style with halftone dots",
	workflow.KindPopArt:          "%s, in the style of Andy Warhol pop art",
	workflow.KindImpressionism:   "%s, in the style of Impressionist painting with visible brushstrokes",
	workflow.KindAbstract:        "An abstract interpretation of %s",
	workflow.KindPointillism:     "%s, in the style of pointillism",
	workflow.KindStainedGlass:    "%s, as a vibrant stained glass window",
	workflow.KindVintagePhoto:    "%s, as a faded, sepia-toned vintage photograph from the 1920s",
	workflow.KindBW:              "%s, as a high-contrast black and white photograph",
	workflow.KindLongExposure:    "%s, with motion blur and light trails, as a long exposure photograph",
	workflow.KindBokeh:           "%s, with a soft, out-of-focus background with beautiful bokeh",
	workflow.KindHDR:             "%s, as a high-dynamic-range (HDR) image with intense detail and color",
	workflow.KindDuotone:         "%s, in a two-color duotone effect, blue and yellow",
	workflow.KindPinhole:         "%s, as if taken with a pinhole camera, with vignetting and soft focus",
	workflow.KindLomo:            "%s, as a lomography photo with saturated colors and vignetting",
	workflow.KindTiltShift:       "%s, as a tilt-shift photo, making it look like a miniature model",
	workflow.KindNightVision:     "%s, as seen through green night vision goggles",
	workflow.KindPixelate:        "A pixel art version of %s",
	workflow.KindGlitch:          "%s, with digital glitch effects, datamoshing, and artifacts",
	workflow.KindKaleidoscope:    "A kaleidoscopic, symmetrical version of %s",
	workflow.KindASCII:           "An ASCII art representation of %s",
	workflow.KindLowPoly:         "A low-poly, faceted version of %s",
	workflow.KindHalftone:        "%s, using a halftone dot pattern",
	workflow.KindAnaglyph:        "%s, as a red and cyan anaglyph 3D image",
	workflow.KindScanlines:       "%s, with horizontal scanlines, as if on an old CRT monitor",
	workflow.KindInvert:          "%s, with all colors inverted",
	workflow.KindLiquify:         "%s, with a warped, liquified effect",
	workflow.KindCyberpunk:       "%s, in a neon-drenched, high-tech cyberpunk setting",
	workflow.KindSteampunk:       "%s, reimagined with steampunk gears, brass, and steam power",
	workflow.KindFantasy:         "%s, in a high-fantasy, magical setting",
	workflow.KindSciFi:           "%s, in a futuristic, science-fiction setting with spaceships and aliens",
	workflow.KindMinimalist:      "A minimal, clean, and simple representation of %s",
	workflow.KindVaporwave:       "%s, in a vaporwave aesthetic with pastel colors, glitches, and classical statues",
	workflow.KindGothic:          "%s, in a dark, gothic style",
	workflow.KindArtDeco:         "%s, in a glamorous Art Deco style",
	workflow.KindGrunge:          "%s, with a gritty, textured grunge aesthetic",
	workflow.KindHologram:        "A glowing, translucent hologram of %s",
	workflow.KindStickerize:      "%s, as a die-cut vinyl sticker with a white border",
	workflow.KindLego:            "%s, made out of Lego bricks",
	workflow.KindClaymation:      "%s, as a claymation model",
	workflow.KindBlueprint:       "A technical blueprint drawing of %s",
	workflow.KindNeonGlow:        "%s, as a vibrant neon sign",
}

// Default returns a registry holding a recipe for every kind that needs one.
func Default() *Registry {
	r := NewRegistry()

	r.Register(workflow.KindSourceGenerate, func(_, custom string) string { return custom })
	r.Register(workflow.KindStyle, func(base, custom string) string {
		return fmt.Sprintf("%s, in the style of %s", base, custom)
	})
	r.Register(workflow.Kind3D, func(base, custom string) string {
		if custom == "" {
			custom = "photorealistic"
		}
		return fmt.Sprintf("A 3D render of: %s. %s", base, custom)
	})
	r.Register(workflow.KindEdit, func(base, custom string) string {
		return fmt.Sprintf("%s, edited to %s", base, custom)
	})
	r.Register(workflow.KindResize, passthrough)
	// custom holds the enhanced prompt once one has been produced
	r.Register(workflow.KindPromptMagic, func(base, custom string) string {
		if custom != "" {
			return custom
		}
		return base
	})
	r.Register(workflow.KindGeneratePodcast, passthrough)
	r.Register(workflow.KindVeoVideo, passthrough)

	for kind, tmpl := range styleTemplates {
		r.Register(kind, fixedStyle(tmpl))
	}
	return r
}

func passthrough(base, _ string) string { return base }

func fixedStyle(tmpl string) Recipe {
	return func(base, _ string) string { return fmt.Sprintf(tmpl, base) }
}
