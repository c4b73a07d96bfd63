package executor

import (
	"github.com/ravi-parthasarathy/artiffex/pkg/imagescript"
	"github.com/ravi-parthasarathy/artiffex/pkg/recipe"
	"github.com/ravi-parthasarathy/artiffex/pkg/workflow"
)

// BuildPrompt returns the prompt to generate n from. Script sources are
// compiled; every other kind goes through its recipe. When the kind has no
// recipe the base prompt is returned unchanged and ok is false.
func BuildPrompt(n workflow.Node, reg *recipe.Registry) (prompt string, ok bool) {
	if n.Kind == workflow.KindSourceImageScript {
		return imagescript.Compile(n.CustomText), true
	}
	fn, err := reg.Get(n.Kind)
	if err != nil {
		return n.BasePrompt, false
	}
	return fn(n.BasePrompt, n.CustomText), true
}
