package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoBasePrompt is returned by operations that derive text from a base
// prompt when none is available.
var ErrNoBasePrompt = errors.New("no base prompt")

// EnhancePrompt expands a simple prompt into a richer, more imaginative one.
func EnhancePrompt(ctx context.Context, svc Service, base string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("enhance prompt: %w", ErrNoBasePrompt)
	}
	out, err := svc.GenerateText(ctx, fmt.Sprintf(`You are a world-class creative assistant for a text-to-image AI. Your task is to take a user's simple prompt and expand it into a rich, descriptive, and highly imaginative paragraph. Infuse it with surprising details, dramatic lighting, and a strong sense of atmosphere. Do not add any conversational text, just output the new prompt.

User's prompt: "%s"`, base))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// PodcastScript writes a short podcast script about the scene in base.
func PodcastScript(ctx context.Context, svc Service, base string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("cannot generate podcast without a base prompt from an image: %w", ErrNoBasePrompt)
	}
	return svc.GenerateText(ctx, fmt.Sprintf(`You are a creative and engaging podcast host. Based on the following scene description, write a short, one-minute podcast script. Make it descriptive and imaginative. Scene: "%s"`, base))
}

// AnimationPrompts asks for frames prompts that animate base according to
// instruction, one per frame, the first close to base and the last
// completing the action.
func AnimationPrompts(ctx context.Context, svc Service, base, instruction string, frames int) ([]string, error) {
	if strings.TrimSpace(base) == "" {
		return nil, fmt.Errorf("animation prompts: %w", ErrNoBasePrompt)
	}
	if frames < 2 {
		return nil, fmt.Errorf("animation prompts: need at least 2 frames, got %d", frames)
	}
	prompt := fmt.Sprintf(`Based on the following scene and animation instruction, generate a sequence of %d distinct prompts to create a smooth animation. Each prompt should describe a single frame. The first prompt should be very similar to the base scene, and the last prompt should fully complete the action. The prompts should transition logically between each other.

Base Scene: "%s"
Animation Instruction: "%s"

Respond with a JSON object of the form {"prompts": ["...", "..."]}.`, frames, base, instruction)

	var (
		raw string
		err error
	)
	if jg, ok := svc.(JSONGenerator); ok {
		raw, err = jg.GenerateJSON(ctx, prompt)
	} else {
		raw, err = svc.GenerateText(ctx, prompt)
	}
	if err != nil {
		return nil, err
	}
	return parseAnimationPrompts(raw)
}

func parseAnimationPrompts(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var parsed struct {
		Prompts []string `json:"prompts"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return nil, Classify("generate animation prompts", fmt.Errorf("invalid response format: %w", err))
	}
	if len(parsed.Prompts) == 0 {
		return nil, Classify("generate animation prompts", errors.New("invalid response format: expected a 'prompts' array"))
	}
	return parsed.Prompts, nil
}
