// Package generate is the boundary to the external generation service:
// image generation, image description and free text generation. Every error
// returned by a Service built here is a *Failure.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ravi-parthasarathy/artiffex/pkg/llm"
)

// Service is the capability the executor drives.
type Service interface {
	GenerateImage(ctx context.Context, prompt, aspectRatio string) ([]byte, error)
	DescribeImage(ctx context.Context, image []byte, mimeType string) (string, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// JSONGenerator is implemented by services that can constrain a text reply
// to a single JSON object.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

const describePrompt = "Describe this image in a short, descriptive phrase to be used as a prompt for a new image generation. Focus on the main subject, its key attributes, the background, and the overall style. Be concise but comprehensive."

// LLMService implements Service on top of an llm.Client for text and vision
// and an llm.ImageGenerator for images.
type LLMService struct {
	text   llm.Client
	images llm.ImageGenerator
	logger *slog.Logger
}

// Option configures an LLMService.
type Option func(*LLMService)

// WithLogger sets the logger failures are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(s *LLMService) { s.logger = l }
}

// NewLLMService wraps the given clients. images may be nil, in which case
// GenerateImage fails as unsupported.
func NewLLMService(text llm.Client, images llm.ImageGenerator, opts ...Option) *LLMService {
	s := &LLMService{text: text, images: images, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewFromModels resolves "provider:model" IDs through the llm registries.
// The provider packages must be imported for their registrations to exist.
func NewFromModels(textModel, imageModel string, opts ...Option) (*LLMService, error) {
	text, err := llm.NewClient(textModel)
	if err != nil {
		return nil, fmt.Errorf("text model: %w", err)
	}
	images, err := llm.NewImageGenerator(imageModel)
	if err != nil {
		return nil, fmt.Errorf("image model: %w", err)
	}
	return NewLLMService(text, images, opts...), nil
}

func (s *LLMService) fail(action string, err error) error {
	f := Classify(action, err)
	s.logger.Error("generation failed", "action", action, "reason", f.Reason, "err", err)
	return f
}

// GenerateImage returns the bytes of one image for prompt.
func (s *LLMService) GenerateImage(ctx context.Context, prompt, aspectRatio string) ([]byte, error) {
	const action = "generate image"
	if s.images == nil {
		return nil, Unsupported(action)
	}
	resp, err := s.images.GenerateImage(ctx, llm.ImageRequest{Prompt: prompt, AspectRatio: aspectRatio})
	if err != nil {
		return nil, s.fail(action, err)
	}
	if len(resp.Data) == 0 {
		return nil, s.fail(action, errors.New("no image was generated"))
	}
	return resp.Data, nil
}

// DescribeImage returns a short prompt-style description of image.
func (s *LLMService) DescribeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	const action = "describe image"
	resp, err := s.text.Complete(ctx, llm.GenerateRequest{
		Messages: []llm.Message{llm.ImageMessage(mimeType, image, describePrompt)},
	})
	if err != nil {
		return "", s.fail(action, err)
	}
	return resp.Text(), nil
}

// GenerateText returns the model's reply to prompt.
func (s *LLMService) GenerateText(ctx context.Context, prompt string) (string, error) {
	const action = "generate text"
	resp, err := s.text.Complete(ctx, llm.GenerateRequest{
		Messages: []llm.Message{llm.TextMessage(llm.RoleUser, prompt)},
	})
	if err != nil {
		return "", s.fail(action, err)
	}
	return resp.Text(), nil
}

// GenerateJSON is GenerateText with the reply constrained to a JSON object.
func (s *LLMService) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	const action = "generate text"
	resp, err := s.text.Complete(ctx, llm.GenerateRequest{
		Messages: []llm.Message{llm.TextMessage(llm.RoleUser, prompt)},
		JSON:     true,
	})
	if err != nil {
		return "", s.fail(action, err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
