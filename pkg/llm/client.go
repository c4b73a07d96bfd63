// Package llm is a provider-agnostic client for text and image models.
// Providers register themselves by name; callers address models with
// "provider:model-name" IDs.
package llm

import (
	"context"
	"fmt"
	"sync"
)

// Client is the provider-agnostic LLM interface.
type Client interface {
	// Complete performs a blocking generation and returns the full response.
	Complete(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}

// ImageGenerator produces images from a text prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (ImageResponse, error)
}

// ProviderFactory creates a Client for a given model name within a provider.
type ProviderFactory func(modelName string) (Client, error)

// ImageProviderFactory creates an ImageGenerator for a model name.
type ImageProviderFactory func(modelName string) (ImageGenerator, error)

var (
	registryMu    sync.RWMutex
	registry      = map[string]ProviderFactory{}
	imageRegistry = map[string]ImageProviderFactory{}
)

// RegisterProvider registers a factory function for a named provider.
// Call this from init() in provider packages.
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// RegisterImageProvider registers an image generation factory for a named
// provider.
func RegisterImageProvider(name string, factory ImageProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	imageRegistry[name] = factory
}

// NewClient constructs a Client for the given model ID.
// Model IDs use the form "provider:model-name".
func NewClient(modelID string) (Client, error) {
	provider, modelName, err := ParseModelID(modelID)
	if err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}
	registryMu.RLock()
	factory, ok := registry[provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q (model ID %q): did you import the provider package?", provider, modelID)
	}
	return factory(modelName)
}

// NewImageGenerator constructs an ImageGenerator for the given model ID.
func NewImageGenerator(modelID string) (ImageGenerator, error) {
	provider, modelName, err := ParseModelID(modelID)
	if err != nil {
		return nil, fmt.Errorf("NewImageGenerator: %w", err)
	}
	registryMu.RLock()
	factory, ok := imageRegistry[provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no image provider registered for %q (model ID %q)", provider, modelID)
	}
	return factory(modelName)
}
